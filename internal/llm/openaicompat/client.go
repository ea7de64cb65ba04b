package openaicompat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/HitoniYori/ijime-support-ai/internal/llm"
	"github.com/HitoniYori/ijime-support-ai/internal/logger"
)

// Client is minimal subset of openai.Client used by the backend; it is easy to mock in tests.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient creates a new OpenAI client
func NewClient(apiKey, baseURL string) *openai.Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return openai.NewClientWithConfig(config)
}

// Backend adapts a chat-completions endpoint to llm.Backend.
// Per-category safety thresholds have no equivalent in this API and are ignored.
type Backend struct {
	client       Client
	model        string
	systemPrompt string
}

var _ llm.Backend = (*Backend)(nil)

func NewBackend(client Client, model, systemPrompt string) *Backend {
	return &Backend{client: client, model: model, systemPrompt: systemPrompt}
}

func (b *Backend) Send(ctx context.Context, history []llm.HistoryEntry, content []llm.Part, params llm.Params) (llm.Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if b.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: b.systemPrompt,
		})
	}
	for _, entry := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    mapRole(entry.Role),
			Content: strings.Join(entry.Parts, "\n\n"),
		})
	}
	messages = append(messages, userMessage(content))

	// go-openai omits a zero temperature, which the server reads as its default.
	temperature := float32(params.Temperature)
	if temperature == 0 {
		temperature = math.SmallestNonzeroFloat32
	}

	resp, err := b.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       b.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		return llm.Response{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("%w: no choices", llm.ErrEmptyResponse)
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter && choice.Message.Content == "" {
		return llm.Response{}, fmt.Errorf("%w: finish reason %s", llm.ErrSafetyBlocked, choice.FinishReason)
	}
	return llm.Response{Text: choice.Message.Content, FinishReason: string(choice.FinishReason)}, nil
}

func userMessage(content []llm.Part) openai.ChatCompletionMessage {
	hasInline := false
	for _, p := range content {
		if p.IsInline() {
			hasInline = true
			break
		}
	}
	if !hasInline {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: llm.JoinText(content)}
	}

	parts := make([]openai.ChatMessagePart, 0, len(content))
	for _, p := range content {
		switch {
		case !p.IsInline():
			if p.Text == "" {
				continue
			}
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: p.Text})
		case strings.HasPrefix(p.InlineData.MIMEType, "image/"):
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + p.InlineData.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.InlineData.Data),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		default:
			logger.L.Warn("inline data not supported by chat completions; sending a placeholder", "mime_type", p.InlineData.MIMEType, "bytes", len(p.InlineData.Data))
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: fmt.Sprintf("[%s attachment (%d bytes) could not be forwarded to this model]", p.InlineData.MIMEType, len(p.InlineData.Data)),
			})
		}
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}

func mapRole(role llm.Role) string {
	if role == llm.RoleModel {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}

func mapError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %v", llm.ErrUnauthorized, err)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %v", llm.ErrRateLimited, err)
	case status >= 500:
		return fmt.Errorf("%w: %v", llm.ErrServerTransient, err)
	}
	return err
}
