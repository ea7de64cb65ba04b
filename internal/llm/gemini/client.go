package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/HitoniYori/ijime-support-ai/internal/llm"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Options configures a Client.
type Options struct {
	APIKey            string
	Model             string
	BaseURL           string
	SystemInstruction string
	Timeout           time.Duration
}

// Client implements llm.Backend over the Gemini generateContent REST API.
type Client struct {
	baseURL           string
	apiKey            string
	model             string
	systemInstruction string
	client            *http.Client
}

var _ llm.Backend = (*Client)(nil)

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:           baseURL,
		apiKey:            opts.APIKey,
		model:             opts.Model,
		systemInstruction: opts.SystemInstruction,
		client:            &http.Client{Timeout: timeout},
	}
}

// Send issues one generateContent call carrying the prior history and the new user turn.
func (c *Client) Send(ctx context.Context, history []llm.HistoryEntry, content []llm.Part, params llm.Params) (llm.Response, error) {
	payload := c.buildRequest(history, content, params)
	body, err := json.Marshal(payload)
	if err != nil {
		return llm.Response{}, err
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return llm.Response{}, err
	}
	req.Header.Set("content-type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return llm.Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return llm.Response{}, statusError(resp)
	}

	var response generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return llm.Response{}, fmt.Errorf("decode gemini response: %w", err)
	}
	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return llm.Response{}, fmt.Errorf("%w: prompt blocked (%s)", llm.ErrSafetyBlocked, response.PromptFeedback.BlockReason)
	}
	if len(response.Candidates) == 0 {
		return llm.Response{}, fmt.Errorf("%w: no candidates", llm.ErrEmptyResponse)
	}
	candidate := response.Candidates[0]
	text := extractText(candidate.Content.Parts)
	if candidate.FinishReason == finishSafety && text == "" {
		return llm.Response{}, fmt.Errorf("%w: finish reason %s", llm.ErrSafetyBlocked, candidate.FinishReason)
	}
	return llm.Response{Text: text, FinishReason: candidate.FinishReason}, nil
}

func (c *Client) buildRequest(history []llm.HistoryEntry, content []llm.Part, params llm.Params) generateRequest {
	contents := make([]geminiContent, 0, len(history)+1)
	for _, entry := range history {
		parts := make([]geminiPart, 0, len(entry.Parts))
		for _, text := range entry.Parts {
			parts = append(parts, geminiPart{Text: text})
		}
		contents = append(contents, geminiContent{Role: string(entry.Role), Parts: parts})
	}
	contents = append(contents, geminiContent{Role: string(llm.RoleUser), Parts: toGeminiParts(content)})

	temperature := params.Temperature
	payload := generateRequest{
		Contents:         contents,
		GenerationConfig: &generationConfig{Temperature: &temperature},
	}
	for _, s := range params.Safety {
		payload.SafetySettings = append(payload.SafetySettings, safetySetting{
			Category:  string(s.Category),
			Threshold: string(s.Threshold),
		})
	}
	if c.systemInstruction != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: c.systemInstruction}}}
	}
	return payload
}

func toGeminiParts(content []llm.Part) []geminiPart {
	parts := make([]geminiPart, 0, len(content))
	for _, p := range content {
		if p.IsInline() {
			parts = append(parts, geminiPart{InlineData: &inlineData{
				MIMEType: p.InlineData.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.InlineData.Data),
			}})
			continue
		}
		// The API rejects parts with neither text nor data.
		if p.Text == "" {
			continue
		}
		parts = append(parts, geminiPart{Text: p.Text})
	}
	return parts
}

func statusError(resp *http.Response) error {
	errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	detail := strings.TrimSpace(string(errorBody))
	var apiErr errorResponse
	if json.Unmarshal(errorBody, &apiErr) == nil && apiErr.Error.Message != "" {
		detail = fmt.Sprintf("%s: %s", apiErr.Error.Status, apiErr.Error.Message)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s - %s", llm.ErrUnauthorized, resp.Status, detail)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s - %s", llm.ErrRateLimited, resp.Status, detail)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s - %s", llm.ErrServerTransient, resp.Status, detail)
	default:
		return errors.New("gemini error: " + resp.Status + " - " + detail)
	}
}

func extractText(parts []geminiPart) string {
	var buf strings.Builder
	for _, part := range parts {
		buf.WriteString(part.Text)
	}
	return buf.String()
}

const finishSafety = "SAFETY"

type generateRequest struct {
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	Contents          []geminiContent   `json:"contents"`
	SafetySettings    []safetySetting   `json:"safetySettings,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// Temperature is a pointer so that 0 is sent rather than omitted.
type generationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type generateResponse struct {
	Candidates     []candidate     `json:"candidates"`
	PromptFeedback *promptFeedback `json:"promptFeedback,omitempty"`
}

type candidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type promptFeedback struct {
	BlockReason string `json:"blockReason"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
