// Package provider builds the configured llm.Backend.
package provider

import (
	"fmt"
	"os"
	"strings"

	"github.com/HitoniYori/ijime-support-ai/internal/config"
	"github.com/HitoniYori/ijime-support-ai/internal/llm"
	"github.com/HitoniYori/ijime-support-ai/internal/llm/gemini"
	"github.com/HitoniYori/ijime-support-ai/internal/llm/openaicompat"
	"github.com/HitoniYori/ijime-support-ai/internal/logger"
)

const defaultSystemPrompt = "You are a legal and education-administration adviser protecting bullied children and their families. " +
	"Review the evidence the user provides (documents, recordings, images, tables), point out where the school's handling " +
	"falls short of the applicable statutes and guidelines, and cite the source document with its page or article number. " +
	"Keep the earlier conversation in mind when answering follow-up questions."

// New creates the backend named by cfg.Provider.
func New(cfg config.LLMConfig) (llm.Backend, error) {
	systemPrompt, err := SystemPrompt(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case config.ProviderGemini, "":
		logger.L.Info("using gemini backend", "model", cfg.Model)
		return gemini.NewClient(gemini.Options{
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			BaseURL:           cfg.BaseURL,
			SystemInstruction: systemPrompt,
			Timeout:           cfg.Timeout,
		}), nil
	case config.ProviderOpenAI:
		logger.L.Info("using openai-compatible backend", "model", cfg.Model, "base_url", cfg.BaseURL)
		return openaicompat.NewBackend(openaicompat.NewClient(cfg.APIKey, cfg.BaseURL), cfg.Model, systemPrompt), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// SystemPrompt resolves the system instruction: the file wins over the inline
// setting, which wins over the built-in default.
func SystemPrompt(cfg config.LLMConfig) (string, error) {
	if cfg.SystemPromptFile != "" {
		data, err := os.ReadFile(cfg.SystemPromptFile)
		if err != nil {
			return "", fmt.Errorf("read system prompt file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	if cfg.SystemPrompt != "" {
		logger.L.Debug("Using system prompt from config", "prompt", cfg.SystemPrompt)
		return cfg.SystemPrompt, nil
	}
	return defaultSystemPrompt, nil
}
