package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// DefaultGreeting is the synthetic assistant turn every new conversation starts with.
const DefaultGreeting = "Hello. I can help you review how the school has handled the bullying, " +
	"analyse your evidence and check the relevant legal grounds.\n" +
	"If you have evidence (PDFs, recordings, photos, spreadsheets), please upload it."

// Config holds the application configuration
type Config struct {
	LLM      LLMConfig
	Server   ServerConfig
	Session  SessionConfig
	Evidence EvidenceConfig
	Archive  ArchiveConfig
	Log      LogConfig
}

// LLMConfig holds the LLM configuration
type LLMConfig struct {
	Provider         string        `mapstructure:"provider"`
	BaseURL          string        `mapstructure:"base_url"`
	APIKey           string        `mapstructure:"api_key"`
	Model            string        `mapstructure:"model"`
	SystemPrompt     string        `mapstructure:"system_prompt"`
	SystemPromptFile string        `mapstructure:"system_prompt_file"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// SessionConfig holds per-conversation settings
type SessionConfig struct {
	Greeting string `mapstructure:"greeting"`
}

// EvidenceConfig holds the optional instructions appended after extracted evidence text
type EvidenceConfig struct {
	DocumentInstruction string `mapstructure:"document_instruction"`
	TableInstruction    string `mapstructure:"table_instruction"`
}

// ArchiveConfig holds the snapshot archive location
type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads the configuration from config.yaml (or the file named by CONFIG_PATH),
// environment variables prefixed with IJIME_, and defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("IJIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "IJIME_LLM_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", ProviderGemini)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-flash-latest")
	v.SetDefault("llm.system_prompt", "")
	v.SetDefault("llm.system_prompt_file", "")
	v.SetDefault("llm.timeout", 120*time.Second)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")
	v.SetDefault("session.greeting", DefaultGreeting)
	v.SetDefault("evidence.document_instruction", "")
	v.SetDefault("evidence.table_instruction", "")
	v.SetDefault("archive.path", "history.db")
	v.SetDefault("log.level", "info")
}

// Validate checks the settings every surface depends on.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key (or GEMINI_API_KEY) is required for provider %q", c.LLM.Provider)
		}
	case ProviderOpenAI:
		if c.LLM.APIKey == "" && c.LLM.BaseURL == "" {
			return fmt.Errorf("llm.api_key is required unless llm.base_url points at a keyless server")
		}
	default:
		return fmt.Errorf("unsupported llm.provider %q (want %q or %q)", c.LLM.Provider, ProviderGemini, ProviderOpenAI)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model cannot be empty")
	}
	if c.Server.Port == "" {
		return fmt.Errorf("server.port cannot be empty")
	}
	return nil
}
