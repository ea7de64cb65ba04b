package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleConfig = `
llm:
  provider: openai
  base_url: https://api.example.com/v1
  api_key: dummy
  model: gpt-4o
  timeout: 30s
server:
  host: 0.0.0.0
  port: "9090"
session:
  greeting: "Welcome back."
evidence:
  table_instruction: "Check the table for timeline inconsistencies."
archive:
  path: /tmp/snapshots.db
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	tmp, err := os.CreateTemp(t.TempDir(), "cfg-*.yaml")
	require.NoError(t, err)
	_, err = tmp.WriteString(body)
	require.NoError(t, err)
	require.NoError(t, tmp.Close())
	return tmp.Name()
}

// TestLoad_File verifies that Load unmarshals every section from the file named by CONFIG_PATH.
func TestLoad_File(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	require.Equal(t, "https://api.example.com/v1", cfg.LLM.BaseURL)
	require.Equal(t, "gpt-4o", cfg.LLM.Model)
	require.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "Welcome back.", cfg.Session.Greeting)
	require.Equal(t, "Check the table for timeline inconsistencies.", cfg.Evidence.TableInstruction)
	require.Empty(t, cfg.Evidence.DocumentInstruction)
	require.Equal(t, "/tmp/snapshots.db", cfg.Archive.Path)
	require.NoError(t, cfg.Validate())
}

// TestLoad_DefaultsWithoutFile verifies that a missing config.yaml falls back to defaults.
func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("GEMINI_API_KEY", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ProviderGemini, cfg.LLM.Provider)
	require.Equal(t, "gemini-flash-latest", cfg.LLM.Model)
	require.Equal(t, "from-env", cfg.LLM.APIKey)
	require.Equal(t, DefaultGreeting, cfg.Session.Greeting)
	require.Equal(t, 120*time.Second, cfg.LLM.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, sampleConfig))
	t.Setenv("IJIME_LLM_MODEL", "gpt-4o-mini")
	t.Setenv("IJIME_SERVER_PORT", "7070")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	require.Equal(t, "7070", cfg.Server.Port)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := Config{
		LLM:    LLMConfig{Provider: ProviderGemini, APIKey: "k", Model: "m"},
		Server: ServerConfig{Port: "8080"},
	}
	require.NoError(t, base.Validate())

	noKey := base
	noKey.LLM.APIKey = ""
	require.Error(t, noKey.Validate())

	keyless := base
	keyless.LLM = LLMConfig{Provider: ProviderOpenAI, BaseURL: "http://localhost:11434/v1", Model: "llama3"}
	require.NoError(t, keyless.Validate())

	unknown := base
	unknown.LLM.Provider = "palm"
	require.Error(t, unknown.Validate())
}
