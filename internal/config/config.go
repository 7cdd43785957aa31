// Package config resolves the agent configuration from an optional YAML
// file plus environment overrides. The result is an immutable snapshot
// validated once at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nordeim/context7-agent-v2-sub001/internal/ui"
)

// DefaultSystemPrompt grounds the model in retrieved Context7 documents.
// The resolver guarantees the active prompt is never empty: the upstream
// chat API rejects an empty system role.
const DefaultSystemPrompt = `You are a documentation assistant backed by the Context7 knowledge base.
Answer strictly from the retrieved documentation provided to you. If the
retrieved content does not answer the question, say so instead of guessing.`

// DefaultFallbackAnswer is emitted verbatim when retrieval yields nothing
// usable. It is deliberately a fixed sentence, not model output.
const DefaultFallbackAnswer = "I could not find anything relevant in the knowledge base for that question."

// Error is a fatal configuration failure. Remediation tells the operator
// how to fix it.
type Error struct {
	Field       string
	Reason      string
	Remediation string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s (%s)", e.Field, e.Reason, e.Remediation)
}

// Config is the resolved, immutable configuration snapshot.
type Config struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`

	Theme       ui.Theme `yaml:"theme"`
	HistoryFile string   `yaml:"history_file"`
	MaxHistory  int      `yaml:"max_history"`

	FallbackAnswer string `yaml:"fallback_answer"`

	// Launcher for the Context7 MCP server. The -y flag keeps npx from
	// prompting for install confirmation and hanging the pipe.
	MCPCommand string   `yaml:"mcp_command"`
	MCPArgs    []string `yaml:"mcp_args"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BaseURL:        "https://api.openai.com/v1",
		Model:          "gpt-4o-mini",
		SystemPrompt:   DefaultSystemPrompt,
		Theme:          ui.ThemeCyberpunk,
		HistoryFile:    defaultHistoryFile(),
		MaxHistory:     100,
		FallbackAnswer: DefaultFallbackAnswer,
		MCPCommand:     "npx",
		MCPArgs:        []string{"-y", "@upstash/context7-mcp@latest"},
		LogLevel:       "info",
	}
}

func defaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.json"
	}
	return filepath.Join(home, ".context7", "history.json")
}

// Load resolves configuration: defaults, then the YAML file (if any),
// then environment overrides, then validation. It has no side effects
// beyond reading the environment and the file.
func Load() (*Config, error) {
	return LoadFrom(configFilePath())
}

// LoadFrom is Load with an explicit config file path. An empty path or a
// missing file is not an error; only a malformed file is.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFilePath() string {
	if p := os.Getenv("CONTEXT7_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".context7", "config.yaml")
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("CONTEXT7_THEME"); v != "" {
		c.Theme = ui.Theme(strings.ToLower(v))
	}
	if v := os.Getenv("CONTEXT7_HISTORY"); v != "" {
		c.HistoryFile = v
	}
	if v, ok := os.LookupEnv("CONTEXT7_SYSTEM_PROMPT"); ok {
		c.SystemPrompt = v
	}
	if v := os.Getenv("CONTEXT7_MAX_HISTORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxHistory = n
		}
	}
	if v := os.Getenv("CONTEXT7_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &Error{
			Field:       "api_key",
			Reason:      "OPENAI_API_KEY is required",
			Remediation: "export OPENAI_API_KEY or set api_key in ~/.context7/config.yaml",
		}
	}
	if _, err := ui.ParseTheme(string(c.Theme)); err != nil {
		return &Error{
			Field:       "theme",
			Reason:      fmt.Sprintf("invalid theme %q", c.Theme),
			Remediation: "choose one of: " + strings.Join(ui.ThemeNames(), ", "),
		}
	}
	if c.MaxHistory <= 0 {
		return &Error{
			Field:       "max_history",
			Reason:      fmt.Sprintf("must be positive, got %d", c.MaxHistory),
			Remediation: "set CONTEXT7_MAX_HISTORY to a positive integer",
		}
	}
	// An operator-supplied blank prompt is substituted, not rejected.
	if strings.TrimSpace(c.SystemPrompt) == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if strings.TrimSpace(c.FallbackAnswer) == "" {
		c.FallbackAnswer = DefaultFallbackAnswer
	}
	if c.MCPCommand == "" {
		c.MCPCommand = "npx"
	}
	return nil
}
