package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TOOLCHAT_LLM_MODEL.
const EnvPrefix = "TOOLCHAT"

type Config struct {
	LogLevel      string `json:"log_level" mapstructure:"log_level"`
	MaxToolRounds int    `json:"max_tool_rounds" mapstructure:"max_tool_rounds"`
	LLM           struct {
		Provider         string  `json:"provider" mapstructure:"provider"`
		BaseURL          string  `json:"base_url" mapstructure:"base_url"`
		APIKey           string  `json:"api_key" mapstructure:"api_key"`
		Model            string  `json:"model" mapstructure:"model"`
		MaxTokens        int     `json:"max_tokens" mapstructure:"max_tokens"`
		Temperature      float32 `json:"temperature" mapstructure:"temperature"`
		MaxContextTokens int     `json:"max_context_tokens" mapstructure:"max_context_tokens"`
		SystemPrompt     string  `json:"system_prompt" mapstructure:"system_prompt"`
	} `json:"llm" mapstructure:"llm"`
	UI struct {
		AssistantLabel string `json:"assistant_label" mapstructure:"assistant_label"`
		Color          bool   `json:"color" mapstructure:"color"`
		Markdown       bool   `json:"markdown" mapstructure:"markdown"`
	} `json:"ui" mapstructure:"ui"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	cfg := &Config{LogLevel: "info"}
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.Model = "claude-3-7-sonnet-latest"
	cfg.LLM.MaxTokens = 1024
	cfg.LLM.MaxContextTokens = 200000
	cfg.UI.AssistantLabel = "Claude"
	cfg.UI.Color = true
	return cfg
}

// DefaultPath is $HOME/.toolchat/config.json.
func DefaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".toolchat", "config.json")
}

// Load reads the config at path, layering defaults, the file and
// environment overrides (highest precedence). A missing file is created
// with the defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Save(path, Defaults()); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	v, err := newViper()
	if err != nil {
		return nil, err
	}
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// Provider-native variables fill in what is not configured.
	switch cfg.LLM.Provider {
	case "anthropic":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "openai":
		if cfg.LLM.APIKey == "" {
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = os.Getenv("OPENAI_BASE_URL")
		}
		if cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = "https://api.openai.com/v1"
		}
	}

	return cfg, nil
}

// newViper returns a viper instance seeded with the defaults and bound to
// TOOLCHAT_* environment variables.
func newViper() (*viper.Viper, error) {
	v := viper.New()
	defaults, err := ToMap(Defaults())
	if err != nil {
		return nil, err
	}
	for k, val := range Flatten(defaults) {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Validate reports settings the chat cannot start with.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("unsupported llm.provider %q (want anthropic or openai)", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	if c.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must not be negative")
	}
	if c.MaxToolRounds < 0 {
		return errors.New("max_tool_rounds must not be negative")
	}
	return nil
}

// SlogLevel maps log_level onto a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Save writes cfg to path atomically, creating the directory if needed.
func Save(path string, cfg *Config) error {
	m, err := ToMap(cfg)
	if err != nil {
		return err
	}
	return writeMap(path, m)
}

func writeMap(path string, m map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to the nested map form used in the config file.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns every setting of cfg keyed by dotted path, with
// secrets masked when mask is true.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue returns the value stored under key in the config file at path.
// The file is created with defaults if it does not exist.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if !v.IsSet(key) {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v.Get(key), nil
}

// SetValue stores raw under key in the existing config file at path. raw is
// parsed as JSON when possible (numbers, booleans) and kept as a string
// otherwise.
func SetValue(path, key, raw string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	flat := Flatten(m)
	flat[key] = parseValue(raw)
	return writeMap(path, Unflatten(flat))
}

func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		switch v.(type) {
		case bool, float64:
			return v
		}
	}
	return raw
}
