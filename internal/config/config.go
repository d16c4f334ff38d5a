// Package config handles loading and writing user configuration for mediscribe.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/f3rmion/mediscribe/internal/llm"
	"github.com/f3rmion/mediscribe/internal/logging"
	"github.com/f3rmion/mediscribe/internal/prompt"
	"github.com/f3rmion/mediscribe/internal/session"
	"github.com/f3rmion/mediscribe/internal/speech"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. MEDISCRIBE_GEMINI_MODEL.
const EnvPrefix = "MEDISCRIBE"

// Config holds all user configuration.
type Config struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
	Retry  RetryConfig  `mapstructure:"retry"`
	Prompt PromptConfig `mapstructure:"prompt"`
	Speech SpeechConfig `mapstructure:"speech"`
	UI     UIConfig     `mapstructure:"ui"`
	Log    LogConfig    `mapstructure:"log"`
}

// GeminiConfig selects the chart generation model.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// RetryConfig bounds chart generation retries.
type RetryConfig struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

// PromptConfig points at optional files that replace the built-in prompt.
type PromptConfig struct {
	SystemFile   string `mapstructure:"system_file"`
	TemplateFile string `mapstructure:"template_file"`
}

// SpeechConfig configures Deepgram and the ffmpeg microphone capture.
type SpeechConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Model       string `mapstructure:"model"`
	Language    string `mapstructure:"language"`
	FFMPEG      string `mapstructure:"ffmpeg"`
	InputFormat string `mapstructure:"input_format"`
	InputDevice string `mapstructure:"input_device"`
	SampleRate  int    `mapstructure:"sample_rate"`
	Channels    int    `mapstructure:"channels"`
}

// UIConfig tunes the terminal UI.
type UIConfig struct {
	CopyConfirm time.Duration `mapstructure:"copy_confirm"`
}

// LogConfig selects log level and destination.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Gemini: GeminiConfig{
			BaseURL: llm.DefaultBaseURL,
			Model:   llm.DefaultModel,
		},
		Retry: RetryConfig{
			MaxAttempts:    llm.DefaultMaxAttempts,
			InitialBackoff: llm.DefaultInitialBackoff,
			AttemptTimeout: 30 * time.Second,
		},
		Speech: SpeechConfig{
			BaseURL:     speech.DefaultDeepgramURL,
			Model:       speech.DefaultDeepgramModel,
			Language:    speech.DefaultLanguage,
			FFMPEG:      "ffmpeg",
			InputFormat: "pulse",
			InputDevice: "default",
			SampleRate:  16000,
			Channels:    1,
		},
		UI: UIConfig{
			CopyConfirm: session.DefaultCopyConfirm,
		},
		Log: LogConfig{
			Level: "info",
			File:  logging.DefaultFile(),
		},
	}
}

// DefaultPath returns $HOME/.config/mediscribe/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mediscribe", "config.yaml"), nil
}

// SetDefaults registers every key with v so environment overrides apply
// during Unmarshal, and binds the provider-standard API key variables.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", d.Gemini.BaseURL)
	v.SetDefault("gemini.model", d.Gemini.Model)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_backoff", d.Retry.InitialBackoff)
	v.SetDefault("retry.attempt_timeout", d.Retry.AttemptTimeout)
	v.SetDefault("prompt.system_file", "")
	v.SetDefault("prompt.template_file", "")
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.base_url", d.Speech.BaseURL)
	v.SetDefault("speech.model", d.Speech.Model)
	v.SetDefault("speech.language", d.Speech.Language)
	v.SetDefault("speech.ffmpeg", d.Speech.FFMPEG)
	v.SetDefault("speech.input_format", d.Speech.InputFormat)
	v.SetDefault("speech.input_device", d.Speech.InputDevice)
	v.SetDefault("speech.sample_rate", d.Speech.SampleRate)
	v.SetDefault("speech.channels", d.Speech.Channels)
	v.SetDefault("ui.copy_confirm", d.UI.CopyConfirm)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("speech.api_key", EnvPrefix+"_SPEECH_API_KEY", "DEEPGRAM_API_KEY")
}

// ReadFile merges the YAML file at path into v. A missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.Gemini.APIKey = strings.TrimSpace(cfg.Gemini.APIKey)
	cfg.Speech.APIKey = strings.TrimSpace(cfg.Speech.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > llm.MaxAttemptsLimit {
		errs = append(errs, fmt.Errorf("retry.max_attempts must be between 1 and %d, got %d", llm.MaxAttemptsLimit, c.Retry.MaxAttempts))
	}
	if c.Retry.InitialBackoff <= 0 {
		errs = append(errs, fmt.Errorf("retry.initial_backoff must be positive, got %s", c.Retry.InitialBackoff))
	}
	if c.Retry.AttemptTimeout <= 0 {
		errs = append(errs, fmt.Errorf("retry.attempt_timeout must be positive, got %s", c.Retry.AttemptTimeout))
	}
	if c.Speech.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("speech.sample_rate must be positive, got %d", c.Speech.SampleRate))
	}
	if c.Speech.Channels <= 0 {
		errs = append(errs, fmt.Errorf("speech.channels must be positive, got %d", c.Speech.Channels))
	}
	if c.UI.CopyConfirm <= 0 {
		errs = append(errs, fmt.Errorf("ui.copy_confirm must be positive, got %s", c.UI.CopyConfirm))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// LLM returns the chart generation client settings.
func (c *Config) LLM() llm.Config {
	return llm.Config{
		APIKey:         c.Gemini.APIKey,
		BaseURL:        c.Gemini.BaseURL,
		Model:          c.Gemini.Model,
		MaxAttempts:    c.Retry.MaxAttempts,
		InitialBackoff: c.Retry.InitialBackoff,
		AttemptTimeout: c.Retry.AttemptTimeout,
	}
}

// Generator builds the chart prompt generator, applying any override files.
func (c *Config) Generator() (*prompt.Generator, error) {
	g := prompt.NewGenerator()
	if c.Prompt.SystemFile != "" {
		data, err := os.ReadFile(c.Prompt.SystemFile)
		if err != nil {
			return nil, fmt.Errorf("reading prompt.system_file: %w", err)
		}
		g.SetSystem(strings.TrimSpace(string(data)))
	}
	if c.Prompt.TemplateFile != "" {
		data, err := os.ReadFile(c.Prompt.TemplateFile)
		if err != nil {
			return nil, fmt.Errorf("reading prompt.template_file: %w", err)
		}
		if err := g.SetTemplate(string(data)); err != nil {
			return nil, fmt.Errorf("prompt.template_file: %w", err)
		}
	}
	return g, nil
}

// Deepgram returns the speech recognizer settings.
func (c *Config) Deepgram() speech.DeepgramConfig {
	return speech.DeepgramConfig{
		APIKey:   c.Speech.APIKey,
		BaseURL:  c.Speech.BaseURL,
		Model:    c.Speech.Model,
		Language: c.Speech.Language,
		Audio: speech.AudioConfig{
			Command:     c.Speech.FFMPEG,
			InputFormat: c.Speech.InputFormat,
			InputDevice: c.Speech.InputDevice,
			SampleRate:  c.Speech.SampleRate,
			Channels:    c.Speech.Channels,
		},
	}
}
