package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrExists is returned by WriteTemplate when the file exists and force is false.
var ErrExists = errors.New("config file already exists")

// fileConfig is the on-disk shape. Durations are written as strings like "1s".
type fileConfig struct {
	Gemini struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"gemini"`
	Retry struct {
		MaxAttempts    int    `yaml:"max_attempts"`
		InitialBackoff string `yaml:"initial_backoff"`
		AttemptTimeout string `yaml:"attempt_timeout"`
	} `yaml:"retry"`
	Prompt struct {
		SystemFile   string `yaml:"system_file"`
		TemplateFile string `yaml:"template_file"`
	} `yaml:"prompt"`
	Speech struct {
		APIKey      string `yaml:"api_key"`
		BaseURL     string `yaml:"base_url"`
		Model       string `yaml:"model"`
		Language    string `yaml:"language"`
		FFMPEG      string `yaml:"ffmpeg"`
		InputFormat string `yaml:"input_format"`
		InputDevice string `yaml:"input_device"`
		SampleRate  int    `yaml:"sample_rate"`
		Channels    int    `yaml:"channels"`
	} `yaml:"speech"`
	UI struct {
		CopyConfirm string `yaml:"copy_confirm"`
	} `yaml:"ui"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
}

var sectionComments = map[string]string{
	"gemini": "Chart generation. api_key may be left empty and set through GEMINI_API_KEY.",
	"retry":  "Chart generation retries: max_attempts counts the first try.",
	"prompt": "Optional files replacing the built-in SOAP instruction and user content.\n" +
		"The template is Go text/template with .Name .Age .Gender .Transcript .Memo.",
	"speech": "Live transcription through Deepgram. api_key may come from DEEPGRAM_API_KEY.\n" +
		"Audio is captured with ffmpeg; input_format is pulse, alsa, avfoundation or dshow.",
	"ui":  "How long the copy confirmation stays visible.",
	"log": "Logs go to a file so they never draw over the terminal UI.",
}

func toFile(c Config) fileConfig {
	var f fileConfig
	f.Gemini.APIKey = c.Gemini.APIKey
	f.Gemini.BaseURL = c.Gemini.BaseURL
	f.Gemini.Model = c.Gemini.Model
	f.Retry.MaxAttempts = c.Retry.MaxAttempts
	f.Retry.InitialBackoff = c.Retry.InitialBackoff.String()
	f.Retry.AttemptTimeout = c.Retry.AttemptTimeout.String()
	f.Prompt.SystemFile = c.Prompt.SystemFile
	f.Prompt.TemplateFile = c.Prompt.TemplateFile
	f.Speech.APIKey = c.Speech.APIKey
	f.Speech.BaseURL = c.Speech.BaseURL
	f.Speech.Model = c.Speech.Model
	f.Speech.Language = c.Speech.Language
	f.Speech.FFMPEG = c.Speech.FFMPEG
	f.Speech.InputFormat = c.Speech.InputFormat
	f.Speech.InputDevice = c.Speech.InputDevice
	f.Speech.SampleRate = c.Speech.SampleRate
	f.Speech.Channels = c.Speech.Channels
	f.UI.CopyConfirm = c.UI.CopyConfirm.String()
	f.Log.Level = c.Log.Level
	f.Log.File = c.Log.File
	return f
}

// Template renders c as commented YAML.
func Template(c Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(toFile(c)); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	// doc is a mapping node; keys sit at even indexes.
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}
	root := &yaml.Node{
		Kind:        yaml.DocumentNode,
		HeadComment: "mediscribe configuration.\nEvery key can be overridden with MEDISCRIBE_<SECTION>_<KEY>.",
		Content:     []*yaml.Node{&doc},
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteTemplate writes the default configuration to path.
func WriteTemplate(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrExists, path)
	}

	out, err := Template(Default())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file may hold API keys.
	if err := os.WriteFile(path, out, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
