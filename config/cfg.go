package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	ProcessingConfig struct {
		Indent   int    `yaml:"indent" validate:"min=0,max=16"`
		Verify   bool   `yaml:"verify"`
		Encoding string `yaml:"encoding,omitempty"`
	}

	TemplatesConfig struct {
		Extension     string `yaml:"extension" validate:"required,startswith=."`
		PartialPrefix string `yaml:"partial_prefix" validate:"required"`
		LeftDelim     string `yaml:"left_delim" validate:"required"`
		RightDelim    string `yaml:"right_delim" validate:"required"`
	}

	ServerConfig struct {
		Listen       string        `yaml:"listen" validate:"required,hostname_port"`
		URL          string        `yaml:"url" validate:"required,excludes=/"`
		Path         string        `yaml:"path" sanitize:"path_clean" validate:"required"`
		Templates    bool          `yaml:"templates"`
		ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
		WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
	}

	Config struct {
		Version    int              `yaml:"version" validate:"eq=1"`
		Processing ProcessingConfig `yaml:"processing"`
		Templates  TemplatesConfig  `yaml:"templates"`
		Server     ServerConfig     `yaml:"server"`
		Logging    LoggingConfig    `yaml:"logging"`
		Reporting  ReporterConfig   `yaml:"reporting"`
	}
)

// verbatimFields hold template delimiters and are not expanded when
// configuration template is processed.
var verbatimFields = []string{"left_delim", "right_delim"}

func processingOptions(extra []func(*gencfg.ProcessingOptions)) []func(*gencfg.ProcessingOptions) {
	opts := make([]func(*gencfg.ProcessingOptions), 0, len(verbatimFields)+len(extra))
	for _, name := range verbatimFields {
		opts = append(opts, gencfg.WithDoNotExpandField(name))
	}
	return append(opts, extra...)
}

// decodeStrict fills cfg from YAML, unknown keys are errors.
func decodeStrict(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode configuration data: %w", err)
	}
	return nil
}

// check sanitizes paths and validates values according to struct tags.
func check(cfg *Config) error {
	if err := gencfg.Sanitize(cfg); err != nil {
		return fmt.Errorf("failed to sanitize configuration: %w", err)
	}
	if err := gencfg.Validate(cfg); err != nil {
		return fmt.Errorf("failed to validate configuration: %w", err)
	}
	return nil
}

// LoadConfiguration starts with defaults from embedded template and overlays
// values from the file at path (when given). Result is checked once, after
// everything is applied.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	defaults, err := gencfg.Process(ConfigTmpl, processingOptions(options)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg := &Config{}
	if err := decodeStrict(defaults, cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}

	source := "template"
	if len(path) > 0 {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decodeStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to process configuration file: %w", err)
		}
		source = "file"
	}
	if err := check(cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration %s: %w", source, err)
	}
	return cfg, nil
}

// Prepare returns default configuration with template expressions expanded.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, processingOptions(nil)...)
}

// Dump serializes configuration as YAML.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
