// Package config provides configuration loading, defaults, and validation
// for mri-extract.
package config

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
)

// Config is the root configuration object.
type Config struct {
	LLM     LLMConfig     `mapstructure:"llm"`
	Matcher MatcherConfig `mapstructure:"matcher"`
	Gating  GatingConfig  `mapstructure:"gating"`
	Groups  GroupsConfig  `mapstructure:"groups"`
	Output  OutputConfig  `mapstructure:"output"`
	Batch   BatchConfig   `mapstructure:"batch"`
	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LLMConfig selects the structured generator. Provider "none" runs the
// deterministic matcher alone.
type LLMConfig struct {
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Attempts  int           `mapstructure:"attempts"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type MatcherConfig struct {
	Disabled   bool   `mapstructure:"disabled"`
	CueVersion string `mapstructure:"cue_version"`
	// CueFile overrides CueVersion with a cue set on disk.
	CueFile string `mapstructure:"cue_file"`
	// OverrideKeys limits which fields the matcher may override when a
	// generator runs. Empty means DefaultOverrideKeys.
	OverrideKeys []string `mapstructure:"override_keys"`
}

type GatingConfig struct {
	Strict       bool     `mapstructure:"strict"`
	KeepNegative []string `mapstructure:"keep_negative"`
}

type GroupsConfig struct {
	File string `mapstructure:"file"`
}

// OutputConfig names the sinks. An empty path disables that sink.
type OutputConfig struct {
	CSV    string `mapstructure:"csv"`
	JSON   string `mapstructure:"json"`
	XML    string `mapstructure:"xml"`
	SQLite string `mapstructure:"sqlite"`
}

type BatchConfig struct {
	Concurrency    int `mapstructure:"concurrency"`
	MaxReportBytes int `mapstructure:"max_report_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

type MetricsConfig struct {
	// Textfile is written when a batch finishes.
	Textfile string `mapstructure:"textfile"`
	// Listen serves /metrics while a batch runs, e.g. ":9464".
	Listen string `mapstructure:"listen"`
}

// Validate performs semantic validation of the fully-populated Config.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderNone:
	default:
		return fmt.Errorf("config: llm.provider %q is invalid; expected anthropic|none", c.LLM.Provider)
	}
	if c.LLM.Provider == ProviderAnthropic && c.LLM.Model == "" {
		return fmt.Errorf("config: llm.model is required")
	}
	if c.LLM.Attempts < 1 {
		return fmt.Errorf("config: llm.attempts must be ≥ 1, got %d", c.LLM.Attempts)
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("config: llm.max_tokens must be ≥ 1, got %d", c.LLM.MaxTokens)
	}
	if c.Matcher.Disabled && c.LLM.Provider == ProviderNone {
		return fmt.Errorf("config: matcher.disabled with llm.provider none leaves no extractor")
	}

	cat := fields.Default()
	for _, k := range c.Gating.KeepNegative {
		if _, err := cat.Lookup(k); err != nil {
			return fmt.Errorf("config: gating.keep_negative: %w", err)
		}
	}
	for _, k := range c.Matcher.OverrideKeys {
		if _, err := cat.Lookup(k); err != nil {
			return fmt.Errorf("config: matcher.override_keys: %w", err)
		}
	}

	if c.Batch.Concurrency < 1 {
		return fmt.Errorf("config: batch.concurrency must be ≥ 1, got %d", c.Batch.Concurrency)
	}
	if c.Batch.MaxReportBytes < 1 {
		return fmt.Errorf("config: batch.max_report_bytes must be ≥ 1, got %d", c.Batch.MaxReportBytes)
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level %q is invalid", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|text", c.Log.Format)
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("config: tracing.endpoint is required when tracing is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("config: tracing.sample_ratio %v is out of range [0, 1]", c.Tracing.SampleRatio)
	}
	return nil
}
