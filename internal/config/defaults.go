package config

import (
	"time"

	"github.com/joelkehle/breast-mri-extract/internal/fields"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"

	DefaultLLMModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens    = 2048
	DefaultAttempts     = 3
	DefaultLLMTimeout   = 2 * time.Minute
	DefaultCueVersion   = "v2"
	DefaultConcurrency  = 4
	DefaultReportBytes  = 64 << 10
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "json"
	DefaultOTLPEndpoint = "localhost:4318"
	DefaultServiceName  = "mri-extract"
	DefaultSampleRatio  = 1.0
)

// DefaultOverrideKeys are the fields whose report wording is regular enough
// for the matcher to overrule the generator. Sizes, sides and history are left
// to the generator.
func DefaultOverrideKeys() []string {
	return []string{
		fields.KeyBIRADS, fields.KeyExamDate, fields.KeyACR, fields.KeyBPE,
		fields.KeyMass, fields.KeyMassMargins, fields.KeyMassEnhancementPattern,
		fields.KeyRadialSpiculations, fields.KeyNonEnhancingSepta,
		fields.KeyNME, fields.KeyNMEMargins, fields.KeyNMEEnhancementPattern,
		fields.KeyNMELinear, fields.KeyNMESegmental, fields.KeyNMERegional, fields.KeyNMEBilateral,
		fields.KeyEnhancementPresence, fields.KeyCurveMorphology, fields.KeyADC,
	}
}

// ApplyDefaults fills every zero-value field in cfg with its default.
// Explicitly set values are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderAnthropic
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = DefaultMaxTokens
	}
	if cfg.LLM.Attempts == 0 {
		cfg.LLM.Attempts = DefaultAttempts
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultLLMTimeout
	}

	if cfg.Matcher.CueVersion == "" {
		cfg.Matcher.CueVersion = DefaultCueVersion
	}
	if len(cfg.Matcher.OverrideKeys) == 0 {
		cfg.Matcher.OverrideKeys = DefaultOverrideKeys()
	}

	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = DefaultConcurrency
	}
	if cfg.Batch.MaxReportBytes == 0 {
		cfg.Batch.MaxReportBytes = DefaultReportBytes
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultOTLPEndpoint
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultServiceName
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultSampleRatio
	}
}
