package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all settings.
const envPrefix = "MRI_EXTRACT"

// keys lists every setting. Each is bound explicitly so that environment
// overrides apply even when the config file does not mention the key.
var keys = []string{
	"llm.provider", "llm.model", "llm.api_key", "llm.max_tokens", "llm.attempts", "llm.timeout",
	"matcher.disabled", "matcher.cue_version", "matcher.cue_file", "matcher.override_keys",
	"gating.strict", "gating.keep_negative",
	"groups.file",
	"output.csv", "output.json", "output.xml", "output.sqlite",
	"batch.concurrency", "batch.max_report_bytes",
	"log.level", "log.format",
	"tracing.enabled", "tracing.endpoint", "tracing.insecure", "tracing.service_name", "tracing.sample_ratio",
	"metrics.textfile", "metrics.listen",
}

// aliases are extra variable names honoured for a key besides its
// MRI_EXTRACT_ name.
var aliases = map[string][]string{
	"llm.api_key": {envPrefix + "_LLM_API_KEY", "ANTHROPIC_API_KEY"},
	"log.level":   {envPrefix + "_LOG_LEVEL", "LOG_LEVEL"},
}

// newViper builds a Viper instance with YAML file type, the MRI_EXTRACT_ env
// prefix and a "." → "_" key replacer, so "batch.concurrency" resolves to
// MRI_EXTRACT_BATCH_CONCURRENCY.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range keys {
		if names, ok := aliases[k]; ok {
			_ = v.BindEnv(append([]string{k}, names...)...)
			continue
		}
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, merges MRI_EXTRACT_* environment
// overrides, applies defaults and validates the result. An empty path loads
// from the environment alone.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}
	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from MRI_EXTRACT_* environment variables only.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}
