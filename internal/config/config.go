// Copyright 2026 The clinicaflow-medgemma Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config loads the triage pipeline's configuration. The pattern —
// one struct-tagged YAML document, explicit defaulting, a single
// Load entry point — follows switchAILocal's internal/config, rewritten
// from scratch because the teacher's Config is almost entirely multi-provider
// credential and legacy-migration logic that has no equivalent in a
// stateless, single-purpose core (see DESIGN.md).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BackendKind selects between the deterministic and external implementation
// of an adapter (spec.md §4.2, §4.5).
type BackendKind string

const (
	BackendDeterministic BackendKind = "deterministic"
	BackendExternal      BackendKind = "external"
)

// AdapterConfig configures one external chat-completions adapter. Both the
// reasoning and communication stages use this same shape (spec.md §6).
type AdapterConfig struct {
	Backend      BackendKind   `yaml:"backend" json:"backend"`
	BaseURL      string        `yaml:"base_url" json:"base_url"`
	Model        string        `yaml:"model" json:"model"`
	APIKey       string        `yaml:"api_key" json:"-"`
	SendImages   bool          `yaml:"send_images" json:"send_images"`
	MaxImages    int           `yaml:"max_images" json:"max_images"`
	Temperature  float64       `yaml:"temperature" json:"temperature"`
	MaxTokens    int           `yaml:"max_tokens" json:"max_tokens"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

func (a *AdapterConfig) applyDefaults() {
	if a.Backend == "" {
		a.Backend = BackendDeterministic
	}
	if a.Timeout <= 0 {
		a.Timeout = 30 * time.Second
	}
	if a.MaxRetries == 0 {
		a.MaxRetries = 1
	}
	if a.RetryBackoff <= 0 {
		a.RetryBackoff = 500 * time.Millisecond
	}
	if a.Temperature == 0 {
		a.Temperature = 0.2
	}
	if a.MaxTokens == 0 {
		a.MaxTokens = 600
	}
	if a.MaxImages == 0 {
		a.MaxImages = 2
	}
}

// CircuitConfig configures the shared circuit breaker (spec.md §6).
type CircuitConfig struct {
	FailuresThreshold int           `yaml:"failures_threshold" json:"failures_threshold"`
	Cooldown          time.Duration `yaml:"cooldown" json:"cooldown"`
	Window            time.Duration `yaml:"window" json:"window"`
}

func (c *CircuitConfig) applyDefaults() {
	if c.FailuresThreshold == 0 {
		c.FailuresThreshold = 2
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 15 * time.Second
	}
	if c.Window <= 0 {
		c.Window = 60 * time.Second
	}
}

// PolicyConfig configures the policy pack loader (spec.md §4.7, §6).
type PolicyConfig struct {
	PackPath    string `yaml:"pack_path" json:"pack_path"`
	TopK        int    `yaml:"top_k" json:"top_k"`
	WatchReload bool   `yaml:"watch_reload" json:"watch_reload"`
}

func (p *PolicyConfig) applyDefaults() {
	if p.TopK == 0 {
		p.TopK = 2
	}
	if p.PackPath == "" {
		p.PackPath = "configs/policy_pack.yaml"
	}
}

// SafetyConfig configures the safety rulebook engine. NegationWindow pins
// the Open Question in spec.md §9 ("Exact word-window size for negation
// handling... should be a documented rulebook parameter").
type SafetyConfig struct {
	RulebookPath   string `yaml:"rulebook_path" json:"rulebook_path"`
	NegationWindow int    `yaml:"negation_window" json:"negation_window"`
}

func (s *SafetyConfig) applyDefaults() {
	if s.NegationWindow == 0 {
		s.NegationWindow = 4
	}
}

// RequestConfig bounds one triage request (spec.md §5, §6).
type RequestConfig struct {
	MaxBytes int           `yaml:"max_bytes" json:"max_bytes"`
	Deadline time.Duration `yaml:"deadline" json:"deadline"`
}

func (r *RequestConfig) applyDefaults() {
	if r.MaxBytes == 0 {
		r.MaxBytes = 256 * 1024
	}
	if r.Deadline <= 0 {
		r.Deadline = 5 * time.Second
	}
}

// Config is the top-level triage pipeline configuration.
type Config struct {
	Reasoning     AdapterConfig `yaml:"reasoning" json:"reasoning"`
	Communication AdapterConfig `yaml:"communication" json:"communication"`
	Circuit       CircuitConfig `yaml:"circuit" json:"circuit"`
	Policy        PolicyConfig  `yaml:"policy" json:"policy"`
	Safety        SafetyConfig  `yaml:"safety" json:"safety"`
	Request       RequestConfig `yaml:"request" json:"request"`

	// PHIGuardEnabled is decoded and defaults to true, but no stage reads
	// it: the reasoning and communication adapters always skip the external
	// backend when PHI hits are present, whatever this field says.
	PHIGuardEnabled bool `yaml:"phi_guard_enabled" json:"phi_guard_enabled"`

	Debug         bool   `yaml:"debug" json:"debug"`
	LoggingToFile bool   `yaml:"logging_to_file" json:"logging_to_file"`
	LogDir        string `yaml:"log_dir" json:"log_dir"`
}

var validate = validator.New()

// ApplyDefaults fills every unset field with the default named in spec.md
// §6. It does not touch PHIGuardEnabled: that field has no Go zero value
// that reads as "on by default", so Default sets it to true before Load
// decodes YAML over it.
func (c *Config) ApplyDefaults() {
	c.Reasoning.applyDefaults()
	c.Communication.applyDefaults()
	c.Circuit.applyDefaults()
	c.Policy.applyDefaults()
	c.Safety.applyDefaults()
	c.Request.applyDefaults()
}

// Default returns a Config with every field at its spec.md §6 default and
// PHI guarding enabled.
func Default() *Config {
	c := &Config{PHIGuardEnabled: true}
	c.ApplyDefaults()
	return c
}

// Load reads a YAML configuration file, overlays secrets from a .env file
// in the current working directory (if present, via github.com/joho/godotenv — the
// teacher keeps API keys out of YAML the same way), applies defaults, and
// validates required fields.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()
	if key := os.Getenv("TRIAGE_REASONING_API_KEY"); key != "" {
		cfg.Reasoning.APIKey = key
	}
	if key := os.Getenv("TRIAGE_COMMUNICATION_API_KEY"); key != "" {
		cfg.Communication.APIKey = key
	}

	cfg.ApplyDefaults()

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}
