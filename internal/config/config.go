// Package config loads the engine's JSON runtime configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// EscalationConfig holds the DECIDE thresholds. They are configurable rather
// than hard-coded so the policy can track real business rules.
type EscalationConfig struct {
	EscalateBelow         int `json:"escalate_below"`
	PriorityEscalateBelow int `json:"priority_escalate_below"`
}

// KBEntry is one configured knowledge-base article for the extended backend.
type KBEntry struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// Config holds the engine's runtime configuration.
type Config struct {
	DBPath             string           `json:"db_path"`
	ListenAddr         string           `json:"listen_addr"`
	AbilityTimeoutSec  int              `json:"ability_timeout_sec"`
	RateLimitPerMinute int              `json:"rate_limit_per_minute"`
	Escalation         EscalationConfig `json:"escalation"`
	KnowledgeBase      []KBEntry        `json:"knowledge_base"`
}

// Load reads a JSON config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, for use without
// a config file.
func Default() *Config {
	cfg := &Config{DBPath: "ticketflow.db"}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":9810"
	}
	if c.AbilityTimeoutSec == 0 {
		c.AbilityTimeoutSec = 15
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if c.Escalation.EscalateBelow == 0 {
		c.Escalation.EscalateBelow = 70
	}
	if c.Escalation.PriorityEscalateBelow == 0 {
		c.Escalation.PriorityEscalateBelow = 90
	}
}

func (c *Config) validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db_path is required")
	}
	if c.AbilityTimeoutSec < 0 {
		problems = append(problems, "ability_timeout_sec must not be negative")
	}
	if c.Escalation.EscalateBelow < 0 || c.Escalation.EscalateBelow > 100 {
		problems = append(problems, "escalation.escalate_below must be within 0-100")
	}
	if c.Escalation.PriorityEscalateBelow < c.Escalation.EscalateBelow {
		problems = append(problems, "escalation.priority_escalate_below must not be below escalate_below")
	}
	if c.Escalation.PriorityEscalateBelow > 100 {
		problems = append(problems, "escalation.priority_escalate_below must be within 0-100")
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}
