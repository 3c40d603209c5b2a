package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "config.json")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{
		"db_path": "/tmp/ticketflow.db",
		"listen_addr": ":7777",
		"ability_timeout_sec": 5,
		"rate_limit_per_minute": 10,
		"escalation": {"escalate_below": 60, "priority_escalate_below": 80},
		"knowledge_base": [
			{"title": "Refund policy", "content": "Refunds within 30 days.", "category": "billing"}
		]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/tmp/ticketflow.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.ListenAddr != ":7777" {
		t.Errorf("ListenAddr = %q, want :7777", cfg.ListenAddr)
	}
	if cfg.AbilityTimeoutSec != 5 {
		t.Errorf("AbilityTimeoutSec = %d, want 5", cfg.AbilityTimeoutSec)
	}
	if cfg.Escalation.EscalateBelow != 60 || cfg.Escalation.PriorityEscalateBelow != 80 {
		t.Errorf("Escalation = %+v, want 60/80", cfg.Escalation)
	}
	if len(cfg.KnowledgeBase) != 1 || cfg.KnowledgeBase[0].Category != "billing" {
		t.Errorf("KnowledgeBase = %+v", cfg.KnowledgeBase)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{"db_path": "/tmp/ticketflow.db"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9810" {
		t.Errorf("ListenAddr = %q, want default :9810", cfg.ListenAddr)
	}
	if cfg.AbilityTimeoutSec != 15 {
		t.Errorf("AbilityTimeoutSec = %d, want default 15", cfg.AbilityTimeoutSec)
	}
	if cfg.RateLimitPerMinute != 60 {
		t.Errorf("RateLimitPerMinute = %d, want default 60", cfg.RateLimitPerMinute)
	}
	if cfg.Escalation.EscalateBelow != 70 || cfg.Escalation.PriorityEscalateBelow != 90 {
		t.Errorf("Escalation = %+v, want defaults 70/90", cfg.Escalation)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.json"); err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{not valid json}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid JSON, got nil")
	}
}

func TestLoad_MissingDBPath(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `{"listen_addr": ":7777"}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing db_path, got nil")
	}
}

func TestLoad_InvalidThresholds(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "escalate_below above 100",
			body: `{"db_path": "/tmp/t.db", "escalation": {"escalate_below": 150, "priority_escalate_below": 160}}`,
		},
		{
			name: "priority threshold below base threshold",
			body: `{"db_path": "/tmp/t.db", "escalation": {"escalate_below": 80, "priority_escalate_below": 50}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.DBPath == "" {
		t.Error("Default DBPath empty")
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("Default config fails validation: %v", err)
	}
}
