package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAOCDefaultsOnMissingFile(t *testing.T) {
	cfg, err := LoadAOC(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.MaxErrors != 0 || cfg.Concurrency != 0 {
		t.Fatalf("missing file should yield the zero config, got %+v", cfg)
	}
}

func TestLoadAOCParsesFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aoc.yaml")
	content := `
max_errors: 5
cooldown_seconds: 120
concurrency: 2
deadline_seconds: 60
max_tool_calls:
  macro: 4
cache_ttl_hours:
  macro: 12
timeout_seconds: 3
intl_keywords: ["美联储", "原油"]
anomaly_threshold_pct: 2.5
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadAOC(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.MaxErrors != 5 {
		t.Fatalf("max_errors = %d, want 5", cfg.MaxErrors)
	}
	if cfg.Cooldown() != 2*time.Minute {
		t.Fatalf("cooldown = %v, want 2m", cfg.Cooldown())
	}
	if cfg.MaxToolCalls["macro"] != 4 {
		t.Fatalf("max_tool_calls.macro = %d, want 4", cfg.MaxToolCalls["macro"])
	}
	if cfg.CacheTTLHours.Macro != 12 {
		t.Fatalf("cache_ttl_hours.macro = %d, want 12", cfg.CacheTTLHours.Macro)
	}
	if len(cfg.IntlKeywords) != 2 {
		t.Fatalf("intl_keywords = %v", cfg.IntlKeywords)
	}
}

func TestLoadAgents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.yaml")
	content := `
active_provider: gemini
agents:
  technical:
    provider: deepseek
    description: indicator analyst
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadAgents(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ActiveProvider != "gemini" {
		t.Fatalf("active_provider = %q", cfg.ActiveProvider)
	}
	if cfg.Agents["technical"].Provider != "deepseek" {
		t.Fatalf("technical override = %q", cfg.Agents["technical"].Provider)
	}
}
