// Package config loads the AOC's YAML-driven tunables, following the same
// read-file-then-yaml.Unmarshal shape cmd/api uses for config/models.yaml.
// Missing files and missing fields fall back to the documented defaults so
// a bare checkout still runs.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"marketaoc/pkg/core/agent"
)

// AOC is the schema of config/aoc.yaml.
type AOC struct {
	// Health registry thresholds.
	MaxErrors       int `yaml:"max_errors"`
	CooldownSeconds int `yaml:"cooldown_seconds"`

	// Scheduler.
	Concurrency     int `yaml:"concurrency"`
	DeadlineSeconds int `yaml:"deadline_seconds"`

	// Per-node tool-call budgets, keyed by analyst kind. Unset kinds keep
	// the per-node defaults compiled into the analyst specs.
	MaxToolCalls map[string]int `yaml:"max_tool_calls"`

	// Cache TTLs in hours; snapshot TTL stays fixed at 5 minutes in the
	// memory tier and is deliberately not configurable here.
	CacheTTLHours struct {
		Macro    int `yaml:"macro"`
		Policy   int `yaml:"policy"`
		Sector   int `yaml:"sector"`
		Artifact int `yaml:"artifact"`
	} `yaml:"cache_ttl_hours"`

	// Facade per-call timeout in seconds.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// International-news fallback keyword filter.
	IntlKeywords []string `yaml:"intl_keywords"`

	// Closing-snapshot anomaly threshold in percent.
	AnomalyThresholdPct float64 `yaml:"anomaly_threshold_pct"`
}

// Cooldown returns the configured cooldown as a duration.
func (c AOC) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// Deadline returns the configured top-level analysis deadline.
func (c AOC) Deadline() time.Duration {
	return time.Duration(c.DeadlineSeconds) * time.Second
}

// Timeout returns the configured facade per-call timeout.
func (c AOC) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LoadAOC reads config/aoc.yaml (or the given path). A missing file is not
// an error: the zero AOC is returned and every consumer applies its own
// spec default for zero fields.
func LoadAOC(path string) (AOC, error) {
	var cfg AOC
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// LoadAgents reads config/models.yaml into the agent-provider map. Missing
// file returns a zero config, which agent.Manager handles by falling back
// to its default provider.
func LoadAgents(path string) (agent.Config, error) {
	var cfg agent.Config
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}
