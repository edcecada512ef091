package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Enabled:                      true,
		MaxValidationTime:            100 * time.Millisecond,
		WorkerPoolSize:               4,
		BlockThreshold:               0.8,
		FlagThreshold:                0.5,
		DetectionConfidenceThreshold: 0.5,
		RecentAlertsSize:             100,
		MetricsRetentionDays:         90,
		CacheSize:                    1000,
	}
}

func TestValidate_OK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"block threshold above 1", func(c *Config) { c.BlockThreshold = 1.5 }, "block threshold"},
		{"negative flag threshold", func(c *Config) { c.FlagThreshold = -0.1 }, "flag threshold"},
		{"flag above block", func(c *Config) { c.FlagThreshold = 0.9 }, "exceeds block threshold"},
		{"zero budget", func(c *Config) { c.MaxValidationTime = 0 }, "max validation time"},
		{"zero pool", func(c *Config) { c.WorkerPoolSize = 0 }, "worker pool"},
		{"negative cache", func(c *Config) { c.CacheSize = -1 }, "cache size"},
		{"zero retention", func(c *Config) { c.MetricsRetentionDays = 0 }, "retention"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestParseList(t *testing.T) {
	got := parseList(" system prompt , ignore previous,, ")
	if len(got) != 2 || got[0] != "system prompt" || got[1] != "ignore previous" {
		t.Errorf("unexpected entries: %v", got)
	}
	if parseList("") != nil {
		t.Error("empty input should produce nil")
	}
}

func TestParseDisabledDetectors(t *testing.T) {
	m := parseDisabledDetectors("scope, multilingual ,")
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m))
	}
	if v, ok := m["scope"]; !ok || v {
		t.Errorf("scope should be present and disabled")
	}
	if v, ok := m["multilingual"]; !ok || v {
		t.Errorf("multilingual should be present and disabled")
	}
	if parseDisabledDetectors("") != nil {
		t.Error("empty input should produce nil map")
	}
}
