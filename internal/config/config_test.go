package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got %v", err)
	}

	if cfg.FlushInterval != 5*time.Second {
		t.Errorf("expected 5s flush interval, got %s", cfg.FlushInterval)
	}
	if cfg.HistoryCapacity != 10 || cfg.MissingThreshold != 3 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.LogCooldown != 30*time.Second || cfg.ResolvedRetain != 10*time.Second {
		t.Errorf("unexpected lifecycle defaults %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"zero flush interval", func(c *Config) { c.FlushInterval = 0 }, true},
		{"zero timeout", func(c *Config) { c.EvaluateTimeout = 0 }, true},
		{"zero history", func(c *Config) { c.HistoryCapacity = 0 }, true},
		{"zero missing threshold", func(c *Config) { c.MissingThreshold = 0 }, true},
		{"negative cooldown", func(c *Config) { c.LogCooldown = -time.Second }, true},
		{"zero cooldown", func(c *Config) { c.LogCooldown = 0 }, false},
		{"negative slow render", func(c *Config) { c.SlowRenderMillis = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{SlowRenderEnv: "24"}
	cfg := DefaultConfig()

	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}
	if cfg.SlowRenderMillis != 24 {
		t.Errorf("expected 24ms override, got %v", cfg.SlowRenderMillis)
	}

	env[SlowRenderEnv] = "fast"
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err == nil {
		t.Error("expected error for non-numeric override")
	}
}

func TestSubConfigs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistoryCapacity = 7
	cfg.MissingThreshold = 5

	if got := cfg.Dispatch().HistoryCapacity; got != 7 {
		t.Errorf("expected history capacity 7, got %d", got)
	}
	if got := cfg.Lifecycle().MissingThreshold; got != 5 {
		t.Errorf("expected missing threshold 5, got %d", got)
	}
}
