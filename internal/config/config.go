package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/amiyaDev/perfguard/internal/dispatch"
	"github.com/amiyaDev/perfguard/internal/lifecycle"
)

// SlowRenderEnv overrides the SLOW_RENDER threshold in milliseconds
const SlowRenderEnv = "PERFGUARD_SLOW_RENDER_MS"

// Config holds server configuration
type Config struct {
	// Server settings
	Port int
	Host string

	// Rule settings
	RulesFile        string  // empty uses the built-in catalogue
	SlowRenderMillis float64 // 0 keeps the catalogue value

	// Storage settings
	DBPath string // empty disables audit storage

	// Evaluation settings
	FlushInterval    time.Duration
	EvaluateTimeout  time.Duration
	HistoryCapacity  int
	MissingThreshold int
	LogCooldown      time.Duration
	ResolvedRetain   time.Duration

	// Operational settings
	GracefulShutdownTimeout time.Duration
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %s", c.FlushInterval)
	}

	if c.EvaluateTimeout <= 0 {
		return fmt.Errorf("evaluate timeout must be positive, got %s", c.EvaluateTimeout)
	}

	if c.HistoryCapacity < 1 {
		return fmt.Errorf("history capacity must be at least 1, got %d", c.HistoryCapacity)
	}

	if c.MissingThreshold < 1 {
		return fmt.Errorf("missing threshold must be at least 1, got %d", c.MissingThreshold)
	}

	if c.LogCooldown < 0 {
		return fmt.Errorf("log cooldown cannot be negative, got %s", c.LogCooldown)
	}

	if c.ResolvedRetain < 0 {
		return fmt.Errorf("resolved retention cannot be negative, got %s", c.ResolvedRetain)
	}

	if c.SlowRenderMillis < 0 {
		return fmt.Errorf("slow render threshold cannot be negative, got %v", c.SlowRenderMillis)
	}

	return nil
}

// ApplyEnv applies environment overrides
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := getenv(SlowRenderEnv); v != "" {
		ms, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", SlowRenderEnv, err)
		}
		c.SlowRenderMillis = ms
	}

	return nil
}

// Dispatch returns the dispatch loop settings
func (c *Config) Dispatch() dispatch.Config {
	return dispatch.Config{
		FlushInterval:   c.FlushInterval,
		EvaluateTimeout: c.EvaluateTimeout,
		HistoryCapacity: c.HistoryCapacity,
	}
}

// Lifecycle returns the lifecycle manager settings
func (c *Config) Lifecycle() lifecycle.Config {
	return lifecycle.Config{
		MissingThreshold: c.MissingThreshold,
		Cooldown:         c.LogCooldown,
	}
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	d := dispatch.DefaultConfig()
	l := lifecycle.DefaultConfig()
	return Config{
		Port:                    8080,
		Host:                    "0.0.0.0",
		FlushInterval:           d.FlushInterval,
		EvaluateTimeout:         d.EvaluateTimeout,
		HistoryCapacity:         d.HistoryCapacity,
		MissingThreshold:        l.MissingThreshold,
		LogCooldown:             l.Cooldown,
		ResolvedRetain:          lifecycle.DefaultRetention,
		GracefulShutdownTimeout: 30 * time.Second,
	}
}
