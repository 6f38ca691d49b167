package lifecycle

import (
	"testing"
	"time"
)

func TestCooldown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newCooldown(30 * time.Second)

	tests := []struct {
		key      string
		offset   time.Duration
		expected bool
	}{
		{"a", 0, true},
		{"a", time.Second, false},
		{"b", time.Second, true},
		{"a", 29 * time.Second, false},
		{"a", 31 * time.Second, true},
		{"a", 32 * time.Second, false},
	}

	for _, tt := range tests {
		if got := c.Allow(tt.key, start.Add(tt.offset)); got != tt.expected {
			t.Errorf("Allow(%s, +%v) = %v, want %v", tt.key, tt.offset, got, tt.expected)
		}
	}

	c.Prune(start.Add(45 * time.Second))
	if c.size() != 1 {
		t.Errorf("expected only the recently allowed key to remain, got %d", c.size())
	}
}

func TestCooldown_Disabled(t *testing.T) {
	c := newCooldown(0)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !c.Allow("a", now) {
			t.Fatal("expected zero cooldown to always allow")
		}
	}
}
