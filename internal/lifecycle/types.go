package lifecycle

import (
	"time"

	"github.com/amiyaDev/perfguard/internal/model"
	"github.com/amiyaDev/perfguard/internal/rules"
)

// Status is the externally visible state of an issue
type Status string

const (
	StatusNew      Status = "NEW"
	StatusActive   Status = "ACTIVE"
	StatusResolved Status = "RESOLVED"
)

// Row is the externally visible form of a tracked issue
type Row struct {
	ID           string             `json:"id"`
	Component    string             `json:"component"`
	RuleID       string             `json:"ruleId"`
	Severity     rules.Severity     `json:"severity"`
	Confidence   float64            `json:"confidence"`
	BoundaryType model.BoundaryType `json:"boundaryType"`
	Status       Status             `json:"status"`
	LastSeen     time.Time          `json:"lastSeen"`
	Reason       string             `json:"reason"`
}

// Fingerprint identifies an issue across batches
func Fingerprint(component, ruleID string, severity rules.Severity) string {
	return component + "::" + ruleID + "::" + string(severity)
}

// Sink receives row changes from the manager
type Sink interface {
	Upsert(row Row) error
	Resolve(id string, at time.Time) error
}

// Notifier receives lifecycle events worth telling a human about
type Notifier interface {
	NewIssue(row Row)
	Critical(row Row)
	Resolved(row Row)
}

// Summary counts the transitions produced by one batch
type Summary struct {
	New      int `json:"new"`
	Active   int `json:"active"`
	Resolved int `json:"resolved"`
}

// Config tunes the manager
type Config struct {
	// MissingThreshold is the number of consecutive absent batches after
	// which an issue is resolved
	MissingThreshold int

	// Cooldown limits repeated notifications per fingerprint
	Cooldown time.Duration
}

// DefaultConfig returns the default lifecycle settings
func DefaultConfig() Config {
	return Config{
		MissingThreshold: 3,
		Cooldown:         30 * time.Second,
	}
}
