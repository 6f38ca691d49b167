package storage

import (
	"time"

	"github.com/amiyaDev/perfguard/internal/engine"
	"github.com/amiyaDev/perfguard/internal/rules"
)

// IssueStorage persists the current state of tracked issues
type IssueStorage interface {
	// UpsertIssue inserts or updates an issue row keyed by its fingerprint
	UpsertIssue(issue IssueRecord) error

	// ResolveIssue marks an issue resolved. Unknown ids are ignored.
	ResolveIssue(id string, at time.Time) error
}

// AuditStorage defines the interface for persisting evaluation results
type AuditStorage interface {
	IssueStorage

	// StoreRuleDefinition persists a rule definition
	StoreRuleDefinition(rule rules.Rule) error

	// StoreBatch persists the results of one evaluation batch
	StoreBatch(batch BatchRecord) error

	// QueryAudit retrieves audit records with optional filtering
	QueryAudit(filter AuditFilter) ([]AuditRecord, error)

	// ListIssues retrieves persisted issue rows
	ListIssues(filter IssueFilter) ([]IssueRecord, error)

	// GetIssue retrieves one issue row, nil when absent
	GetIssue(id string) (*IssueRecord, error)

	// Close closes the storage connection
	Close() error
}

// BatchRecord is one evaluated batch
type BatchRecord struct {
	ID          string
	Entities    []engine.EntityResult
	HasCritical bool
	Timestamp   time.Time
}

// AuditFilter defines filtering options for audit queries
type AuditFilter struct {
	BatchID   string
	Component string
	RuleID    string
	Severity  string
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
	Offset    int
}

// AuditRecord is one issue produced by one batch
type AuditRecord struct {
	ID           int64
	BatchID      string
	Component    string
	BoundaryType string
	RuleID       string
	Severity     string
	Confidence   float64
	Reason       string
	Metrics      engine.Metrics
	Timestamp    time.Time
	CreatedAt    time.Time
}

// IssueFilter defines filtering options for issue queries
type IssueFilter struct {
	Component string
	Status    string
	Limit     int
}

// IssueRecord is the persisted state of one fingerprint
type IssueRecord struct {
	ID           string
	Component    string
	RuleID       string
	Severity     string
	Confidence   float64
	BoundaryType string
	Status       string
	Reason       string
	FirstSeen    time.Time
	LastSeen     time.Time
	ResolvedAt   *time.Time
}
