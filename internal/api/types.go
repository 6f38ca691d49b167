package api

import (
	"time"

	"github.com/amiyaDev/perfguard/internal/collector"
	"github.com/amiyaDev/perfguard/internal/engine"
	"github.com/amiyaDev/perfguard/internal/lifecycle"
	"github.com/amiyaDev/perfguard/internal/model"
)

// RenderBatchRequest carries raw render samples
type RenderBatchRequest struct {
	Samples []collector.RenderSample `json:"samples" validate:"required,min=1,max=10000,dive"`
}

// SnapshotBatchRequest carries producer-built snapshots
type SnapshotBatchRequest struct {
	Snapshots []SnapshotPayload `json:"snapshots" validate:"required,min=1,max=10000,dive"`
}

// SnapshotPayload is a snapshot as accepted over HTTP
type SnapshotPayload struct {
	Component    string             `json:"component" validate:"required,max=512"`
	Renders      int                `json:"renders" validate:"gte=0"`
	AvgTime      float64            `json:"avgTime" validate:"gte=0"`
	MaxTime      float64            `json:"maxTime" validate:"gte=0"`
	BoundaryType model.BoundaryType `json:"boundaryType,omitempty" validate:"omitempty,oneof=INLINE HOC PAGE LAYOUT PROVIDER"`
	PhaseCounts  model.PhaseCounts  `json:"phaseCounts"`
	Timestamp    time.Time          `json:"timestamp,omitempty"`
}

// Snapshot converts the payload into a model snapshot
func (p SnapshotPayload) Snapshot() model.Snapshot {
	return model.Snapshot{
		Component:    p.Component,
		Renders:      p.Renders,
		AvgTime:      p.AvgTime,
		MaxTime:      p.MaxTime,
		BoundaryType: p.BoundaryType,
		PhaseCounts:  p.PhaseCounts,
		Timestamp:    p.Timestamp,
	}
}

// IngestResponse acknowledges accepted samples or snapshots
type IngestResponse struct {
	Accepted int `json:"accepted"`
}

// EvaluateResponse is the outcome of a forced flush
type EvaluateResponse struct {
	BatchID     string                `json:"batchId,omitempty"`
	Snapshots   int                   `json:"snapshots"`
	Results     []engine.EntityResult `json:"results"`
	HasCritical bool                  `json:"hasCritical"`
	Timestamp   time.Time             `json:"timestamp"`
	Summary     lifecycle.Summary     `json:"summary"`
}

// IssueListResponse lists visible issue rows
type IssueListResponse struct {
	Issues []lifecycle.Row `json:"issues"`
	Total  int             `json:"total"`
}

// IssueHistoryResponse lists persisted issue rows
type IssueHistoryResponse struct {
	Issues []IssueRecordResponse `json:"issues"`
	Total  int                   `json:"total"`
}

// IssueRecordResponse is a persisted issue row
type IssueRecordResponse struct {
	ID           string     `json:"id"`
	Component    string     `json:"component"`
	RuleID       string     `json:"ruleId"`
	Severity     string     `json:"severity"`
	Confidence   float64    `json:"confidence"`
	BoundaryType string     `json:"boundaryType"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason"`
	FirstSeen    time.Time  `json:"firstSeen"`
	LastSeen     time.Time  `json:"lastSeen"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
}

// RuleListResponse lists the loaded rules
type RuleListResponse struct {
	Rules []RuleSummary `json:"rules"`
}

// RuleSummary contains summary information about a rule
type RuleSummary struct {
	ID                  string  `json:"id"`
	Category            string  `json:"category"`
	BaseSeverity        string  `json:"baseSeverity"`
	Kind                string  `json:"kind"`
	ConfidenceThreshold float64 `json:"confidenceThreshold"`
	Dominant            bool    `json:"dominant,omitempty"`
	Hint                bool    `json:"hint,omitempty"`
	MessageTemplate     string  `json:"messageTemplate"`
	DocURL              string  `json:"docUrl,omitempty"`
}

// StatsResponse reports retained engine state and lifecycle tracking
type StatsResponse struct {
	engine.Stats
	IssuesVisible int `json:"issuesVisible"`
}

// ResetResponse acknowledges a history reset
type ResetResponse struct {
	Status string `json:"status"`
}

// AuditResponse lists audit records
type AuditResponse struct {
	Records []AuditRecordResponse `json:"records"`
	Total   int                   `json:"total"`
}

// AuditRecordResponse is one audited issue
type AuditRecordResponse struct {
	ID           int64          `json:"id"`
	BatchID      string         `json:"batchId"`
	Component    string         `json:"component"`
	BoundaryType string         `json:"boundaryType"`
	RuleID       string         `json:"ruleId"`
	Severity     string         `json:"severity"`
	Confidence   float64        `json:"confidence"`
	Reason       string         `json:"reason"`
	Metrics      engine.Metrics `json:"metrics"`
	Timestamp    time.Time      `json:"timestamp"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Ready       bool     `json:"ready"`
	RulesLoaded int      `json:"rulesLoaded"`
	Reasons     []string `json:"reasons,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
