package engine

import (
	"github.com/amiyaDev/perfguard/internal/model"
	"github.com/amiyaDev/perfguard/internal/rules"
)

// MinTrendHistory is the number of prior snapshots a trend rule needs.
const MinTrendHistory = 5

// Issue is the result of one rule firing for one snapshot
type Issue struct {
	RuleID     string         `json:"ruleId"`
	Severity   rules.Severity `json:"severity"`
	Confidence float64        `json:"confidence"`
	Reason     string         `json:"reason"`
}

// Metrics summarises the snapshot an entity result was produced from
type Metrics struct {
	Renders int     `json:"renders"`
	AvgTime float64 `json:"avgTime"`
	MaxTime float64 `json:"maxTime"`
}

// EntityResult groups the issues one snapshot produced
type EntityResult struct {
	Component    string             `json:"component"`
	BoundaryType model.BoundaryType `json:"boundaryType"`
	Metrics      Metrics            `json:"metrics"`
	Issues       []Issue            `json:"issues"`
	HasCritical  bool               `json:"hasCritical,omitempty"`
}

// Stats describes the engine's retained state
type Stats struct {
	EntitiesTracked        int `json:"entitiesTracked"`
	TotalSnapshotsRetained int `json:"totalSnapshotsRetained"`
	RulesLoaded            int `json:"rulesLoaded"`
}

// TrendResult is the outcome of fitting a slope over a series
type TrendResult struct {
	Direction rules.Direction
	Change    float64 // absolute percentage change
}
