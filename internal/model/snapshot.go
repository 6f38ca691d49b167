package model

import (
	"time"

	"github.com/amiyaDev/perfguard/internal/rules"
)

// BoundaryType classifies where a measured region sits structurally
type BoundaryType string

const (
	BoundaryInline   BoundaryType = "INLINE"
	BoundaryHOC      BoundaryType = "HOC"
	BoundaryPage     BoundaryType = "PAGE"
	BoundaryLayout   BoundaryType = "LAYOUT"
	BoundaryProvider BoundaryType = "PROVIDER"
)

// DefaultBoundary is assumed when a snapshot carries no boundary type.
const DefaultBoundary = BoundaryHOC

// Valid reports whether b is one of the known boundary types
func (b BoundaryType) Valid() bool {
	switch b {
	case BoundaryInline, BoundaryHOC, BoundaryPage, BoundaryLayout, BoundaryProvider:
		return true
	}
	return false
}

// OrDefault returns b, or DefaultBoundary when b is empty
func (b BoundaryType) OrDefault() BoundaryType {
	if b == "" {
		return DefaultBoundary
	}
	return b
}

// PhaseCounts counts renders per commit phase
type PhaseCounts struct {
	Mount  int `json:"mount"`
	Update int `json:"update"`
}

// Snapshot is one measurement window for one component. Snapshots are
// values and are never mutated after creation.
type Snapshot struct {
	Component    string       `json:"component"`
	Renders      int          `json:"renders"`
	AvgTime      float64      `json:"avgTime"`
	MaxTime      float64      `json:"maxTime"`
	BoundaryType BoundaryType `json:"boundaryType,omitempty"`
	PhaseCounts  PhaseCounts  `json:"phaseCounts"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Value returns the numeric value of a rule field. The second result is
// false when the snapshot has no such field.
func (s Snapshot) Value(field rules.Field) (float64, bool) {
	switch field {
	case rules.FieldAvgTime:
		return s.AvgTime, true
	case rules.FieldMaxTime:
		return s.MaxTime, true
	case rules.FieldRenders:
		return float64(s.Renders), true
	default:
		return 0, false
	}
}
