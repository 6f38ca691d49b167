// Package collector buffers raw render timings and producer-built snapshots
// between flushes.
package collector

import (
	"sync"
	"time"

	"github.com/amiyaDev/perfguard/internal/model"
)

// Phase is the commit phase a render sample was taken in
type Phase string

const (
	PhaseMount        Phase = "mount"
	PhaseUpdate       Phase = "update"
	PhaseNestedUpdate Phase = "nested-update"
)

// RenderSample is a single profiled render
type RenderSample struct {
	Component      string             `json:"component" validate:"required"`
	Phase          Phase              `json:"phase" validate:"omitempty,oneof=mount update nested-update"`
	ActualDuration float64            `json:"actualDuration" validate:"gte=0"`
	BaseDuration   float64            `json:"baseDuration,omitempty" validate:"gte=0"`
	BoundaryType   model.BoundaryType `json:"boundaryType,omitempty" validate:"omitempty,oneof=INLINE HOC PAGE LAYOUT PROVIDER"`
}

type aggregate struct {
	renders      int
	totalTime    float64
	maxTime      float64
	boundaryType model.BoundaryType
	phaseCounts  model.PhaseCounts
}

// Collector is safe for concurrent use
type Collector struct {
	mu       sync.Mutex
	order    []string
	buffer   map[string]*aggregate
	enqueued []model.Snapshot
}

// New creates an empty collector
func New() *Collector {
	return &Collector{
		buffer: make(map[string]*aggregate),
	}
}

// Collect folds one render sample into its component's aggregate. The
// boundary type of the first sample in a window is kept.
func (c *Collector) Collect(s RenderSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	agg, ok := c.buffer[s.Component]
	if !ok {
		agg = &aggregate{boundaryType: s.BoundaryType}
		c.buffer[s.Component] = agg
		c.order = append(c.order, s.Component)
	}

	agg.renders++
	agg.totalTime += s.ActualDuration
	if s.ActualDuration > agg.maxTime {
		agg.maxTime = s.ActualDuration
	}

	switch s.Phase {
	case PhaseMount:
		agg.phaseCounts.Mount++
	case PhaseUpdate:
		agg.phaseCounts.Update++
	}
}

// Enqueue buffers a snapshot that was aggregated elsewhere
func (c *Collector) Enqueue(snaps ...model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.enqueued = append(c.enqueued, snaps...)
}

// Pending reports whether a flush would return anything
func (c *Collector) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.order) > 0 || len(c.enqueued) > 0
}

// Flush returns aggregated snapshots in first-seen order followed by enqueued
// snapshots, and empties the buffer. Aggregates are stamped with now;
// enqueued snapshots without a timestamp get now as well.
func (c *Collector) Flush(now time.Time) []model.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	batch := make([]model.Snapshot, 0, len(c.order)+len(c.enqueued))

	for _, component := range c.order {
		agg := c.buffer[component]

		avg := 0.0
		if agg.renders > 0 {
			avg = agg.totalTime / float64(agg.renders)
		}

		batch = append(batch, model.Snapshot{
			Component:    component,
			Renders:      agg.renders,
			AvgTime:      avg,
			MaxTime:      agg.maxTime,
			BoundaryType: agg.boundaryType,
			PhaseCounts:  agg.phaseCounts,
			Timestamp:    now,
		})
	}

	for _, snap := range c.enqueued {
		if snap.Timestamp.IsZero() {
			snap.Timestamp = now
		}
		batch = append(batch, snap)
	}

	c.order = nil
	c.buffer = make(map[string]*aggregate)
	c.enqueued = nil

	return batch
}
