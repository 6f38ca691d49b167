package lifecycle

import (
	"time"

	"github.com/amiyaDev/perfguard/internal/storage"
)

// StorageSink persists rows through an IssueStorage
type StorageSink struct {
	storage storage.IssueStorage
}

// NewStorageSink wraps an issue storage backend
func NewStorageSink(s storage.IssueStorage) *StorageSink {
	return &StorageSink{storage: s}
}

func (s *StorageSink) Upsert(row Row) error {
	return s.storage.UpsertIssue(storage.IssueRecord{
		ID:           row.ID,
		Component:    row.Component,
		RuleID:       row.RuleID,
		Severity:     string(row.Severity),
		Confidence:   row.Confidence,
		BoundaryType: string(row.BoundaryType),
		Status:       string(row.Status),
		Reason:       row.Reason,
		LastSeen:     row.LastSeen,
	})
}

func (s *StorageSink) Resolve(id string, at time.Time) error {
	return s.storage.ResolveIssue(id, at)
}
