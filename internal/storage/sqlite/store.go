package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amiyaDev/perfguard/internal/rules"
	"github.com/amiyaDev/perfguard/internal/storage"
	_ "github.com/mattn/go-sqlite3"
)

// Store implements AuditStorage using SQLite
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite storage with the given database path
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Run migrations
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// StoreRuleDefinition persists a rule definition
func (s *Store) StoreRuleDefinition(rule rules.Rule) error {
	specJSON, err := json.Marshal(rule.Spec())
	if err != nil {
		return fmt.Errorf("failed to marshal rule: %w", err)
	}

	query := `
		INSERT INTO rule_definitions (id, category, base_severity, kind, dominant, hint, spec_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			base_severity = excluded.base_severity,
			kind = excluded.kind,
			dominant = excluded.dominant,
			hint = excluded.hint,
			spec_json = excluded.spec_json,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = s.db.Exec(query,
		rule.ID,
		string(rule.Category),
		string(rule.BaseSeverity),
		rule.Kind(),
		rule.Dominant,
		rule.Hint,
		string(specJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to store rule definition: %w", err)
	}

	return nil
}

// StoreBatch persists a batch and one audit row per emitted issue in a
// single transaction
func (s *Store) StoreBatch(batch storage.BatchRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO batches (id, entity_count, has_critical, timestamp) VALUES (?, ?, ?, ?)`,
		batch.ID, len(batch.Entities), batch.HasCritical, batch.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to store batch: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO evaluations (
			batch_id, component, boundary_type, rule_id, severity, confidence,
			reason, metrics_json, timestamp
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare evaluation insert: %w", err)
	}
	defer stmt.Close()

	for _, entity := range batch.Entities {
		metricsJSON, err := json.Marshal(entity.Metrics)
		if err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}

		for _, issue := range entity.Issues {
			_, err := stmt.Exec(
				batch.ID,
				entity.Component,
				string(entity.BoundaryType),
				issue.RuleID,
				string(issue.Severity),
				issue.Confidence,
				issue.Reason,
				string(metricsJSON),
				batch.Timestamp,
			)
			if err != nil {
				return fmt.Errorf("failed to store evaluation: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// QueryAudit retrieves audit records with optional filtering
func (s *Store) QueryAudit(filter storage.AuditFilter) ([]storage.AuditRecord, error) {
	query := `
		SELECT id, batch_id, component, boundary_type, rule_id, severity, confidence,
		       reason, metrics_json, timestamp, created_at
		FROM evaluations
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.BatchID != "" {
		query += " AND batch_id = ?"
		args = append(args, filter.BatchID)
	}

	if filter.Component != "" {
		query += " AND component = ?"
		args = append(args, filter.Component)
	}

	if filter.RuleID != "" {
		query += " AND rule_id = ?"
		args = append(args, filter.RuleID)
	}

	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, filter.Severity)
	}

	if filter.StartTime != nil {
		query += " AND timestamp >= ?"
		args = append(args, *filter.StartTime)
	}

	if filter.EndTime != nil {
		query += " AND timestamp <= ?"
		args = append(args, *filter.EndTime)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100" // Default limit
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer rows.Close()

	var records []storage.AuditRecord
	for rows.Next() {
		var record storage.AuditRecord
		var metricsJSON string

		err := rows.Scan(
			&record.ID,
			&record.BatchID,
			&record.Component,
			&record.BoundaryType,
			&record.RuleID,
			&record.Severity,
			&record.Confidence,
			&record.Reason,
			&metricsJSON,
			&record.Timestamp,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(metricsJSON), &record.Metrics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metrics: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// UpsertIssue inserts or updates the issue row for a fingerprint. first_seen
// is kept from the original insert; a reappearing issue clears resolved_at.
func (s *Store) UpsertIssue(issue storage.IssueRecord) error {
	firstSeen := issue.FirstSeen
	if firstSeen.IsZero() {
		firstSeen = issue.LastSeen
	}

	query := `
		INSERT INTO issues (
			id, component, rule_id, severity, confidence, boundary_type,
			status, reason, first_seen, last_seen
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			confidence = excluded.confidence,
			boundary_type = excluded.boundary_type,
			status = excluded.status,
			reason = excluded.reason,
			last_seen = excluded.last_seen,
			resolved_at = NULL,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.Exec(query,
		issue.ID,
		issue.Component,
		issue.RuleID,
		issue.Severity,
		issue.Confidence,
		issue.BoundaryType,
		issue.Status,
		issue.Reason,
		firstSeen,
		issue.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert issue: %w", err)
	}

	return nil
}

// ResolveIssue marks an issue resolved
func (s *Store) ResolveIssue(id string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE issues SET status = 'RESOLVED', resolved_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve issue: %w", err)
	}
	return nil
}

// ListIssues retrieves issue rows, most recently seen first
func (s *Store) ListIssues(filter storage.IssueFilter) ([]storage.IssueRecord, error) {
	query := `
		SELECT id, component, rule_id, severity, confidence, boundary_type,
		       status, reason, first_seen, last_seen, resolved_at
		FROM issues
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.Component != "" {
		query += " AND component = ?"
		args = append(args, filter.Component)
	}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY last_seen DESC, id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer rows.Close()

	var records []storage.IssueRecord
	for rows.Next() {
		record, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return records, nil
}

// GetIssue retrieves one issue row
func (s *Store) GetIssue(id string) (*storage.IssueRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, component, rule_id, severity, confidence, boundary_type,
		       status, reason, first_seen, last_seen, resolved_at
		FROM issues
		WHERE id = ?
	`, id)

	record, err := scanIssue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanIssue(row scanner) (*storage.IssueRecord, error) {
	var record storage.IssueRecord
	var resolvedAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.Component,
		&record.RuleID,
		&record.Severity,
		&record.Confidence,
		&record.BoundaryType,
		&record.Status,
		&record.Reason,
		&record.FirstSeen,
		&record.LastSeen,
		&resolvedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan issue: %w", err)
	}

	if resolvedAt.Valid {
		t := resolvedAt.Time
		record.ResolvedAt = &t
	}
	return &record, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}
