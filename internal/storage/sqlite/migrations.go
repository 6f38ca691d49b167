package sqlite

// Schema defines the SQLite database schema
const Schema = `
-- Rule definitions table
CREATE TABLE IF NOT EXISTS rule_definitions (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	base_severity TEXT NOT NULL,
	kind TEXT NOT NULL,
	dominant BOOLEAN NOT NULL DEFAULT 0,
	hint BOOLEAN NOT NULL DEFAULT 0,
	spec_json TEXT NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Evaluated batches
CREATE TABLE IF NOT EXISTS batches (
	id TEXT PRIMARY KEY,
	entity_count INTEGER NOT NULL,
	has_critical BOOLEAN NOT NULL DEFAULT 0,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_batches_timestamp ON batches(timestamp DESC);

-- Evaluations audit table (one row per emitted issue)
CREATE TABLE IF NOT EXISTS evaluations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	batch_id TEXT NOT NULL,
	component TEXT NOT NULL,
	boundary_type TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	confidence REAL NOT NULL,
	reason TEXT NOT NULL,
	metrics_json TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (batch_id) REFERENCES batches(id)
);

CREATE INDEX IF NOT EXISTS idx_evaluations_batch_id ON evaluations(batch_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_component ON evaluations(component);
CREATE INDEX IF NOT EXISTS idx_evaluations_rule_id ON evaluations(rule_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_severity ON evaluations(severity);
CREATE INDEX IF NOT EXISTS idx_evaluations_timestamp ON evaluations(timestamp DESC);

-- Issue state table (one row per fingerprint)
CREATE TABLE IF NOT EXISTS issues (
	id TEXT PRIMARY KEY,
	component TEXT NOT NULL,
	rule_id TEXT NOT NULL,
	severity TEXT NOT NULL,
	confidence REAL NOT NULL,
	boundary_type TEXT NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL,
	first_seen TIMESTAMP NOT NULL,
	last_seen TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_issues_component ON issues(component);
CREATE INDEX IF NOT EXISTS idx_issues_status ON issues(status);
`
