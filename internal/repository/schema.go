package repository

// Schema definitions for the Sentinel database.
// Compatible with both SQLite and PostgreSQL.

const schemaEvents = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    home_id TEXT NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    zone TEXT NOT NULL,
    camera TEXT NOT NULL,
    person_track TEXT NOT NULL,
    entry_point TEXT NOT NULL,
    rang_doorbell INTEGER NOT NULL DEFAULT 0,
    knocked INTEGER NOT NULL DEFAULT 0,
    dwell_seconds REAL NOT NULL DEFAULT 0,
    public_path INTEGER NOT NULL DEFAULT 0,
    known_face INTEGER NOT NULL DEFAULT 0,
    away_prob REAL NOT NULL DEFAULT 0,
    expected_window INTEGER NOT NULL DEFAULT 0,
    token TEXT,
    evidence TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_home ON events(home_id);
CREATE INDEX IF NOT EXISTS idx_events_zone ON events(home_id, zone, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(home_id, timestamp);
`

const schemaAssessments = `
CREATE TABLE IF NOT EXISTS assessments (
    id TEXT PRIMARY KEY,
    home_id TEXT NOT NULL,
    incident_id INTEGER NOT NULL,
    person_track TEXT NOT NULL,
    decision TEXT NOT NULL,
    hint TEXT NOT NULL,
    probability REAL NOT NULL,
    raw_logit REAL NOT NULL,
    fused_evidence TEXT NOT NULL,
    summary TEXT,
    questions TEXT,
    counterfactuals TEXT,
    suppressed_count INTEGER NOT NULL DEFAULT 0,
    metadata TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_assessments_home ON assessments(home_id);
CREATE INDEX IF NOT EXISTS idx_assessments_incident ON assessments(home_id, incident_id);
CREATE INDEX IF NOT EXISTS idx_assessments_created ON assessments(home_id, created_at);
`

const schemaOutcomes = `
CREATE TABLE IF NOT EXISTS outcomes (
    id TEXT PRIMARY KEY,
    home_id TEXT NOT NULL,
    assessment_id TEXT,
    raw_logit REAL NOT NULL,
    was_threat INTEGER NOT NULL,
    recorded_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_home ON outcomes(home_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_recorded ON outcomes(home_id, recorded_at);
`

const schemaPolicies = `
CREATE TABLE IF NOT EXISTS policies (
    id TEXT NOT NULL,
    home_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    action TEXT NOT NULL,
    reason TEXT,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, home_id)
);

CREATE INDEX IF NOT EXISTS idx_policies_home ON policies(home_id);
CREATE INDEX IF NOT EXISTS idx_policies_enabled ON policies(home_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaEvents,
		schemaAssessments,
		schemaOutcomes,
		schemaPolicies,
	}
}
