// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/novinai/sentinel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveEvent appends an event to the audit log with home isolation.
func (r *SQLRepository) SaveEvent(ctx context.Context, homeID string, ev *domain.Event) error {
	if homeID == "" {
		return fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	evidence, _ := json.Marshal(ev.Evidence)

	query := `
		INSERT INTO events (
			id, home_id, timestamp, zone, camera, person_track,
			entry_point, rang_doorbell, knocked, dwell_seconds, public_path,
			known_face, away_prob, expected_window, token, evidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		ev.ID, homeID, ev.Timestamp, ev.Zone, ev.Camera, ev.PersonTrack,
		string(ev.EntryPoint), b2i(ev.RangDoorbell), b2i(ev.Knocked),
		ev.DwellSeconds, b2i(ev.PublicPath),
		b2i(ev.KnownFace), ev.AwayProb, b2i(ev.ExpectedWindow),
		string(ev.Token), string(evidence), time.Now().UTC(),
	)
	return err
}

// GetEvent retrieves an event by ID with home isolation.
func (r *SQLRepository) GetEvent(ctx context.Context, homeID string, eventID string) (*domain.Event, error) {
	if homeID == "" {
		return nil, fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, timestamp, zone, camera, person_track,
			   entry_point, rang_doorbell, knocked, dwell_seconds, public_path,
			   known_face, away_prob, expected_window, token, evidence
		FROM events
		WHERE home_id = ? AND id = ?
	`

	var ev domain.Event
	var entryPoint, token, evidence string
	var rang, knocked, publicPath, knownFace, expected int

	err := r.db.QueryRowContext(ctx, r.rebind(query), homeID, eventID).Scan(
		&ev.ID, &ev.Timestamp, &ev.Zone, &ev.Camera, &ev.PersonTrack,
		&entryPoint, &rang, &knocked, &ev.DwellSeconds, &publicPath,
		&knownFace, &ev.AwayProb, &expected, &token, &evidence,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	ev.EntryPoint = domain.EntryPoint(entryPoint)
	ev.Token = domain.AuthToken(token)
	ev.RangDoorbell = rang == 1
	ev.Knocked = knocked == 1
	ev.PublicPath = publicPath == 1
	ev.KnownFace = knownFace == 1
	ev.ExpectedWindow = expected == 1

	if evidence != "" {
		json.Unmarshal([]byte(evidence), &ev.Evidence)
	}

	return &ev, nil
}

// CountEventsByZone counts events for a zone since a cutoff with home isolation.
func (r *SQLRepository) CountEventsByZone(ctx context.Context, homeID string, zone string, since time.Time) (int64, error) {
	if homeID == "" {
		return 0, fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	query := `
		SELECT COUNT(*) FROM events
		WHERE home_id = ? AND zone = ? AND timestamp >= ?
	`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), homeID, zone, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}

// SaveAssessment stores an assessment result with home isolation.
func (r *SQLRepository) SaveAssessment(ctx context.Context, homeID string, res *domain.ThinkingResult) error {
	if homeID == "" {
		return fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	fused, _ := json.Marshal(res.FusedEvidence)
	questions, _ := json.Marshal(res.Questions)
	counterfactuals, _ := json.Marshal(res.Counterfactuals)
	metadata, _ := json.Marshal(res.Metadata)

	query := `
		INSERT INTO assessments (
			id, home_id, incident_id, person_track, decision, hint,
			probability, raw_logit, fused_evidence, summary,
			questions, counterfactuals, suppressed_count, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		res.AssessmentID, homeID, res.IncidentID, res.PersonTrack,
		string(res.Decision), string(res.Hint),
		res.Probability, res.RawLogit, string(fused), res.Summary,
		string(questions), string(counterfactuals), res.SuppressedCount,
		string(metadata), time.Now().UTC(),
	)
	return err
}

// GetAssessment retrieves an assessment by ID with home isolation.
func (r *SQLRepository) GetAssessment(ctx context.Context, homeID string, assessmentID string) (*domain.ThinkingResult, error) {
	if homeID == "" {
		return nil, fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, home_id, incident_id, person_track, decision, hint,
			   probability, raw_logit, fused_evidence, summary,
			   questions, counterfactuals, suppressed_count, metadata
		FROM assessments
		WHERE home_id = ? AND id = ?
	`

	res, err := scanAssessment(r.db.QueryRowContext(ctx, r.rebind(query), homeID, assessmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// ListAssessments retrieves assessments since a cutoff with home isolation.
func (r *SQLRepository) ListAssessments(ctx context.Context, homeID string, since time.Time) ([]*domain.ThinkingResult, error) {
	if homeID == "" {
		return nil, fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, home_id, incident_id, person_track, decision, hint,
			   probability, raw_logit, fused_evidence, summary,
			   questions, counterfactuals, suppressed_count, metadata
		FROM assessments
		WHERE home_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), homeID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.ThinkingResult
	for rows.Next() {
		res, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*domain.ThinkingResult, error) {
	var res domain.ThinkingResult
	var decision, hint string
	var fused, summary, questions, counterfactuals, metadata sql.NullString

	err := row.Scan(
		&res.AssessmentID, &res.HomeID, &res.IncidentID, &res.PersonTrack,
		&decision, &hint,
		&res.Probability, &res.RawLogit, &fused, &summary,
		&questions, &counterfactuals, &res.SuppressedCount, &metadata,
	)
	if err != nil {
		return nil, err
	}

	res.Decision = domain.AlertDecision(decision)
	res.Hint = domain.DecisionHint(hint)
	res.Summary = summary.String

	if fused.Valid {
		json.Unmarshal([]byte(fused.String), &res.FusedEvidence)
	}
	if questions.Valid {
		json.Unmarshal([]byte(questions.String), &res.Questions)
	}
	if counterfactuals.Valid {
		json.Unmarshal([]byte(counterfactuals.String), &res.Counterfactuals)
	}
	if metadata.Valid {
		json.Unmarshal([]byte(metadata.String), &res.Metadata)
	}

	return &res, nil
}

// SaveOutcome stores a ground-truth outcome with home isolation.
func (r *SQLRepository) SaveOutcome(ctx context.Context, homeID string, outcome *domain.Outcome) error {
	if homeID == "" {
		return fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO outcomes (
			id, home_id, assessment_id, raw_logit, was_threat, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		outcome.ID, homeID, outcome.AssessmentID,
		outcome.RawLogit, b2i(outcome.WasThreat), outcome.RecordedAt,
	)
	return err
}

// ListOutcomes retrieves outcomes since a cutoff with home isolation.
func (r *SQLRepository) ListOutcomes(ctx context.Context, homeID string, since time.Time) ([]*domain.Outcome, error) {
	if homeID == "" {
		return nil, fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, home_id, assessment_id, raw_logit, was_threat, recorded_at
		FROM outcomes
		WHERE home_id = ? AND recorded_at >= ?
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), homeID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		var assessmentID sql.NullString
		var wasThreat int

		if err := rows.Scan(
			&o.ID, &o.HomeID, &assessmentID, &o.RawLogit, &wasThreat, &o.RecordedAt,
		); err != nil {
			return nil, err
		}

		o.AssessmentID = assessmentID.String
		o.WasThreat = wasThreat == 1
		outcomes = append(outcomes, &o)
	}

	return outcomes, rows.Err()
}

// SavePolicy upserts an alert policy with home isolation.
func (r *SQLRepository) SavePolicy(ctx context.Context, homeID string, policy *domain.PolicyConfig) error {
	if homeID == "" {
		return fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO policies (
			id, home_id, name, description, expression, action, reason, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, home_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			action = excluded.action,
			reason = excluded.reason,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		policy.ID, homeID, policy.Name, policy.Description,
		policy.Expression, string(policy.Action), policy.Reason,
		b2i(policy.Enabled), now, now,
	)
	return err
}

// GetPolicy retrieves a policy with home isolation.
func (r *SQLRepository) GetPolicy(ctx context.Context, homeID string, policyID string) (*domain.PolicyConfig, error) {
	if homeID == "" {
		return nil, fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, home_id, name, description, expression, action, reason, enabled
		FROM policies
		WHERE home_id = ? AND id = ?
	`

	var cfg domain.PolicyConfig
	var action string
	var description, reason sql.NullString
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), homeID, policyID).Scan(
		&cfg.ID, &cfg.HomeID, &cfg.Name, &description,
		&cfg.Expression, &action, &reason, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	cfg.Description = description.String
	cfg.Reason = reason.String
	cfg.Action = domain.PolicyAction(action)
	cfg.Enabled = enabled == 1

	return &cfg, nil
}

// ListPolicies retrieves all enabled policies for a home.
func (r *SQLRepository) ListPolicies(ctx context.Context, homeID string) ([]*domain.PolicyConfig, error) {
	if homeID == "" {
		return nil, fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, home_id, name, description, expression, action, reason, enabled
		FROM policies
		WHERE home_id = ? AND enabled = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), homeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var policies []*domain.PolicyConfig
	for rows.Next() {
		var cfg domain.PolicyConfig
		var action string
		var description, reason sql.NullString
		var enabled int

		if err := rows.Scan(
			&cfg.ID, &cfg.HomeID, &cfg.Name, &description,
			&cfg.Expression, &action, &reason, &enabled,
		); err != nil {
			return nil, err
		}

		cfg.Description = description.String
		cfg.Reason = reason.String
		cfg.Action = domain.PolicyAction(action)
		cfg.Enabled = enabled == 1
		policies = append(policies, &cfg)
	}

	return policies, rows.Err()
}

// DeletePolicy soft-deletes a policy by setting enabled = 0.
func (r *SQLRepository) DeletePolicy(ctx context.Context, homeID string, policyID string) error {
	if homeID == "" {
		return fmt.Errorf("%w: homeID is required", ErrInvalidInput)
	}

	query := `
		UPDATE policies
		SET enabled = 0, updated_at = ?
		WHERE home_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query), time.Now().UTC(), homeID, policyID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
