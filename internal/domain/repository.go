package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence. All methods
// require homeID for strict per-home isolation. Incidents themselves are
// deliberately not persisted: incident state is in-memory only and
// rebuilt from fresh events after a restart.
type Repository interface {
	// Event audit log
	SaveEvent(ctx context.Context, homeID string, ev *Event) error
	GetEvent(ctx context.Context, homeID string, eventID string) (*Event, error)
	CountEventsByZone(ctx context.Context, homeID string, zone string, since time.Time) (int64, error)

	// Assessment results
	SaveAssessment(ctx context.Context, homeID string, res *ThinkingResult) error
	GetAssessment(ctx context.Context, homeID string, assessmentID string) (*ThinkingResult, error)
	ListAssessments(ctx context.Context, homeID string, since time.Time) ([]*ThinkingResult, error)

	// Ground-truth outcomes feeding the calibration loop
	SaveOutcome(ctx context.Context, homeID string, outcome *Outcome) error
	ListOutcomes(ctx context.Context, homeID string, since time.Time) ([]*Outcome, error)

	// Alert policy configuration
	SavePolicy(ctx context.Context, homeID string, policy *PolicyConfig) error
	GetPolicy(ctx context.Context, homeID string, policyID string) (*PolicyConfig, error)
	ListPolicies(ctx context.Context, homeID string) ([]*PolicyConfig, error)
	DeletePolicy(ctx context.Context, homeID string, policyID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
