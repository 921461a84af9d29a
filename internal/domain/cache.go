package domain

import (
	"context"
	"time"
)

// Cache defines the interface for caching operations. Supports two-phase
// caching: local LRU (Community) + Redis (Pro). All methods require homeID
// for strict per-home isolation.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, homeID string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, homeID string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, homeID string, key string) error

	// GetAssessment retrieves the cached latest assessment for a person
	// track.
	GetAssessment(ctx context.Context, homeID string, personTrack string) (*AssessmentCache, error)

	// SetAssessment caches the latest assessment for a person track.
	SetAssessment(ctx context.Context, homeID string, personTrack string, data *AssessmentCache, ttl time.Duration) error

	// IncrementCounter atomically increments a counter and returns new
	// value. Used for per-track event-burst accounting.
	IncrementCounter(ctx context.Context, homeID string, key string, window time.Duration) (int64, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// AssessmentCache holds the slim latest-assessment record served on the
// fast path.
type AssessmentCache struct {
	AssessmentID string        `json:"assessmentId"`
	IncidentID   uint64        `json:"incidentId"`
	Decision     AlertDecision `json:"decision"`
	Probability  float64       `json:"probability"`
	Timestamp    string        `json:"timestamp"`
}

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string

	// Local LRU cache settings (Community tier)
	LocalMaxSize int
	LocalTTL     time.Duration

	// Redis settings (Pro tier)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Two-phase settings
	EnableTwoPhase bool // If true, check local first, then Redis
}
