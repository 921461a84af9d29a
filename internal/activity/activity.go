// Package activity provides recent event counting per zone.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/novinai/sentinel/internal/domain"
)

// Service counts recent events per zone. Counts feed policy expressions
// through the recent_event_count variable.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new activity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// Record bumps the sliding counter for a zone. Called on every ingested
// event so that cache-backed counts stay live without a database round
// trip. Errors are returned for logging but callers treat them as
// non-fatal.
func (s *Service) Record(ctx context.Context, homeID, zone string, window time.Duration) error {
	if s.cache == nil {
		return nil
	}
	_, err := s.cache.IncrementCounter(ctx, homeID, counterKey(zone), window)
	return err
}

// GetEventCount returns the number of events for a zone within a time
// window. This is the ActivityGetter function signature expected by the
// policy engine.
func (s *Service) GetEventCount(ctx context.Context, homeID, zone string, windowSecs int) (int64, error) {
	if homeID == "" || zone == "" {
		return 0, fmt.Errorf("homeID and zone are required")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)

	if s.repo != nil {
		return s.countFromRepo(ctx, homeID, zone, since)
	}

	if s.cache != nil {
		// Counter windows are managed at Record time, so a plain
		// increment-by-zero read is not available; bump and subtract.
		n, err := s.cache.IncrementCounter(ctx, homeID, counterKey(zone), time.Duration(windowSecs)*time.Second)
		if err != nil {
			return 0, err
		}
		return n - 1, nil
	}

	return 0, fmt.Errorf("no data source available")
}

// countFromRepo queries the event audit log for the zone count.
func (s *Service) countFromRepo(ctx context.Context, homeID, zone string, since time.Time) (int64, error) {
	count, err := s.repo.CountEventsByZone(ctx, homeID, zone, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// GetActivityGetter returns an ActivityGetter function for the policy engine.
func (s *Service) GetActivityGetter() func(ctx context.Context, homeID, zone string, windowSecs int) (int64, error) {
	return s.GetEventCount
}

func counterKey(zone string) string {
	return "activity:" + zone
}
