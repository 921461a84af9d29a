// Package incident maintains the per-home incident window: events from the
// same tracked person within the TTL belong to one incident.
package incident

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/novinai/sentinel/internal/domain"
)

const shardCount = 32

// DefaultDuplicateWindow is how close together two events on the same
// camera must be before the second one is counted as a suppressed
// duplicate instead of appended.
const DefaultDuplicateWindow = 2 * time.Second

// Store holds open incidents keyed by (home, person track), sharded by
// home so unrelated homes never contend on the same lock.
type Store struct {
	ttl             time.Duration
	duplicateWindow time.Duration
	nextID          atomic.Uint64
	shards          [shardCount]*shard
}

type shard struct {
	mu        sync.Mutex
	incidents map[incidentKey]*domain.Incident
}

type incidentKey struct {
	homeID      string
	personTrack string
}

// NewStore creates a store with the given incident TTL. A non-positive
// duplicateWindow disables duplicate suppression.
func NewStore(ttl, duplicateWindow time.Duration) *Store {
	s := &Store{ttl: ttl, duplicateWindow: duplicateWindow}
	for i := range s.shards {
		s.shards[i] = &shard{incidents: make(map[incidentKey]*domain.Incident)}
	}
	return s
}

func (s *Store) shardFor(homeID string) *shard {
	return s.shards[fnv32(homeID)%shardCount]
}

// UpsertEvent folds the event into the open incident for its (home, track)
// pair, creating one if none is open or the last one expired. Expired
// incidents in the same shard are swept opportunistically on the way;
// shards that receive no traffic are only evicted by a periodic Sweep
// pass, which callers must schedule themselves.
// Returns a deep copy safe to use without holding any lock.
func (s *Store) UpsertEvent(homeID string, ev domain.Event) *domain.Incident {
	key := incidentKey{homeID: homeID, personTrack: ev.PersonTrack}
	sh := s.shardFor(homeID)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.sweepLocked(ev.Timestamp, s.ttl)

	inc, ok := sh.incidents[key]
	if !ok {
		inc = domain.NewIncident(s.nextID.Add(1), homeID, ev.PersonTrack, ev.Timestamp)
		sh.incidents[key] = inc
	}

	if s.isDuplicate(inc, ev) {
		inc.SuppressedCount++
		if ev.Timestamp.After(inc.LastUpdated) {
			inc.LastUpdated = ev.Timestamp
		}
	} else {
		inc.AddEvent(ev)
	}
	return inc.Clone()
}

// isDuplicate reports whether the event is a near-instant repeat from the
// camera that produced the incident's latest event.
func (s *Store) isDuplicate(inc *domain.Incident, ev domain.Event) bool {
	if s.duplicateWindow <= 0 {
		return false
	}
	last := inc.Latest()
	if last == nil || last.Camera != ev.Camera {
		return false
	}
	delta := ev.Timestamp.Sub(last.Timestamp)
	return delta >= 0 && delta < s.duplicateWindow
}

// Get returns a copy of the open incident for the pair, or nil.
func (s *Store) Get(homeID, personTrack string) *domain.Incident {
	sh := s.shardFor(homeID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	inc, ok := sh.incidents[incidentKey{homeID: homeID, personTrack: personTrack}]
	if !ok {
		return nil
	}
	return inc.Clone()
}

// OpenIncidents returns copies of every open incident for the home.
func (s *Store) OpenIncidents(homeID string) []*domain.Incident {
	sh := s.shardFor(homeID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var out []*domain.Incident
	for key, inc := range sh.incidents {
		if key.homeID == homeID {
			out = append(out, inc.Clone())
		}
	}
	return out
}

// Sweep drops every incident idle past the TTL as of now. The store also
// sweeps lazily during upserts; this is for the optional periodic pass.
// Returns the number of incidents closed.
func (s *Store) Sweep(now time.Time) int {
	var closed int
	for _, sh := range s.shards {
		sh.mu.Lock()
		closed += sh.sweepLocked(now, s.ttl)
		sh.mu.Unlock()
	}
	return closed
}

// Len reports the number of open incidents across all shards.
func (s *Store) Len() int {
	var n int
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.incidents)
		sh.mu.Unlock()
	}
	return n
}

func (sh *shard) sweepLocked(now time.Time, ttl time.Duration) int {
	var closed int
	for key, inc := range sh.incidents {
		if now.Sub(inc.LastUpdated) > ttl {
			inc.Status = domain.IncidentClosed
			delete(sh.incidents, key)
			closed++
		}
	}
	return closed
}

// fnv32 is the 32-bit FNV-1a hash, inlined to avoid allocating a hasher
// per lookup.
func fnv32(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
