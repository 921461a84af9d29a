package domain

import "time"

// IncidentStatus is the lifecycle state of an incident.
type IncidentStatus string

const (
	IncidentOpen   IncidentStatus = "open"
	IncidentClosed IncidentStatus = "closed"
)

// Incident groups the events of one physical visit by one tracked person
// at one home. It is owned exclusively by the incident store: mutation
// happens only through AddEvent under the store's shard lock.
type Incident struct {
	ID          uint64         `json:"id"`
	HomeID      string         `json:"homeId"`
	PersonTrack string         `json:"personTrack"`
	StartedAt   time.Time      `json:"startedAt"`
	LastUpdated time.Time      `json:"lastUpdated"`
	Status      IncidentStatus `json:"status"`

	Events          []Event             `json:"events"`
	Cameras         map[string]struct{} `json:"-"`
	SuppressedCount int                 `json:"suppressedCount"`
}

// NewIncident creates an open incident starting at the given time.
func NewIncident(id uint64, homeID, personTrack string, start time.Time) *Incident {
	return &Incident{
		ID:          id,
		HomeID:      homeID,
		PersonTrack: personTrack,
		StartedAt:   start,
		LastUpdated: start,
		Status:      IncidentOpen,
		Cameras:     make(map[string]struct{}),
	}
}

// AddEvent appends an event and extends the incident window.
func (i *Incident) AddEvent(ev Event) {
	if ev.Timestamp.After(i.LastUpdated) {
		i.LastUpdated = ev.Timestamp
	}
	i.Cameras[ev.Camera] = struct{}{}
	i.Events = append(i.Events, ev)
}

// TotalDwell is the summed dwell time across all events, in seconds.
func (i *Incident) TotalDwell() float64 {
	var total float64
	for _, ev := range i.Events {
		total += ev.DwellSeconds
	}
	return total
}

// Latest returns the most recent event, or nil for an empty incident.
func (i *Incident) Latest() *Event {
	if len(i.Events) == 0 {
		return nil
	}
	return &i.Events[len(i.Events)-1]
}

// FusedEvidence aggregates per-event evidence into one Evidence record.
// Continuously-accumulating channels (time, entry, behavior) are averaged
// across events; sticky channels (identity, presence, token) take the
// single value of largest magnitude, so repeated weak confirmations of the
// same fact do not inflate linearly while one strong observation still
// dominates. Every channel is clamped to [-negCap, +posCap].
func (i *Incident) FusedEvidence(posCap, negCap float64) Evidence {
	var sumTime, sumEntry, sumBehavior float64
	var identity, presence, token float64

	n := float64(len(i.Events))
	if n == 0 {
		n = 1
	}
	for _, ev := range i.Events {
		sumTime += ev.Evidence.Time
		sumEntry += ev.Evidence.Entry
		sumBehavior += ev.Evidence.Behavior
		if abs(ev.Evidence.Identity) > abs(identity) {
			identity = ev.Evidence.Identity
		}
		if abs(ev.Evidence.Presence) > abs(presence) {
			presence = ev.Evidence.Presence
		}
		if abs(ev.Evidence.Token) > abs(token) {
			token = ev.Evidence.Token
		}
	}

	return Evidence{
		Time:     Clamp(sumTime/n, -negCap, posCap),
		Entry:    Clamp(sumEntry/n, -negCap, posCap),
		Behavior: Clamp(sumBehavior/n, -negCap, posCap),
		Identity: Clamp(identity, -negCap, posCap),
		Presence: Clamp(presence, -negCap, posCap),
		Token:    Clamp(token, -negCap, posCap),
	}
}

// Clone returns a deep copy safe to hand outside the store's shard lock.
func (i *Incident) Clone() *Incident {
	c := *i
	c.Events = make([]Event, len(i.Events))
	copy(c.Events, i.Events)
	c.Cameras = make(map[string]struct{}, len(i.Cameras))
	for cam := range i.Cameras {
		c.Cameras[cam] = struct{}{}
	}
	return &c
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
