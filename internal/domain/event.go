package domain

import "time"

// EntryPoint identifies where on the property a person was observed.
type EntryPoint string

const (
	EntryFrontDoor EntryPoint = "front_door"
	EntryBackDoor  EntryPoint = "back_door"
	EntryWindow    EntryPoint = "window"
	EntryGarage    EntryPoint = "garage"
	EntryOther     EntryPoint = "other"
)

// IsFrontDoorClass reports whether the entry point counts as a normal
// visitor entrance for visitor-pattern gating.
func (e EntryPoint) IsFrontDoorClass() bool {
	return e == EntryFrontDoor
}

// AuthToken is the type of authorization credential presented, if any.
type AuthToken string

const (
	TokenNone     AuthToken = ""
	TokenDelivery AuthToken = "delivery"
	TokenGuest    AuthToken = "guest"
	TokenService  AuthToken = "service"
)

// Event is a single immutable sensor observation. Events are created once
// per detection and never mutated afterwards.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Zone        string    `json:"zone"`
	Camera      string    `json:"camera"`
	PersonTrack string    `json:"personTrack"`

	EntryPoint   EntryPoint `json:"entryPoint"`
	RangDoorbell bool       `json:"rangDoorbell"`
	Knocked      bool       `json:"knocked"`
	DwellSeconds float64    `json:"dwellSeconds"`
	PublicPath   bool       `json:"publicPath"`

	KnownFace bool `json:"knownFace"`

	AwayProb       float64   `json:"awayProb"`
	ExpectedWindow bool      `json:"expectedWindow"`
	Token          AuthToken `json:"token,omitempty"`

	Evidence Evidence `json:"evidence"`
}

// RawEvent carries the sensor signals an evidence extractor needs to
// compute per-channel LLRs. It is what ingestion adapters hand the engine
// when upstream vision inference did not supply Evidence directly.
type RawEvent struct {
	Timestamp   time.Time
	Zone        string
	Camera      string
	PersonTrack string

	EntryPoint   EntryPoint
	RangDoorbell bool
	Knocked      bool
	DwellSeconds float64
	PublicPath   bool

	KnownFace      bool
	FaceConfidence float64
	FaceOccluded   bool

	AwayProb           float64
	PresenceConfidence float64
	ExpectedWindow     bool
	Token              AuthToken
}

// EvidenceExtractor computes per-channel LLR evidence from raw sensor
// signals. Implementations own the learned context histograms.
type EvidenceExtractor interface {
	Extract(raw RawEvent) Evidence

	// Observe feeds a labeled outcome back into the learned context
	// histograms.
	Observe(raw RawEvent, isThreat bool)
}

// Event converts a RawEvent plus extracted Evidence into the immutable
// Event the incident store consumes.
func (r RawEvent) Event(id string, ev Evidence) Event {
	return Event{
		ID:             id,
		Timestamp:      r.Timestamp,
		Zone:           r.Zone,
		Camera:         r.Camera,
		PersonTrack:    r.PersonTrack,
		EntryPoint:     r.EntryPoint,
		RangDoorbell:   r.RangDoorbell,
		Knocked:        r.Knocked,
		DwellSeconds:   r.DwellSeconds,
		PublicPath:     r.PublicPath,
		KnownFace:      r.KnownFace,
		AwayProb:       r.AwayProb,
		ExpectedWindow: r.ExpectedWindow,
		Token:          r.Token,
		Evidence:       ev.Sanitized(),
	}
}
