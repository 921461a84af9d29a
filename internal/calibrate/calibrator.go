// Package calibrate maps raw fused log-odds to trustworthy probabilities.
// Calibration state is learned per context bucket, because a score that is
// reliable at the front door at noon is overconfident at a window at 3 AM.
package calibrate

import (
	"sync"
	"time"

	"github.com/novinai/sentinel/internal/domain"
)

const (
	// minSamples outcomes must accumulate in a bucket before any learned
	// parameters replace the engine defaults.
	minSamples = 5

	// historyCap bounds the per-bucket outcome window. The oldest samples
	// are dropped first.
	historyCap = 512

	// conformalAlpha is the abstention miscoverage level (90% confidence).
	conformalAlpha = 0.1
)

// Time bands used for bucketing.
const (
	BandDay uint8 = iota
	BandEvening
	BandNight
	BandLateNight
)

// Bucket is the calibration context: where, when, and whether anyone was
// home.
type Bucket struct {
	Entry    domain.EntryPoint
	TimeBand uint8
	DayType  uint8 // 0 weekday, 1 weekend
	Away     uint8
}

// BucketFor derives the calibration bucket for an event.
func BucketFor(ev domain.Event) Bucket {
	b := Bucket{
		Entry:    ev.EntryPoint,
		TimeBand: timeBand(ev.Timestamp),
	}
	if wd := ev.Timestamp.Weekday(); wd == time.Saturday || wd == time.Sunday {
		b.DayType = 1
	}
	if ev.AwayProb >= 0.7 {
		b.Away = 1
	}
	return b
}

func timeBand(t time.Time) uint8 {
	switch h := t.Hour(); {
	case h < 6:
		return BandLateNight
	case h < 18:
		return BandDay
	case h < 22:
		return BandEvening
	default:
		return BandNight
	}
}

// Result is one calibrated probability with its abstention signal.
type Result struct {
	Probability float64
	DeltaLogit  float64
	Hint        domain.DecisionHint
	// Uncertain is true only when a learned conformal state abstains.
	// Buckets with no conformal history are not uncertain; the decision
	// layer falls back to its fixed probability bands for them.
	Uncertain bool
	// Learned reports whether bucket-specific parameters were applied.
	Learned bool
}

type plattParams struct {
	a float64
	b float64
}

type conformalState struct {
	qThreat float64
	qSafe   float64
}

type sample struct {
	rawLogit float64
	isThreat bool
}

// System holds per-bucket calibration state. Reads are concurrent; outcome
// ingestion takes the write lock and updates parameters in one atomic step
// so no partially-updated state is observable.
type System struct {
	mu sync.RWMutex

	oddsCap     float64
	defaultMean float64
	defaultTemp float64

	means     map[Bucket]float64
	temps     map[Bucket]float64
	platt     map[Bucket]plattParams
	conformal map[Bucket]conformalState
	history   map[Bucket][]sample
}

// New creates a calibration system seeded with the engine defaults.
func New(cfg domain.EngineConfig) *System {
	return &System{
		oddsCap:     cfg.OddsCap,
		defaultMean: cfg.MeanLogit,
		defaultTemp: cfg.Temperature,
		means:       make(map[Bucket]float64),
		temps:       make(map[Bucket]float64),
		platt:       make(map[Bucket]plattParams),
		conformal:   make(map[Bucket]conformalState),
		history:     make(map[Bucket][]sample),
	}
}

// Calibrate converts a raw fused logit into a calibrated probability:
// center by the bucket mean, soften by temperature, clip the odds, apply
// the learned Platt correction if one exists, then run the conformal
// abstention check.
func (s *System) Calibrate(rawLogit float64, b Bucket) Result {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mean, ok := s.means[b]
	if !ok {
		mean = s.defaultMean
	}
	temp, ok := s.temps[b]
	if !ok {
		temp = s.defaultTemp
	}
	if temp < 1 {
		temp = 1
	}

	z := domain.Clamp((rawLogit-mean)/temp, -s.oddsCap, s.oddsCap)
	p := domain.Sigmoid(z)

	res := Result{}
	if pl, ok := s.platt[b]; ok {
		p = domain.Sigmoid(pl.a*z + pl.b)
		res.Learned = true
	}
	p = domain.Clamp(p, 0.001, 0.999)

	res.Probability = p
	res.DeltaLogit = domain.Logit(p) - rawLogit
	res.Hint = domain.HintWait

	if cs, ok := s.conformal[b]; ok {
		canThreat := (1 - p) <= cs.qThreat
		canSafe := p <= cs.qSafe
		switch {
		case canThreat && !canSafe:
			res.Hint = domain.HintAlert
		case canSafe && !canThreat:
			res.Hint = domain.HintIgnore
		default:
			res.Hint = domain.HintWait
			res.Uncertain = true
		}
	}
	return res
}

// AddOutcome records a ground-truth label for the bucket and refreshes the
// learned parameters once enough history exists.
func (s *System) AddOutcome(b Bucket, rawLogit float64, isThreat bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.history[b], sample{rawLogit: rawLogit, isThreat: isThreat})
	if len(h) > historyCap {
		h = h[len(h)-historyCap:]
	}
	s.history[b] = h

	if len(h) >= minSamples {
		s.updateLocked(b)
	}
}

// SampleCount reports the outcome history size for a bucket.
func (s *System) SampleCount(b Bucket) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history[b])
}

func (s *System) updateLocked(b Bucket) {
	h := s.history[b]

	var sum float64
	var threats int
	for _, o := range h {
		sum += o.rawLogit
		if o.isThreat {
			threats++
		}
	}
	n := float64(len(h))
	mean := sum / n
	s.means[b] = mean

	rate := domain.Clamp(float64(threats)/n, 0.01, 0.99)
	targetLogit := domain.Logit(rate)

	a := 1.0
	if mean > 0.01 || mean < -0.01 {
		a = targetLogit / mean
	}
	s.platt[b] = plattParams{a: a, b: 0}

	// Temperature grows with history; a bucket with lots of noisy outcomes
	// should be softened harder.
	s.temps[b] = 1.0 + n*0.1

	s.conformal[b] = conformalState{qThreat: conformalAlpha, qSafe: conformalAlpha}
}
