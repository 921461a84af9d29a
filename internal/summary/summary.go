// Package summary renders human-readable incident narratives. A
// deterministic template is always available; an optional LLM sidecar can
// be layered on top and the engine falls back to the template whenever the
// sidecar is unavailable or errors.
package summary

import (
	"context"
	"fmt"

	"github.com/novinai/sentinel/internal/domain"
)

// Input is everything a narrative needs about one assessment.
type Input struct {
	Decision     domain.AlertDecision `json:"decision"`
	Location     string               `json:"location"`
	DwellTime    float64              `json:"dwell_time"`
	RangDoorbell bool                 `json:"rang_doorbell"`
	Knocked      bool                 `json:"knocked"`
	Probability  float64              `json:"threat_probability"`

	WindowSeconds   float64         `json:"-"`
	Fused           domain.Evidence `json:"-"`
	SuppressedCount int             `json:"-"`
}

// Provider produces a narrative summary for an assessment.
type Provider interface {
	Summarize(ctx context.Context, in Input) (string, error)
}

// InputFor assembles the summary input from an incident and its result.
func InputFor(inc *domain.Incident, fused domain.Evidence, decision domain.AlertDecision, probability float64) Input {
	in := Input{
		Decision:        decision,
		Probability:     probability,
		Fused:           fused,
		DwellTime:       inc.TotalDwell(),
		SuppressedCount: inc.SuppressedCount,
	}
	if latest := inc.Latest(); latest != nil {
		in.Location = string(latest.EntryPoint)
	}
	if n := len(inc.Events); n > 0 {
		first := inc.Events[0]
		last := inc.Events[n-1]
		in.WindowSeconds = last.Timestamp.Sub(first.Timestamp).Seconds() + last.DwellSeconds
	}
	for _, ev := range inc.Events {
		if ev.RangDoorbell {
			in.RangDoorbell = true
		}
		if ev.Knocked {
			in.Knocked = true
		}
	}
	return in
}

// Template renders the deterministic fallback narrative.
func Template(in Input) string {
	doors := "no doorbell/knock"
	if in.RangDoorbell {
		doors = "rang doorbell"
	} else if in.Knocked {
		doors = "knocked"
	}

	location := in.Location
	if location == "" {
		location = "unknown location"
	}

	return fmt.Sprintf(
		"Activity at %s\nTotal dwell %.0fs over %.0fs window, %s.\nFused LLR: time=%+.2f, entry=%+.2f, behavior=%+.2f, identity=%+.2f, presence=%+.2f, token=%+.2f.\nCalibrated threat: %.1f%%\nSuppressed duplicates: %d",
		location,
		in.DwellTime, in.WindowSeconds, doors,
		in.Fused.Time, in.Fused.Entry, in.Fused.Behavior,
		in.Fused.Identity, in.Fused.Presence, in.Fused.Token,
		in.Probability*100, in.SuppressedCount,
	)
}
