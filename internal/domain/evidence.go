// Package domain defines the core types and interfaces for Sentinel.
package domain

import "math"

// Evidence holds the per-channel log-likelihood ratios for one observation.
// Positive values favor threat, negative values favor benign.
type Evidence struct {
	Time     float64 `json:"time"`
	Entry    float64 `json:"entry"`
	Behavior float64 `json:"behavior"`
	Identity float64 `json:"identity"`
	Presence float64 `json:"presence"`
	Token    float64 `json:"token"`
}

// Sum returns the total log-likelihood ratio across all channels.
func (e Evidence) Sum() float64 {
	return e.Time + e.Entry + e.Behavior + e.Identity + e.Presence + e.Token
}

// CappedSum returns the total LLR clamped to [-negCap, +posCap].
// The caps are asymmetric: strong benign evidence is allowed to dominate
// more than stacked threat evidence.
func (e Evidence) CappedSum(posCap, negCap float64) float64 {
	return Clamp(e.Sum(), -negCap, posCap)
}

// Sanitized returns a copy with NaN and infinite components replaced by 0.
// Upstream producers are required to send finite LLRs; this is the boundary
// where that invariant is enforced.
func (e Evidence) Sanitized() Evidence {
	return Evidence{
		Time:     finiteOrZero(e.Time),
		Entry:    finiteOrZero(e.Entry),
		Behavior: finiteOrZero(e.Behavior),
		Identity: finiteOrZero(e.Identity),
		Presence: finiteOrZero(e.Presence),
		Token:    finiteOrZero(e.Token),
	}
}

// IsZero reports whether every channel is exactly zero.
func (e Evidence) IsZero() bool {
	return e == Evidence{}
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Sigmoid converts log-odds to a probability. Input is clamped to avoid
// overflow in exp.
func Sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-Clamp(x, -500, 500)))
}

// Logit converts a probability to log-odds. The input is clamped away from
// exactly 0 and 1 so the result is always finite.
func Logit(p float64) float64 {
	c := Clamp(p, 0.001, 0.999)
	return math.Log(c / (1.0 - c))
}
