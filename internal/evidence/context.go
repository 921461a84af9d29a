// Package evidence implements the learned context models, the evidence
// ledger, and redundancy-aware fusion that turn raw sensor events into
// per-channel log-likelihood ratios.
package evidence

import (
	"math"
	"sync"

	"github.com/novinai/sentinel/internal/domain"
)

// ContextKey identifies a learned histogram. Fields that do not apply to a
// given model instance are left at their zero value, so the same key type
// serves all four instances.
type ContextKey struct {
	Zone     string
	Day      int
	Entry    domain.EntryPoint
	Away     uint8
	Expected uint8
	Known    uint8
}

// Params configures a context model instance.
type Params struct {
	Name   string
	Slots  int
	Alpha  float64
	Kappa  float64
	Kernel [3]float64
}

// Model is a learned benign/threat histogram over discrete time slots,
// keyed by context. Estimates are Laplace-smoothed and weighted by the
// amount of history behind them, so unseen contexts contribute nothing.
type Model struct {
	mu     sync.RWMutex
	params Params
	benign map[ContextKey][]float64
	threat map[ContextKey][]float64
}

// NewModel creates a context model with the given parameters.
func NewModel(p Params) *Model {
	return &Model{
		params: p,
		benign: make(map[ContextKey][]float64),
		threat: make(map[ContextKey][]float64),
	}
}

// NewTimeModel returns the time-of-day model: 96 quarter-hour slots with a
// fast-adapting prior strength.
func NewTimeModel() *Model {
	return NewModel(Params{
		Name:   "time",
		Slots:  96,
		Alpha:  1.0,
		Kappa:  50.0,
		Kernel: [3]float64{0.25, 0.5, 0.25},
	})
}

// NewEntryModel returns the entry-point model: 96 quarter-hour slots with a
// conservative prior strength.
func NewEntryModel() *Model {
	return NewModel(Params{
		Name:   "entry",
		Slots:  96,
		Alpha:  1.0,
		Kappa:  200.0,
		Kernel: [3]float64{0.25, 0.5, 0.25},
	})
}

// NewAbsenceModel returns the away-time model: 96 quarter-hour slots with a
// conservative prior strength.
func NewAbsenceModel() *Model {
	return NewModel(Params{
		Name:   "absence",
		Slots:  96,
		Alpha:  1.0,
		Kappa:  200.0,
		Kernel: [3]float64{0.25, 0.5, 0.25},
	})
}

// NewIdentityModel returns the identity model: 24 hourly slots with a
// conservative prior strength.
func NewIdentityModel() *Model {
	return NewModel(Params{
		Name:   "identity",
		Slots:  24,
		Alpha:  1.0,
		Kappa:  200.0,
		Kernel: [3]float64{0.25, 0.5, 0.25},
	})
}

// Params returns the model's configuration.
func (m *Model) Config() Params {
	return m.params
}

// UpdateHistory records one observed outcome at the given slot.
// Out-of-range slots are ignored.
func (m *Model) UpdateHistory(key ContextKey, slot int, isThreat bool) {
	if slot < 0 || slot >= m.params.Slots {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.benign[key]; !ok {
		m.benign[key] = make([]float64, m.params.Slots)
		m.threat[key] = make([]float64, m.params.Slots)
	}
	if isThreat {
		m.threat[key][slot]++
	} else {
		m.benign[key][slot]++
	}
}

// Estimate returns the empirical log-likelihood ratio for the slot and the
// data weight in [0,1) behind it. The caller multiplies the two; an unknown
// key yields weight 0 so it contributes nothing.
func (m *Model) Estimate(key ContextKey, slot int) (llr, weight float64) {
	if slot < 0 || slot >= m.params.Slots {
		return 0, 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	bHist := m.benign[key]
	tHist := m.threat[key]

	bS := m.smoothed(bHist, slot)
	tS := m.smoothed(tHist, slot)

	alpha := m.params.Alpha
	bTot := sum(bHist) + alpha*float64(m.params.Slots)
	tTot := sum(tHist) + alpha*float64(m.params.Slots)

	pB := (bS + alpha) / bTot
	pT := (tS + alpha) / tTot

	llr = math.Log(pT / pB)
	nEff := bS + tS
	weight = nEff / (nEff + m.params.Kappa)
	return llr, weight
}

// SmoothedCounts returns the kernel-smoothed benign and threat counts at
// the slot. Used by the identity channel, which combines counts across two
// keys before forming its ratio.
func (m *Model) SmoothedCounts(key ContextKey, slot int) (benign, threat float64) {
	if slot < 0 || slot >= m.params.Slots {
		return 0, 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.smoothed(m.benign[key], slot), m.smoothed(m.threat[key], slot)
}

// smoothed applies the circular kernel over the slot and its neighbors.
// A nil histogram reads as all zeros.
func (m *Model) smoothed(hist []float64, slot int) float64 {
	if hist == nil {
		return 0
	}
	n := m.params.Slots
	prev := (slot + n - 1) % n
	next := (slot + 1) % n
	k := m.params.Kernel
	return k[0]*hist[prev] + k[1]*hist[slot] + k[2]*hist[next]
}

func sum(vals []float64) float64 {
	var total float64
	for _, v := range vals {
		total += v
	}
	return total
}
