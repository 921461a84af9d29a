package evidence

import (
	"math"

	"github.com/novinai/sentinel/internal/domain"
)

// Structural LLR adjustments. These are fixed domain constants, applied on
// top of the learned context estimates.
const (
	ringKnockLLR      = -1.2
	publicPathLLR     = -0.6
	longLurkLLR       = 0.9
	lurkThresholdSec  = 25.0
	expectedWindowLLR = -2.0
	awayUnexpectedLLR = 0.7

	identityCapPos  = 1.5
	identityCapNeg  = 2.5
	presenceCapPos  = 1.8
	presenceCapNeg  = 3.0
	fnrUnknown      = 0.15
	fprKnown        = 0.05
	occludedPenalty = 0.3

	awayBucketThreshold = 0.7
)

// TokenBonus maps an authorization credential to its benign LLR bonus.
var TokenBonus = map[domain.AuthToken]float64{
	domain.TokenDelivery: -2.2,
	domain.TokenGuest:    -1.6,
	domain.TokenService:  -2.8,
}

// Extractor computes per-channel evidence from raw sensor signals using
// the four learned context models. It implements domain.EvidenceExtractor.
type Extractor struct {
	timeModel     *Model
	entryModel    *Model
	absenceModel  *Model
	identityModel *Model

	posCap float64
	negCap float64
}

// NewExtractor creates an extractor with empty histograms.
func NewExtractor(cfg domain.EngineConfig) *Extractor {
	return &Extractor{
		timeModel:     NewTimeModel(),
		entryModel:    NewEntryModel(),
		absenceModel:  NewAbsenceModel(),
		identityModel: NewIdentityModel(),
		posCap:        cfg.PosCap,
		negCap:        cfg.NegCap,
	}
}

// eventContext is the shared key/slot derivation for all four models.
type eventContext struct {
	day      int
	slot     int // quarter-hour, 0..95
	hour     int // 0..23
	away     uint8
	expected uint8
	known    uint8
}

func contextOf(raw domain.RawEvent) eventContext {
	t := raw.Timestamp
	minOfDay := t.Hour()*60 + t.Minute()

	ctx := eventContext{
		day:  int(t.Weekday()),
		slot: minOfDay / 15,
		hour: t.Hour(),
	}
	if raw.AwayProb >= awayBucketThreshold {
		ctx.away = 1
	}
	if raw.ExpectedWindow {
		ctx.expected = 1
	}
	if raw.KnownFace {
		ctx.known = 1
	}
	return ctx
}

// Extract computes the six evidence channels for one raw event. Each
// channel claims its ledger tag; a failed claim contributes zero.
func (e *Extractor) Extract(raw domain.RawEvent) domain.Evidence {
	ctx := contextOf(raw)
	ledger := NewLedger(0)

	var ev domain.Evidence
	if ledger.Claim(TagTime) {
		ev.Time = e.timeLLR(raw, ctx)
	}
	if ledger.Claim(TagEntry) {
		ev.Entry = e.entryLLR(raw, ctx)
	}
	if ledger.Claim(TagBehavior) {
		ev.Behavior = e.behaviorLLR(raw)
	}
	if ledger.Claim(TagIdentity) {
		ev.Identity = e.identityLLR(raw, ctx)
	}
	if ledger.Claim(TagPresence) {
		ev.Presence = e.presenceLLR(raw, ctx)
	}
	if ledger.Claim(TagToken) {
		ev.Token = TokenBonus[raw.Token]
	}
	return ev.Sanitized()
}

// Observe feeds a labeled outcome into all four histograms.
func (e *Extractor) Observe(raw domain.RawEvent, isThreat bool) {
	ctx := contextOf(raw)

	e.timeModel.UpdateHistory(e.timeKey(raw, ctx), ctx.slot, isThreat)
	e.entryModel.UpdateHistory(e.entryKey(raw, ctx), ctx.slot, isThreat)
	e.absenceModel.UpdateHistory(e.absenceKey(raw, ctx), ctx.slot, isThreat)
	e.identityModel.UpdateHistory(e.identityKey(raw, ctx, raw.KnownFace), ctx.hour, isThreat)
}

func (e *Extractor) timeKey(raw domain.RawEvent, ctx eventContext) ContextKey {
	return ContextKey{Zone: raw.Zone, Day: ctx.day, Known: ctx.known}
}

func (e *Extractor) entryKey(raw domain.RawEvent, ctx eventContext) ContextKey {
	return ContextKey{Day: ctx.day, Entry: raw.EntryPoint, Away: ctx.away, Expected: ctx.expected}
}

func (e *Extractor) absenceKey(raw domain.RawEvent, ctx eventContext) ContextKey {
	return ContextKey{Zone: raw.Zone, Day: ctx.day, Away: ctx.away, Expected: ctx.expected}
}

func (e *Extractor) identityKey(raw domain.RawEvent, ctx eventContext, known bool) ContextKey {
	key := ContextKey{Zone: raw.Zone, Day: ctx.day, Away: ctx.away}
	if known {
		key.Known = 1
	}
	return key
}

// timeLLR is the learned time-of-day adjustment, weighted by history depth.
func (e *Extractor) timeLLR(raw domain.RawEvent, ctx eventContext) float64 {
	llr, w := e.timeModel.Estimate(e.timeKey(raw, ctx), ctx.slot)
	return domain.Clamp(w*llr, -e.negCap, e.posCap)
}

// entryLLR is the learned entry-point adjustment for the current context
// bucket. Behavioral and token terms live on their own channels.
func (e *Extractor) entryLLR(raw domain.RawEvent, ctx eventContext) float64 {
	llr, w := e.entryModel.Estimate(e.entryKey(raw, ctx), ctx.slot)
	return domain.Clamp(w*llr, -e.negCap, e.posCap)
}

// behaviorLLR scores the approach behavior itself: announcing yourself is
// benign, lingering without announcing is not.
func (e *Extractor) behaviorLLR(raw domain.RawEvent) float64 {
	var llr float64
	ringOrKnock := raw.RangDoorbell || raw.Knocked

	if ringOrKnock {
		llr += ringKnockLLR
	}
	if raw.PublicPath {
		llr += publicPathLLR
	}
	if !ringOrKnock && raw.DwellSeconds >= lurkThresholdSec {
		llr += longLurkLLR
	}
	return domain.Clamp(llr, -e.negCap, e.posCap)
}

// presenceLLR combines the learned away-time pattern with the expected
// window. The learned part only engages when the home is likely empty and
// presence inference is confident.
func (e *Extractor) presenceLLR(raw domain.RawEvent, ctx eventContext) float64 {
	llr, wData := e.absenceModel.Estimate(e.absenceKey(raw, ctx), ctx.slot)

	var wPresence float64
	if ctx.away == 1 {
		wPresence = domain.Clamp(raw.PresenceConfidence*math.Abs(raw.AwayProb-0.5)*2.0, 0, 1)
	}
	context := domain.Clamp(wData*wPresence*llr, -presenceCapNeg, presenceCapPos)

	var expect float64
	switch {
	case raw.ExpectedWindow:
		expect = expectedWindowLLR
	case ctx.away == 1:
		expect = awayUnexpectedLLR
	}
	return context + expect
}

// identityLLR estimates how diagnostic an unknown (or known) face is in
// this context, discounted by recognition quality.
func (e *Extractor) identityLLR(raw domain.RawEvent, ctx eventContext) float64 {
	knownB, knownT := e.identityModel.SmoothedCounts(e.identityKey(raw, ctx, true), ctx.hour)
	unknownB, unknownT := e.identityModel.SmoothedCounts(e.identityKey(raw, ctx, false), ctx.hour)

	alpha := e.identityModel.Config().Alpha
	bTot := knownB + unknownB + alpha*2
	tTot := knownT + unknownT + alpha*2

	pUnknownBenign := (unknownB + alpha) / bTot
	pUnknownThreat := (unknownT + alpha) / tTot
	llrEmp := math.Log(pUnknownThreat / pUnknownBenign)

	nEff := knownB + knownT + unknownB + unknownT
	wData := nEff / (nEff + e.identityModel.Config().Kappa)

	visPenalty := 1.0
	if raw.FaceOccluded {
		visPenalty = occludedPenalty
	}
	recogQuality := raw.FaceConfidence * (1 - fnrUnknown) * (1 - fprKnown)
	wRecog := visPenalty * domain.Clamp(recogQuality, 0, 1)

	direction := 1.0
	if raw.KnownFace {
		direction = -1.0
	}
	return domain.Clamp(wData*wRecog*llrEmp*direction, -identityCapNeg, identityCapPos)
}
