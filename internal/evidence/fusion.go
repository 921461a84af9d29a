package evidence

import (
	"github.com/novinai/sentinel/internal/domain"
)

// Channel indices for the redundancy matrix.
const (
	chanIdentity = iota
	chanTime
	chanBehavior
)

var channelNames = [3]string{"identity", "time", "behavior"}

// Reliability holds per-channel weights in [0,1] describing how much the
// underlying sensor reading can be trusted (occlusion, low confidence).
type Reliability struct {
	Identity float64
	Time     float64
	Behavior float64
}

// FullReliability trusts every channel completely.
func FullReliability() Reliability {
	return Reliability{Identity: 1, Time: 1, Behavior: 1}
}

// FusionInput carries the incident-level fused evidence plus the behavioral
// flags of the most recent event, which drive visitor-pattern gating.
type FusionInput struct {
	Evidence       domain.Evidence
	Reliability    Reliability
	EntryPoint     domain.EntryPoint
	RangDoorbell   bool
	Knocked        bool
	Token          domain.AuthToken
	ExpectedWindow bool
	PublicPath     bool
}

// ChannelShrink records one pairwise redundancy reduction for diagnostics.
type ChannelShrink struct {
	A           string  `json:"a"`
	B           string  `json:"b"`
	Overlap     float64 `json:"overlap"`
	Coefficient float64 `json:"coefficient"`
	Delta       float64 `json:"delta"`
}

// FusionResult is the adjusted evidence with itemized diagnostics.
type FusionResult struct {
	Evidence       domain.Evidence `json:"evidence"`
	Shrinks        []ChannelShrink `json:"shrinks,omitempty"`
	TotalShrink    float64         `json:"totalShrink"`
	VisitorPattern bool            `json:"visitorPattern"`
	TimeDamped     float64         `json:"timeDamped"`
	BehaviorDamped float64         `json:"behaviorDamped"`
	GateBonus      float64         `json:"gateBonus"`
	Sum            float64         `json:"sum"`
	LLR            float64         `json:"llr"`
}

// Fuser combines per-channel LLRs so that correlated positive evidence does
// not stack linearly, and so that a normal visitor pattern at the front
// door explains away residual time and behavior penalties.
type Fuser struct {
	matrix         [3][3]float64
	minShrinkFloor float64
	timeDamp       float64
	behaviorDamp   float64
	gateBonus      float64
	posCap         float64
	negCap         float64
}

// NewFuser creates a fuser with the fixed correlation matrix and the given
// per-evaluation caps.
func NewFuser(posCap, negCap float64) *Fuser {
	return &Fuser{
		matrix: [3][3]float64{
			{0.0, 0.4, 0.3},
			{0.4, 0.0, 0.6},
			{0.3, 0.6, 0.0},
		},
		minShrinkFloor: 0.3,
		timeDamp:       0.25,
		behaviorDamp:   0.2,
		gateBonus:      -1.0,
		posCap:         posCap,
		negCap:         negCap,
	}
}

// Fuse applies reliability weighting, pairwise redundancy shrink, and
// visitor-pattern gating, returning the adjusted evidence and diagnostics.
// Sticky channels (presence, token) pass through untouched; their values
// already reflect a single claimed observation each.
func (f *Fuser) Fuse(in FusionInput) FusionResult {
	id := in.Reliability.Identity * in.Evidence.Identity
	tm := in.Reliability.Time * in.Evidence.Time
	entry := in.Reliability.Behavior * in.Evidence.Entry
	beh := in.Reliability.Behavior * in.Evidence.Behavior
	approach := entry + beh

	l := [3]float64{id, tm, approach}

	res := FusionResult{}

	// Correlated positives share information; shrink both members of each
	// positive pair by half their overlap, scaled by the correlation.
	for i := 0; i < 2; i++ {
		for j := i + 1; j < 3; j++ {
			if l[i] <= 0 || l[j] <= 0 {
				continue
			}
			overlap := l[i]
			if l[j] < overlap {
				overlap = l[j]
			}
			r := f.matrix[i][j]
			w := r
			if floor := f.minShrinkFloor * r; floor > w {
				w = floor
			}
			delta := 0.5 * w * overlap
			l[i] -= delta
			l[j] -= delta
			res.TotalShrink += 2 * delta
			res.Shrinks = append(res.Shrinks, ChannelShrink{
				A:           channelNames[i],
				B:           channelNames[j],
				Overlap:     overlap,
				Coefficient: r,
				Delta:       delta,
			})
		}
	}

	ringOrKnock := in.RangDoorbell || in.Knocked
	res.VisitorPattern = in.EntryPoint.IsFrontDoorClass() &&
		(ringOrKnock || in.ExpectedWindow || in.Token != domain.TokenNone)

	// A visitor pattern does not zero identity evidence, but it heavily
	// damps residual time and behavior positives.
	if res.VisitorPattern {
		if l[chanTime] > 0 {
			res.TimeDamped = l[chanTime] * (1 - f.timeDamp)
			l[chanTime] *= f.timeDamp
		}
		if l[chanBehavior] > 0 {
			res.BehaviorDamped = l[chanBehavior] * (1 - f.behaviorDamp)
			l[chanBehavior] *= f.behaviorDamp
		}
	}

	if in.ExpectedWindow && in.EntryPoint.IsFrontDoorClass() {
		res.GateBonus = f.gateBonus
	}

	adjusted := in.Evidence
	adjusted.Identity = l[chanIdentity]
	adjusted.Time = l[chanTime]
	adjusted.Entry, adjusted.Behavior = redistribute(entry, beh, l[chanBehavior])

	res.Evidence = adjusted
	res.Sum = adjusted.Sum() + res.GateBonus
	res.LLR = domain.Clamp(res.Sum, -f.negCap, f.posCap)
	return res
}

// redistribute maps an adjusted combined entry+behavior value back onto the
// two components. Only positive components absorb the reduction; negative
// (benign) components are preserved as claimed.
func redistribute(entry, beh, adjusted float64) (float64, float64) {
	combined := entry + beh
	if combined <= 0 || adjusted == combined {
		return entry, beh
	}

	var pos, neg float64
	for _, v := range []float64{entry, beh} {
		if v > 0 {
			pos += v
		} else {
			neg += v
		}
	}
	if pos <= 0 {
		return entry, beh
	}

	scale := (adjusted - neg) / pos
	if entry > 0 {
		entry *= scale
	}
	if beh > 0 {
		beh *= scale
	}
	return entry, beh
}
