package evidence

// Evidence category tags. Each category may contribute to an evaluation's
// log-odds exactly once; the ledger enforces the contract.
const (
	TagIdentity = "identity"
	TagTime     = "time"
	TagEntry    = "entry"
	TagBehavior = "behavior"
	TagPresence = "presence"
	TagToken    = "token"
)

// Ledger is a single-evaluation accumulator of log-odds contributions.
// A tag must be claimed before it contributes; a second claim of the same
// tag fails and the associated contribution must be dropped. This prevents
// the same underlying fact (for example an unrecognized face) from being
// counted by two different code paths.
//
// A Ledger is not safe for concurrent use; create one per evaluation.
type Ledger struct {
	used    map[string]struct{}
	logOdds float64
}

// NewLedger creates a ledger seeded with the base log-odds.
func NewLedger(baseLogOdds float64) *Ledger {
	return &Ledger{
		used:    make(map[string]struct{}),
		logOdds: baseLogOdds,
	}
}

// Claim records the tag. Returns false if it was already claimed.
func (l *Ledger) Claim(tag string) bool {
	if _, ok := l.used[tag]; ok {
		return false
	}
	l.used[tag] = struct{}{}
	return true
}

// IsClaimed reports whether the tag has been claimed.
func (l *Ledger) IsClaimed(tag string) bool {
	_, ok := l.used[tag]
	return ok
}

// Add claims the tag and accumulates the contribution. Returns false, and
// accumulates nothing, if the tag was already claimed.
func (l *Ledger) Add(tag string, llr float64) bool {
	if !l.Claim(tag) {
		return false
	}
	l.logOdds += llr
	return true
}

// LogOdds returns the accumulated total.
func (l *Ledger) LogOdds() float64 {
	return l.logOdds
}
