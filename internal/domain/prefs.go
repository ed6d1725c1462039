package domain

// MixMode controls how new and review items are interleaved in a session.
type MixMode string

const (
	// MixModeMix interleaves new items between reviews at a ratio derived
	// from the remaining daily quotas.
	MixModeMix MixMode = "mix"
	// MixModeReviewsFirst never intentionally prefers new items; new is
	// only served when nothing is due.
	MixModeReviewsFirst MixMode = "reviews_first"
	// MixModeNewFirst serves new items while any new quota remains.
	MixModeNewFirst MixMode = "new_first"
)

// ParseMixMode maps a stored string onto a MixMode, falling back to
// MixModeMix for unknown values rather than failing.
func ParseMixMode(s string) MixMode {
	switch MixMode(s) {
	case MixModeMix, MixModeReviewsFirst, MixModeNewFirst:
		return MixMode(s)
	default:
		return MixModeMix
	}
}

// Defaults and clamping bounds for the learning policy.
const (
	DefaultNewPerDay       = 15
	DefaultReviewPerDay    = 99
	DefaultOverlayInterval = 6

	MaxNewPerDay       = 200
	MaxReviewPerDay    = 2000
	MaxOverlayInterval = 2000
)

// LearningPrefs is the learner's study policy. A single instance exists
// per learner; it is mutated only through the store's clamped setters.
type LearningPrefs struct {
	NewPerDay           int
	ReviewPerDay        int
	Mix                 MixMode
	BuryImmediateRepeat bool
	// OverlayInterval is consumed by the overlay-display collaborator,
	// not by the selection engine itself.
	OverlayInterval int
}

// DefaultPrefs returns the policy used when nothing has been persisted yet.
func DefaultPrefs() LearningPrefs {
	return LearningPrefs{
		NewPerDay:           DefaultNewPerDay,
		ReviewPerDay:        DefaultReviewPerDay,
		Mix:                 MixModeMix,
		BuryImmediateRepeat: true,
		OverlayInterval:     DefaultOverlayInterval,
	}
}

// Clamp forces a value into [0, max].
func Clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

// DayCounters tracks how much has been shown on a given day. Day is a
// comparable YYYYMMDD stamp; the counters are reset lazily whenever the
// stamp no longer matches the current date.
type DayCounters struct {
	Day                 int // e.g. 20250824
	NewShown            int
	ReviewShown         int
	ReviewsSinceLastNew int
}
