package fsrs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sky-flux/flux"

	"github.com/example/wordgate/internal/domain"
)

// Scheduler is the memory-model contract the selection engine depends on:
// given an opaque card blob and a grade, produce the updated blob, the next
// due time and the review time. Interval math lives entirely behind it.
type Scheduler interface {
	Review(itemID int64, cardJSON string, grade domain.Grade, now time.Time) (Result, error)
}

// Result is the outcome of a single scheduled review.
type Result struct {
	CardJSON   string
	DueAt      int64 // epoch millis
	ReviewedAt int64 // epoch millis
}

// Options are the scheduler knobs exposed through configuration. Zero
// values fall back to the library defaults.
type Options struct {
	DesiredRetention float64
	MaximumInterval  int // days
	DisableFuzzing   bool
}

// Flux schedules reviews with the FSRS v6 implementation from
// github.com/sky-flux/flux. Card state round-trips as the library's own
// JSON form.
type Flux struct {
	s *flux.Scheduler
}

var _ Scheduler = (*Flux)(nil)

// New creates a Flux scheduler with the given options.
func New(opts Options) (*Flux, error) {
	s, err := flux.NewScheduler(flux.SchedulerConfig{
		DesiredRetention: opts.DesiredRetention,
		MaximumInterval:  opts.MaximumInterval,
		DisableFuzzing:   opts.DisableFuzzing,
	})
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	return &Flux{s: s}, nil
}

// Review applies a grade to the card blob at the given time. An empty blob
// is treated as the default, never-reviewed card. A blob that fails to
// parse returns domain.ErrCorruptCardState.
func (f *Flux) Review(itemID int64, cardJSON string, grade domain.Grade, now time.Time) (Result, error) {
	card, err := DecodeCard(itemID, cardJSON, now)
	if err != nil {
		return Result{}, err
	}

	updated, log := f.s.ReviewCard(card, rating(grade), now)

	blob, err := json.Marshal(updated)
	if err != nil {
		return Result{}, fmt.Errorf("encode card: %w", err)
	}

	return Result{
		CardJSON:   string(blob),
		DueAt:      updated.Due.UnixMilli(),
		ReviewedAt: log.ReviewDatetime.UnixMilli(),
	}, nil
}

// DecodeCard parses a persisted card blob. An empty blob yields the default
// untouched card, due immediately.
func DecodeCard(itemID int64, cardJSON string, now time.Time) (flux.Card, error) {
	if strings.TrimSpace(cardJSON) == "" {
		card := flux.NewCard(itemID)
		card.Due = now
		return card, nil
	}

	var card flux.Card
	if err := json.Unmarshal([]byte(cardJSON), &card); err != nil {
		return flux.Card{}, fmt.Errorf("%w: %v", domain.ErrCorruptCardState, err)
	}
	switch card.State {
	case flux.Learning, flux.Review, flux.Relearning:
	default:
		return flux.Card{}, fmt.Errorf("%w: unknown state %d", domain.ErrCorruptCardState, int(card.State))
	}
	return card, nil
}

// rating maps the domain grade onto the library's rating scale. The switch
// is exhaustive over the four defined grades.
func rating(g domain.Grade) flux.Rating {
	switch g {
	case domain.Again:
		return flux.Again
	case domain.Hard:
		return flux.Hard
	case domain.Good:
		return flux.Good
	case domain.Easy:
		return flux.Easy
	default:
		// Callers validate grades before reaching the scheduler.
		return flux.Again
	}
}
