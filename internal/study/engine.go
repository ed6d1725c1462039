package study

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/example/wordgate/internal/domain"
	"github.com/example/wordgate/internal/fsrs"
	"github.com/example/wordgate/internal/storage"
)

// Store is the persistence surface the engine needs: one learner's item
// pool, day counters and policy.
type Store interface {
	ReadCounters(ctx context.Context) (domain.DayCounters, error)
	ResetCountersFor(ctx context.Context, day int) error
	ReadPrefs(ctx context.Context) (domain.LearningPrefs, error)

	CountNew(ctx context.Context) (int, error)
	PickNewIDByOffset(ctx context.Context, offset int) (int64, bool, error)
	CountDue(ctx context.Context, now int64) (int, error)
	PickDueID(ctx context.Context, now int64) (int64, bool, error)
	PickOtherID(ctx context.Context, exclude int64) (int64, bool, error)
	GetItem(ctx context.Context, id int64) (*storage.Item, error)
	ApplyReview(ctx context.Context, p storage.ApplyReviewParams) error
}

// Engine selects the next vocabulary item to present and applies review
// grades. Selection and review share one mutex: the day-rollover check,
// counter snapshot and candidate pick form a critical section, and two
// near-simultaneous calls must not both claim the last available item.
type Engine struct {
	mu    sync.Mutex
	store Store
	sched fsrs.Scheduler
	now   func() time.Time
	rng   *rand.Rand
	log   *slog.Logger

	// lastShownID backs immediate-repeat avoidance. It is a session
	// cursor, process-scoped, never persisted.
	lastShownID int64
	// current caches the most recently served item so the display
	// collaborator can re-read it; cleared by Review.
	current *domain.VocabularyItem
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand overrides the sampling source.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithLogger overrides the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine over the given store and scheduler.
func New(store Store, sched fsrs.Scheduler, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		sched: sched,
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// dayStamp renders a time as a comparable YYYYMMDD integer.
func dayStamp(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// NextItem returns the next vocabulary item to present, honouring the
// daily quotas and the interleaving policy. It fails with
// domain.ErrNoAvailableItems when nothing qualifies. That is a normal
// outcome, meaning "all done for today".
func (e *Engine) NextItem(ctx context.Context) (domain.VocabularyItem, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	item, err := e.selectNext(ctx)
	if errors.Is(err, domain.ErrItemNotFound) {
		// The picked id vanished between pick and fetch (concurrent
		// delete). Retry the whole selection once.
		e.log.Warn("selected item vanished, retrying selection", "error", err)
		item, err = e.selectNext(ctx)
	}
	return item, err
}

func (e *Engine) selectNext(ctx context.Context) (domain.VocabularyItem, error) {
	now := e.now()
	if err := e.ensureDay(ctx, now); err != nil {
		return domain.VocabularyItem{}, err
	}

	// One consistent snapshot of counters and policy per call.
	counters, err := e.store.ReadCounters(ctx)
	if err != nil {
		return domain.VocabularyItem{}, err
	}
	prefs, err := e.store.ReadPrefs(ctx)
	if err != nil {
		return domain.VocabularyItem{}, err
	}

	newRemaining := remaining(prefs.NewPerDay, counters.NewShown)
	reviewRemaining := remaining(prefs.ReviewPerDay, counters.ReviewShown)

	// An exhausted review quota hides due reviews entirely.
	dueCount := 0
	if reviewRemaining > 0 {
		dueCount, err = e.store.CountDue(ctx, now.UnixMilli())
		if err != nil {
			return domain.VocabularyItem{}, err
		}
	}

	if newRemaining == 0 && dueCount == 0 {
		return domain.VocabularyItem{}, domain.ErrNoAvailableItems
	}

	// Decide which queue we intend to draw from.
	var wantNew bool
	switch prefs.Mix {
	case domain.MixModeNewFirst:
		wantNew = newRemaining > 0
	case domain.MixModeReviewsFirst:
		wantNew = false
	case domain.MixModeMix:
		wantNew = serveNewMixed(newRemaining, reviewRemaining, dueCount, counters.ReviewsSinceLastNew)
	}

	var (
		pickID int64
		picked bool
	)
	switch {
	// Prefer due reviews unless we explicitly want new right now.
	case dueCount > 0 && !wantNew:
		pickID, picked, err = e.store.PickDueID(ctx, now.UnixMilli())
		if err != nil {
			return domain.VocabularyItem{}, err
		}

	// Ratio hit, or nothing due: try new within the daily cap.
	case newRemaining > 0 && (wantNew || dueCount == 0):
		pickID, picked, err = e.pickNew(ctx)
		if err != nil {
			return domain.VocabularyItem{}, err
		}

		// Quotas exhausted for the queues that have items: no fallback to
		// arbitrary items, by policy.
	}

	if !picked {
		return domain.VocabularyItem{}, domain.ErrNoAvailableItems
	}

	// Avoid an immediate repeat when an alternate exists.
	if prefs.BuryImmediateRepeat && e.lastShownID != 0 && pickID == e.lastShownID {
		if alt, ok, err := e.store.PickOtherID(ctx, pickID); err != nil {
			return domain.VocabularyItem{}, err
		} else if ok {
			pickID = alt
		}
	}

	return e.finalize(ctx, pickID)
}

// pickNew samples uniformly over the never-graded pool with a
// count-then-offset scheme, falling back to offset 0 if the pool shrank
// between the two queries.
func (e *Engine) pickNew(ctx context.Context) (int64, bool, error) {
	totalNew, err := e.store.CountNew(ctx)
	if err != nil {
		return 0, false, err
	}
	if totalNew == 0 {
		return 0, false, nil
	}

	id, ok, err := e.store.PickNewIDByOffset(ctx, e.rng.Intn(totalNew))
	if err != nil {
		return 0, false, err
	}
	if !ok {
		id, ok, err = e.store.PickNewIDByOffset(ctx, 0)
		if err != nil {
			return 0, false, err
		}
	}
	return id, ok, nil
}

// finalize loads the chosen item and records it as the session's current
// item. An item with no card state stays untouched here; the default state
// is materialized at review time.
func (e *Engine) finalize(ctx context.Context, id int64) (domain.VocabularyItem, error) {
	rec, err := e.store.GetItem(ctx, id)
	if err != nil {
		return domain.VocabularyItem{}, err
	}
	if rec == nil {
		return domain.VocabularyItem{}, fmt.Errorf("%w: picked id %d", domain.ErrItemNotFound, id)
	}

	item := rec.Vocab()
	e.current = &item
	e.lastShownID = id
	return item, nil
}

// Review applies a grade to an item: runs the memory-model scheduler,
// persists the updated state together with the counter bumps, and clears
// the current-item cache so the next selection re-runs the algorithm.
func (e *Engine) Review(ctx context.Context, id int64, grade domain.Grade) error {
	if !grade.IsValid() {
		return fmt.Errorf("%w: %d", domain.ErrInvalidGrade, int(grade))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.store.GetItem(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: id %d", domain.ErrItemNotFound, id)
	}

	// Classify on the pre-review counts: this review consumes new quota
	// iff the item had never been graded before it.
	wasNew := rec.State.IsNew()

	now := e.now()
	res, err := e.sched.Review(id, rec.State.CardJSON, grade, now)
	if errors.Is(err, domain.ErrCorruptCardState) {
		// Self-heal: treat the item as never reviewed. The correctness
		// counters are unaffected, so nothing user-visible is lost.
		e.log.Warn("corrupt card state, resetting to default", "item", id, "error", err)
		res, err = e.sched.Review(id, "", grade, now)
	}
	if err != nil {
		return err
	}

	if err := e.store.ApplyReview(ctx, storage.ApplyReviewParams{
		ID:         id,
		CardJSON:   res.CardJSON,
		DueAt:      res.DueAt,
		ReviewedAt: res.ReviewedAt,
		Correct:    grade.Correct(),
		WasNew:     wasNew,
	}); err != nil {
		return err
	}

	e.current = nil
	return nil
}

// HasAvailable reports whether anything is presentable right now, without
// materializing item lists. Used by the gating collaborator on every
// foreground change, so it stays two counting queries at most.
func (e *Engine) HasAvailable(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	if err := e.ensureDay(ctx, now); err != nil {
		return false, err
	}

	counters, err := e.store.ReadCounters(ctx)
	if err != nil {
		return false, err
	}
	prefs, err := e.store.ReadPrefs(ctx)
	if err != nil {
		return false, err
	}

	if remaining(prefs.ReviewPerDay, counters.ReviewShown) > 0 {
		dueCount, err := e.store.CountDue(ctx, now.UnixMilli())
		if err != nil {
			return false, err
		}
		if dueCount > 0 {
			return true, nil
		}
	}

	if remaining(prefs.NewPerDay, counters.NewShown) > 0 {
		totalNew, err := e.store.CountNew(ctx)
		if err != nil {
			return false, err
		}
		if totalNew > 0 {
			return true, nil
		}
	}
	return false, nil
}

// CurrentItem returns the most recently served item, or nil right after a
// review or before the first selection.
func (e *Engine) CurrentItem() *domain.VocabularyItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	item := *e.current
	return &item
}

// ensureDay lazily resets the counters when the stored stamp is not today.
func (e *Engine) ensureDay(ctx context.Context, now time.Time) error {
	today := dayStamp(now)
	counters, err := e.store.ReadCounters(ctx)
	if err != nil {
		return err
	}
	if counters.Day != today {
		return e.store.ResetCountersFor(ctx, today)
	}
	return nil
}

// serveNewMixed implements the mix policy: show one new item after r
// reviews, where r is derived from the remaining quotas. As the review
// queue shrinks relative to the remaining new quota, new items surface
// more often. A targeted ratio, not a fixed probability.
func serveNewMixed(newRemaining, reviewRemaining, dueCount, reviewsSinceLastNew int) bool {
	if newRemaining <= 0 {
		return false
	}
	if dueCount == 0 && reviewRemaining == 0 {
		return true // no reviews left; show new
	}
	r := int(math.Max(1, math.Ceil(float64(reviewRemaining)/float64(newRemaining))))
	return reviewsSinceLastNew >= r
}

func remaining(quota, shown int) int {
	if r := quota - shown; r > 0 {
		return r
	}
	return 0
}
