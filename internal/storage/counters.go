package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/wordgate/internal/domain"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ReadCounters returns the current day counters.
func (db *DB) ReadCounters(ctx context.Context) (domain.DayCounters, error) {
	var c domain.DayCounters
	err := db.conn.QueryRowContext(ctx, `
		SELECT day, new_shown, review_shown, reviews_since_new FROM day_counters WHERE id = 1
	`).Scan(&c.Day, &c.NewShown, &c.ReviewShown, &c.ReviewsSinceLastNew)
	if err != nil {
		return domain.DayCounters{}, fmt.Errorf("failed to read day counters: %w", err)
	}
	return c, nil
}

// ResetCountersFor stamps the counters with the given day and zeroes all
// three counts atomically.
func (db *DB) ResetCountersFor(ctx context.Context, day int) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE day_counters
		SET day = ?, new_shown = 0, review_shown = 0, reviews_since_new = 0
		WHERE id = 1
	`, day)
	if err != nil {
		return fmt.Errorf("failed to reset day counters for %d: %w", day, err)
	}
	return nil
}

// MarkNewShown records that a new item was shown: bumps new_shown and
// restarts the reviews-since-new run.
func (db *DB) MarkNewShown(ctx context.Context) error {
	return markShown(ctx, db.conn, true)
}

// MarkReviewShown records that a review was shown.
func (db *DB) MarkReviewShown(ctx context.Context) error {
	return markShown(ctx, db.conn, false)
}

// markShown is shared between the standalone mark calls and the review
// transaction in ApplyReview.
func markShown(ctx context.Context, ex execer, wasNew bool) error {
	var query string
	if wasNew {
		query = `
			UPDATE day_counters
			SET new_shown = new_shown + 1, reviews_since_new = 0
			WHERE id = 1
		`
	} else {
		query = `
			UPDATE day_counters
			SET review_shown = review_shown + 1, reviews_since_new = reviews_since_new + 1
			WHERE id = 1
		`
	}
	if _, err := ex.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to mark shown: %w", err)
	}
	return nil
}

// ReadPrefs returns the current learning policy.
func (db *DB) ReadPrefs(ctx context.Context) (domain.LearningPrefs, error) {
	var (
		p    domain.LearningPrefs
		mix  string
		bury int
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT new_per_day, review_per_day, mix_mode, bury_immediate_repeat, overlay_interval
		FROM study_prefs WHERE id = 1
	`).Scan(&p.NewPerDay, &p.ReviewPerDay, &mix, &bury, &p.OverlayInterval)
	if err != nil {
		return domain.LearningPrefs{}, fmt.Errorf("failed to read study prefs: %w", err)
	}
	p.Mix = domain.ParseMixMode(mix)
	p.BuryImmediateRepeat = bury != 0
	return p, nil
}

// SetNewPerDay persists the daily new-item cap, clamped to [0, 200].
func (db *DB) SetNewPerDay(ctx context.Context, v int) error {
	return db.setPref(ctx, "new_per_day", domain.Clamp(v, domain.MaxNewPerDay))
}

// SetReviewPerDay persists the daily review cap, clamped to [0, 2000].
func (db *DB) SetReviewPerDay(ctx context.Context, v int) error {
	return db.setPref(ctx, "review_per_day", domain.Clamp(v, domain.MaxReviewPerDay))
}

// SetOverlayInterval persists the overlay interval, clamped to [0, 2000].
func (db *DB) SetOverlayInterval(ctx context.Context, v int) error {
	return db.setPref(ctx, "overlay_interval", domain.Clamp(v, domain.MaxOverlayInterval))
}

// SetMixMode persists the interleaving mode. Unknown values fall back to
// mix, matching ParseMixMode.
func (db *DB) SetMixMode(ctx context.Context, mode domain.MixMode) error {
	return db.setPref(ctx, "mix_mode", string(domain.ParseMixMode(string(mode))))
}

// SetBuryImmediateRepeat persists the immediate-repeat avoidance flag.
func (db *DB) SetBuryImmediateRepeat(ctx context.Context, v bool) error {
	return db.setPref(ctx, "bury_immediate_repeat", boolToInt(v))
}

func (db *DB) setPref(ctx context.Context, column string, value any) error {
	// column comes from the fixed set above, never from input.
	_, err := db.conn.ExecContext(ctx, `UPDATE study_prefs SET `+column+` = ? WHERE id = 1`, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}
	return nil
}
