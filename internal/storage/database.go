package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/example/wordgate/internal/domain"
)

// DB wraps the SQL database connection holding the vocabulary pool, the
// day counters and the learning policy for a single learner.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema and the
// singleton counter/policy rows exist.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.seedSingletons(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// seedSingletons inserts the counter and policy rows if missing, so reads
// never have to handle an absent row.
func (db *DB) seedSingletons() error {
	if _, err := db.conn.Exec(`
		INSERT OR IGNORE INTO day_counters (id, day, new_shown, review_shown, reviews_since_new)
		VALUES (1, 0, 0, 0, 0)
	`); err != nil {
		return fmt.Errorf("failed to seed day counters: %w", err)
	}

	prefs := domain.DefaultPrefs()
	if _, err := db.conn.Exec(`
		INSERT OR IGNORE INTO study_prefs (id, new_per_day, review_per_day, mix_mode, bury_immediate_repeat, overlay_interval)
		VALUES (1, ?, ?, ?, ?, ?)
	`,
		prefs.NewPerDay,
		prefs.ReviewPerDay,
		string(prefs.Mix),
		boolToInt(prefs.BuryImmediateRepeat),
		prefs.OverlayInterval,
	); err != nil {
		return fmt.Errorf("failed to seed study prefs: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Item is a vocabulary row together with its scheduling state.
type Item struct {
	ID          int64
	Word        string
	Translation string
	ContentHash sql.NullString
	SourceID    sql.NullInt64
	State       domain.SchedulingState
}

// Vocab maps the row onto the domain item.
func (i Item) Vocab() domain.VocabularyItem {
	return domain.VocabularyItem{
		ID:          i.ID,
		Word:        i.Word,
		Translation: i.Translation,
		IsNew:       i.State.IsNew(),
	}
}

const itemColumns = `id, word, translation, content_hash, card_json, due_at, last_shown_at, correct_count, incorrect_count, source_id`

func scanItem(row interface{ Scan(...any) error }) (*Item, error) {
	var it Item
	err := row.Scan(
		&it.ID,
		&it.Word,
		&it.Translation,
		&it.ContentHash,
		&it.State.CardJSON,
		&it.State.DueAt,
		&it.State.LastShownAt,
		&it.State.CorrectCount,
		&it.State.IncorrectCount,
		&it.SourceID,
	)
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// InsertItem adds a manually created vocabulary item. The item starts new:
// empty card blob, never due.
func (db *DB) InsertItem(ctx context.Context, word, translation string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO vocabulary (word, translation)
		VALUES (?, ?)
	`, word, translation)
	if err != nil {
		return 0, fmt.Errorf("failed to insert item %q: %w", word, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id for %q: %w", word, err)
	}
	return id, nil
}

// InsertImportedItem adds an item discovered by source sync, keyed by its
// content hash for deduplication across re-syncs.
func (db *DB) InsertImportedItem(ctx context.Context, word, translation, hash string, sourceID int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO vocabulary (word, translation, content_hash, source_id)
		VALUES (?, ?, ?, ?)
	`, word, translation, hash, sourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert imported item %q: %w", word, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id for %q: %w", word, err)
	}
	return id, nil
}

// UpdateItemText changes the prompt/answer text without touching the
// scheduling state.
func (db *DB) UpdateItemText(ctx context.Context, id int64, word, translation string) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE vocabulary SET word = ?, translation = ? WHERE id = ?
	`, word, translation, id)
	if err != nil {
		return fmt.Errorf("failed to update item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of item %d: %w", id, err)
	}
	if n == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

// DeleteItem removes an item by id.
func (db *DB) DeleteItem(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM vocabulary WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, err)
	}
	return nil
}

// GetItem fetches an item by id. Returns nil when the id does not exist.
func (db *DB) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM vocabulary WHERE id = ?
	`, id)
	it, err := scanItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return it, nil
}

// FindItemByHash fetches an imported item by its content hash. Returns nil
// when no item carries the hash.
func (db *DB) FindItemByHash(ctx context.Context, hash string) (*Item, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM vocabulary WHERE content_hash = ?
	`, hash)
	it, err := scanItem(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find item by hash %s: %w", hash, err)
	}
	return it, nil
}

// ListItems returns all vocabulary items ordered by word.
func (db *DB) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM vocabulary ORDER BY word COLLATE NOCASE
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// ItemsBySource returns all items imported from the given source.
func (db *DB) ItemsBySource(ctx context.Context, sourceID int64) ([]Item, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM vocabulary WHERE source_id = ?
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for source %d: %w", sourceID, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row for source %d: %w", sourceID, err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// CountNew counts items that have never been graded.
func (db *DB) CountNew(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vocabulary WHERE correct_count = 0 AND incorrect_count = 0
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count new items: %w", err)
	}
	return n, nil
}

// PickNewIDByOffset returns the id at the given offset into the new pool,
// in stable id order. Combined with CountNew this gives uniform sampling
// without materializing the pool. ok is false when the offset is past the
// end (the pool shrank between the two queries).
func (db *DB) PickNewIDByOffset(ctx context.Context, offset int) (id int64, ok bool, err error) {
	err = db.conn.QueryRowContext(ctx, `
		SELECT id FROM vocabulary
		WHERE correct_count = 0 AND incorrect_count = 0
		ORDER BY id
		LIMIT 1 OFFSET ?
	`, offset).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to pick new item at offset %d: %w", offset, err)
	}
	return id, true, nil
}

// CountDue counts items whose due time has passed. Items that were never
// reviewed (due_at = 0) are not due; they are new.
func (db *DB) CountDue(ctx context.Context, now int64) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM vocabulary WHERE due_at > 0 AND due_at <= ?
	`, now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count due items: %w", err)
	}
	return n, nil
}

// PickDueID returns the earliest-due item id, breaking due-time ties by
// lowest id so the pick is deterministic for a fixed state.
func (db *DB) PickDueID(ctx context.Context, now int64) (id int64, ok bool, err error) {
	err = db.conn.QueryRowContext(ctx, `
		SELECT id FROM vocabulary
		WHERE due_at > 0 AND due_at <= ?
		ORDER BY due_at, id
		LIMIT 1
	`, now).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to pick due item: %w", err)
	}
	return id, true, nil
}

// PickOtherID returns a random item id different from exclude, used to
// avoid showing the same item twice in a row.
func (db *DB) PickOtherID(ctx context.Context, exclude int64) (id int64, ok bool, err error) {
	err = db.conn.QueryRowContext(ctx, `
		SELECT id FROM vocabulary WHERE id != ? ORDER BY RANDOM() LIMIT 1
	`, exclude).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to pick alternate item: %w", err)
	}
	return id, true, nil
}

// ApplyReviewParams carries everything a review writes back.
type ApplyReviewParams struct {
	ID         int64
	CardJSON   string
	DueAt      int64 // epoch millis
	ReviewedAt int64 // epoch millis
	Correct    bool  // grade other than Again
	WasNew     bool  // item had zero counts before this review
}

// ApplyReview persists the outcome of one review: the new card blob, due
// and last-shown times, the correctness counter bump, and the day-counter
// bump, all in a single transaction so a cancelled caller can never leave
// half a review behind.
func (db *DB) ApplyReview(ctx context.Context, p ApplyReviewParams) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback()

	incCorrect, incIncorrect := 0, 1
	if p.Correct {
		incCorrect, incIncorrect = 1, 0
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE vocabulary
		SET card_json = ?,
		    due_at = ?,
		    last_shown_at = ?,
		    correct_count = correct_count + ?,
		    incorrect_count = incorrect_count + ?
		WHERE id = ?
	`, p.CardJSON, p.DueAt, p.ReviewedAt, incCorrect, incIncorrect, p.ID)
	if err != nil {
		return fmt.Errorf("failed to apply review to item %d: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check review of item %d: %w", p.ID, err)
	}
	if n == 0 {
		return domain.ErrItemNotFound
	}

	if err := markShown(ctx, tx, p.WasNew); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review of item %d: %w", p.ID, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
