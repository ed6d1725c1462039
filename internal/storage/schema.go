package storage

const schema = `
-- The 'vocabulary' table stores each flashcard together with its
-- spaced-repetition scheduling state. card_json is an opaque blob owned by
-- the memory-model scheduler; '' means the item was never reviewed.
CREATE TABLE IF NOT EXISTS vocabulary (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    word TEXT NOT NULL,
    translation TEXT NOT NULL,
    content_hash TEXT UNIQUE,                  -- set for imported items only
    card_json TEXT NOT NULL DEFAULT '',
    due_at INTEGER NOT NULL DEFAULT 0,         -- epoch millis; 0 = never due
    last_shown_at INTEGER NOT NULL DEFAULT 0,  -- epoch millis
    correct_count INTEGER NOT NULL DEFAULT 0,
    incorrect_count INTEGER NOT NULL DEFAULT 0,
    source_id INTEGER,

    FOREIGN KEY(source_id) REFERENCES sources(id)
);

CREATE INDEX IF NOT EXISTS idx_vocabulary_due ON vocabulary(due_at);
CREATE INDEX IF NOT EXISTS idx_vocabulary_counts ON vocabulary(correct_count, incorrect_count);

-- The 'sources' table tracks where word lists come from, either a local
-- directory or a git repository.
CREATE TABLE IF NOT EXISTS sources (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT 'local',        -- 'local' or 'git'
    last_scanned DATETIME
);

-- Singleton day-scoped counters; reset lazily when the day stamp changes.
CREATE TABLE IF NOT EXISTS day_counters (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    day INTEGER NOT NULL DEFAULT 0,            -- YYYYMMDD
    new_shown INTEGER NOT NULL DEFAULT 0,
    review_shown INTEGER NOT NULL DEFAULT 0,
    reviews_since_new INTEGER NOT NULL DEFAULT 0
);

-- Singleton learning policy; mutated only through the clamped setters.
CREATE TABLE IF NOT EXISTS study_prefs (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    new_per_day INTEGER NOT NULL,
    review_per_day INTEGER NOT NULL,
    mix_mode TEXT NOT NULL,
    bury_immediate_repeat INTEGER NOT NULL,
    overlay_interval INTEGER NOT NULL
);
`
