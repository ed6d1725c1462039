package domain

// VocabularyItem is a single flashcard: a word and the translation the
// learner is asked to recall.
type VocabularyItem struct {
	ID          int64
	Word        string
	Translation string
	IsNew       bool // true until the item has been graded at least once
}

// SchedulingState is the per-item spaced-repetition bookkeeping persisted
// alongside a vocabulary item. CardJSON is an opaque blob owned by the
// memory-model scheduler; an empty string means the item has never been
// reviewed.
type SchedulingState struct {
	CardJSON       string
	DueAt          int64 // epoch millis; 0 means eligible as new, never due
	LastShownAt    int64 // epoch millis of the last review
	CorrectCount   int
	IncorrectCount int
}

// IsNew reports whether the item has never been graded.
// Invariant: IsNew == (CorrectCount == 0 && IncorrectCount == 0).
func (s SchedulingState) IsNew() bool {
	return s.CorrectCount == 0 && s.IncorrectCount == 0
}
