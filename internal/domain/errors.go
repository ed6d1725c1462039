package domain

import "errors"

// Domain errors for the selection engine and its stores.
// Use errors.Is to branch: errors.Is(err, domain.ErrNoAvailableItems).
var (
	// ErrNoAvailableItems means the daily quotas are exhausted and nothing
	// is due. It is a normal outcome ("all done for today"), not a bug.
	ErrNoAvailableItems = errors.New("daily limits reached and no reviews due")

	// ErrItemNotFound means an item id vanished between selection and
	// fetch, e.g. a concurrent delete.
	ErrItemNotFound = errors.New("vocabulary item not found")

	// ErrCorruptCardState means a persisted scheduler blob failed to
	// parse. Callers may self-heal by substituting the default state.
	ErrCorruptCardState = errors.New("corrupt card state")

	// ErrInvalidGrade means a review grade outside the four-value scale.
	ErrInvalidGrade = errors.New("invalid grade")
)
