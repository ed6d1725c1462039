package domain

import "fmt"

// Grade is the learner's recall-quality answer for a review.
// The values match the FSRS rating scale.
type Grade int

const (
	Again Grade = iota + 1 // failed to recall
	Hard                   // recalled with significant difficulty
	Good                   // recalled with some effort
	Easy                   // recalled effortlessly
)

var gradeNames = [...]string{Again: "again", Hard: "hard", Good: "good", Easy: "easy"}

// String returns the lowercase grade name, or "grade(n)" for invalid values.
func (g Grade) String() string {
	if g.IsValid() {
		return gradeNames[g]
	}
	return fmt.Sprintf("grade(%d)", int(g))
}

// IsValid reports whether g is one of the four defined grades.
func (g Grade) IsValid() bool {
	return g >= Again && g <= Easy
}

// Correct reports whether the grade counts as a successful recall for the
// correctness counters. Only Again counts as incorrect; the intermediate
// grades carry no partial credit.
func (g Grade) Correct() bool {
	return g != Again
}

// ParseGrade converts a form/query value into a Grade.
func ParseGrade(s string) (Grade, error) {
	switch s {
	case "again", "1":
		return Again, nil
	case "hard", "2":
		return Hard, nil
	case "good", "3":
		return Good, nil
	case "easy", "4":
		return Easy, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidGrade, s)
	}
}
