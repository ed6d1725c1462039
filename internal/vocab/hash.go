package vocab

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Entry is a word/translation pair parsed from a word-list source, before
// it gains an id or scheduling state.
type Entry struct {
	Word        string
	Translation string
}

// Normalize cleans and concatenates the entry's content: trims whitespace,
// lowercases, and normalizes line endings for each field before joining.
// Two entries that differ only in casing or spacing hash identically, so a
// reformatted word list does not reset learning progress.
func Normalize(e Entry) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	// Joined with a newline so fields cannot accidentally run together.
	return strings.Join([]string{normalizePart(e.Word), normalizePart(e.Translation)}, "\n")
}

// Hash normalizes the entry and returns its SHA-256 as a hex string. This
// is the import identity used to deduplicate entries across re-syncs.
func Hash(e Entry) string {
	normalized := Normalize(e)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
