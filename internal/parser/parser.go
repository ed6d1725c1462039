// Package parser extracts vocabulary entries from word-list files.
//
// A word list is a plain text or markdown file where each entry is a line
// of the form
//
//	word :: translation
//
// optionally prefixed with a markdown bullet ("-" or "*"). Blank lines,
// comment lines (#) and anything without the separator are ignored, so
// entries can live inside ordinary notes.
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/example/wordgate/internal/vocab"
)

const separator = "::"

// ParseFile reads a file from the given path and extracts all entries.
func ParseFile(path string) ([]vocab.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads from an io.Reader and extracts all entries.
func Parse(r io.Reader) ([]vocab.Entry, error) {
	scanner := bufio.NewScanner(r)
	var entries []vocab.Entry

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Strip a markdown bullet if present.
		for _, bullet := range []string{"- ", "* "} {
			if strings.HasPrefix(line, bullet) {
				line = strings.TrimSpace(line[len(bullet):])
				break
			}
		}

		word, translation, found := strings.Cut(line, separator)
		if !found {
			continue
		}
		word = strings.TrimSpace(word)
		translation = strings.TrimSpace(translation)
		if word == "" || translation == "" {
			continue
		}

		entries = append(entries, vocab.Entry{Word: word, Translation: translation})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
