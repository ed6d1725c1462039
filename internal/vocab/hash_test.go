package vocab

import "testing"

func TestHashIgnoresFormatting(t *testing.T) {
	base := Hash(Entry{Word: "der Hund", Translation: "the dog"})

	tests := []struct {
		name  string
		entry Entry
	}{
		{"different case", Entry{Word: "Der HUND", Translation: "The Dog"}},
		{"surrounding whitespace", Entry{Word: "  der Hund ", Translation: "\tthe dog  "}},
		{"windows line endings", Entry{Word: "der Hund", Translation: "the dog\r\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Hash(tt.entry); got != base {
				t.Errorf("hash changed for a formatting-only difference: %s vs %s", got, base)
			}
		})
	}
}

func TestHashDistinguishesContent(t *testing.T) {
	a := Hash(Entry{Word: "der Hund", Translation: "the dog"})
	b := Hash(Entry{Word: "der Hund", Translation: "the hound"})
	if a == b {
		t.Error("different translations produced the same hash")
	}

	// The field boundary matters: shifting text between word and
	// translation must change the identity.
	c := Hash(Entry{Word: "ab", Translation: "c"})
	d := Hash(Entry{Word: "a", Translation: "bc"})
	if c == d {
		t.Error("field boundary ignored by the hash")
	}
}
