package domain

import (
	"errors"
	"testing"
)

func TestParseGrade(t *testing.T) {
	tests := []struct {
		input   string
		want    Grade
		wantErr bool
	}{
		{"again", Again, false},
		{"hard", Hard, false},
		{"good", Good, false},
		{"easy", Easy, false},
		{"1", Again, false},
		{"4", Easy, false},
		{"", 0, true},
		{"GOOD", 0, true},
		{"5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseGrade(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidGrade) {
					t.Fatalf("ParseGrade(%q) error = %v, want ErrInvalidGrade", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGrade(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseGrade(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestGradeCorrect(t *testing.T) {
	if Again.Correct() {
		t.Error("Again counted as correct")
	}
	for _, g := range []Grade{Hard, Good, Easy} {
		if !g.Correct() {
			t.Errorf("%v not counted as correct", g)
		}
	}
}

func TestGradeString(t *testing.T) {
	if got := Good.String(); got != "good" {
		t.Errorf("Good.String() = %q, want good", got)
	}
	if got := Grade(9).String(); got != "grade(9)" {
		t.Errorf("Grade(9).String() = %q, want grade(9)", got)
	}
}
