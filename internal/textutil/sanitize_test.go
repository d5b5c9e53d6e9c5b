package textutil

import (
	"errors"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"  run 1.raw ":     "run 1.raw",
		"a/b\\c:d*e.mgf":   "a-b-c-d-e.mgf",
		"what?<is>|this\"": "whatisthis",
		"..":               "",
		"":                 "",
	}
	for in, want := range tests {
		if got := SanitizeFileName(in); got != want {
			t.Fatalf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidateSegment(t *testing.T) {
	valid := []string{"alice", "project-1", "My Project"}
	for _, v := range valid {
		if err := ValidateSegment("project", v); err != nil {
			t.Fatalf("expected %q valid, got %v", v, err)
		}
	}
	invalid := []string{"", "  ", ".", "..", "a/b", `a\b`}
	for _, v := range invalid {
		if err := ValidateSegment("project", v); !errors.Is(err, ErrInvalidSegment) {
			t.Fatalf("expected %q invalid, got %v", v, err)
		}
	}
}

func TestUnderscoreSpaces(t *testing.T) {
	if got := UnderscoreSpaces("msms results.txt"); got != "msms_results.txt" {
		t.Fatalf("unexpected %q", got)
	}
}
