package grading

import (
	"testing"

	"github.com/antoniostano/beatrice/internal/phonics"
)

func TestGrade(t *testing.T) {
	tests := []struct {
		name    string
		letters []string
		prov    phonics.Provenance
		target  string
		correct bool
	}{
		{"exact match", []string{"c", "a", "t"}, phonics.ProvenanceDeterministic, "cat", true},
		{"wrong letters", []string{"c", "a", "p"}, phonics.ProvenanceDeterministic, "cat", false},
		{"empty parse", nil, phonics.ProvenanceNone, "cat", false},
		{"whole word", []string{"n", "e", "c", "e", "s", "s", "a", "r", "y"}, phonics.ProvenanceWholeWord, "necessary", true},
		{"case folded target", []string{"c", "a", "t"}, phonics.ProvenanceDeterministic, " CAT ", true},
		{"empty target never correct", nil, phonics.ProvenanceNone, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Grade(phonics.Result{Letters: tt.letters, Provenance: tt.prov}, tt.target)
			if v.Correct != tt.correct {
				t.Fatalf("Correct = %v, want %v", v.Correct, tt.correct)
			}
			if v.Provenance != tt.prov {
				t.Fatalf("Provenance = %q, want %q", v.Provenance, tt.prov)
			}
		})
	}
}

func TestRevealSpelling(t *testing.T) {
	if got := RevealSpelling("cat"); got != "c ... a ... t" {
		t.Fatalf("RevealSpelling = %q", got)
	}
}

func TestMaxAttemptsIsFixed(t *testing.T) {
	if MaxAttempts != 2 {
		t.Fatalf("MaxAttempts = %d, the retry cap is exactly two attempts per word", MaxAttempts)
	}
}
