package phonics

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type scriptedExtractor struct {
	letters []string
	err     error
	calls   int
}

func (s *scriptedExtractor) ExtractLetters(_ context.Context, _, _ string) ([]string, error) {
	s.calls++
	return s.letters, s.err
}

func TestParseHomophoneSpelling(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(context.Background(), "see ay tee", "cat")
	if res.Spelled() != "cat" {
		t.Fatalf("Spelled() = %q, want %q", res.Spelled(), "cat")
	}
	if res.Provenance != ProvenanceDeterministic {
		t.Fatalf("Provenance = %q, want %q", res.Provenance, ProvenanceDeterministic)
	}
}

func TestParseNATOAlphabet(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(context.Background(), "delta oscar golf", "dog")
	if res.Spelled() != "dog" || res.Provenance != ProvenanceDeterministic {
		t.Fatalf("got %q (%s)", res.Spelled(), res.Provenance)
	}
}

func TestParseSplitsConcatenatedLetters(t *testing.T) {
	// The recognizer may collapse letter-by-letter speech into the word itself.
	p := NewParser(nil)
	res := p.Parse(context.Background(), "necessary", "necessary")
	if res.Spelled() != "necessary" {
		t.Fatalf("Spelled() = %q, want %q", res.Spelled(), "necessary")
	}
	if res.Provenance != ProvenanceDeterministic {
		t.Fatalf("Provenance = %q, want deterministic via splitting", res.Provenance)
	}
}

func TestParseSplitRejectedWhenTooLong(t *testing.T) {
	// Held tokens longer than the target must not be force-split; with the
	// fallback disabled the whole-word stage is the only acceptance path left.
	p := NewParser(nil)
	res := p.Parse(context.Background(), "encyclopedia", "cat")
	if res.Provenance == ProvenanceDeterministic && res.Spelled() == "encyclopedia" {
		t.Fatalf("decomposition exceeding target length was accepted: %q", res.Spelled())
	}
}

func TestParseWholeWordMatch(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(context.Background(), "um the word is beautiful I think", "beautiful")
	if res.Provenance != ProvenanceWholeWord {
		t.Fatalf("Provenance = %q, want %q", res.Provenance, ProvenanceWholeWord)
	}
	if res.Spelled() != "beautiful" {
		t.Fatalf("Spelled() = %q, want %q", res.Spelled(), "beautiful")
	}
}

func TestParseEmptyTranscript(t *testing.T) {
	p := NewParser(nil)
	res := p.Parse(context.Background(), "   ", "cat")
	if res.Provenance != ProvenanceNone {
		t.Fatalf("Provenance = %q, want %q", res.Provenance, ProvenanceNone)
	}
	if len(res.Letters) != 0 {
		t.Fatalf("Letters = %v, want empty", res.Letters)
	}
}

func TestParseGenerativeFallback(t *testing.T) {
	ext := &scriptedExtractor{letters: []string{"r", "a", "c", "e"}}
	p := NewParser(ext)
	res := p.Parse(context.Background(), "argh ay sea ee", "race")
	if res.Spelled() != "race" {
		t.Fatalf("Spelled() = %q, want %q", res.Spelled(), "race")
	}
	if res.Provenance != ProvenanceGenerative {
		t.Fatalf("Provenance = %q, want %q", res.Provenance, ProvenanceGenerative)
	}
	if ext.calls != 1 {
		t.Fatalf("extractor calls = %d, want exactly 1 per attempt", ext.calls)
	}
}

func TestParseFallbackNotCalledWhenDeterministicMatches(t *testing.T) {
	ext := &scriptedExtractor{letters: []string{"x"}}
	p := NewParser(ext)
	res := p.Parse(context.Background(), "bee ee ee", "bee")
	if res.Provenance != ProvenanceDeterministic {
		t.Fatalf("Provenance = %q, want deterministic", res.Provenance)
	}
	if ext.calls != 0 {
		t.Fatalf("extractor calls = %d, want 0", ext.calls)
	}
}

func TestParseFallbackFailureKeepsPreFallbackLetters(t *testing.T) {
	ext := &scriptedExtractor{err: errors.New("model unreachable")}
	p := NewParser(ext)
	res := p.Parse(context.Background(), "bee ay dee", "bed")
	if res.Provenance != ProvenanceDeterministic {
		t.Fatalf("Provenance = %q, want deterministic pre-fallback value", res.Provenance)
	}
	if res.Spelled() != "bad" {
		t.Fatalf("Spelled() = %q, want %q", res.Spelled(), "bad")
	}
}

func TestParseFallbackGarbageFiltered(t *testing.T) {
	ext := &scriptedExtractor{letters: []string{"C", " a ", "t!", "", "zz"}}
	p := NewParser(ext)
	res := p.Parse(context.Background(), "gibberish input", "cat")
	if res.Provenance != ProvenanceGenerative {
		t.Fatalf("Provenance = %q, want generative", res.Provenance)
	}
	if res.Spelled() != "ca" {
		t.Fatalf("Spelled() = %q, want only valid single letters kept", res.Spelled())
	}
}

func TestParseDeterministicStagesArePure(t *testing.T) {
	p := NewParser(nil)
	for i := 0; i < 3; i++ {
		res := p.Parse(context.Background(), "en ee see", "nec")
		if res.Spelled() != "nec" {
			t.Fatalf("iteration %d: Spelled() = %q", i, res.Spelled())
		}
	}
}

func TestLookupCatalogueSize(t *testing.T) {
	// The homophone catalogue plus NATO words must stay comfortably above the
	// sixty-entry floor the recognizer vocabulary needs.
	if n := len(letterHomophones) + len(natoAlphabet); n < 60 {
		t.Fatalf("lexicon has %d entries, want >= 60", n)
	}
	for letter := 'a'; letter <= 'z'; letter++ {
		got, ok := Lookup(string(letter))
		if !ok || got != string(letter) {
			t.Fatalf("Lookup(%q) = %q, %v", string(letter), got, ok)
		}
	}
}

func TestFuzzyLookupHighConfidenceOnly(t *testing.T) {
	if letter, ok := FuzzyLookup("dubblyou"); ok && letter != "w" {
		t.Fatalf("FuzzyLookup(dubblyou) = %q, want w when accepted", letter)
	}
	if _, ok := FuzzyLookup("minecraft"); ok {
		t.Fatalf("FuzzyLookup(minecraft) accepted an unrelated word")
	}
}

func TestNormalizeWord(t *testing.T) {
	cases := map[string]string{
		" Necessary! ": "necessary",
		"x-ray":        "xray",
		"":             "",
	}
	for in, want := range cases {
		if got := NormalizeWord(in); got != want {
			t.Fatalf("NormalizeWord(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTokenizeStripsPunctuation(t *testing.T) {
	got := Tokenize("Bee, ay... tee?")
	if strings.Join(got, " ") != "bee ay tee" {
		t.Fatalf("Tokenize = %v", got)
	}
}
