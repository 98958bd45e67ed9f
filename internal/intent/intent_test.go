package intent

import (
	"os"
	"path/filepath"
	"testing"
)

func newDefaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultRuleSet())
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	return c
}

func TestClassifyKnownIntents(t *testing.T) {
	c := newDefaultClassifier(t)
	tests := []struct {
		transcript string
		want       Intent
	}{
		{"what does it mean", Definition},
		{"can you explain", Definition},
		{"use it in a sentence", Sentence},
		{"say it again", Repeat},
		{"one more time", Repeat},
		{"skip this", Skip},
		{"next word please", Skip},
		{"tell me a joke", OffTopic},
		{"I want to play minecraft", OffTopic},
		{"bee ee ay", Spelling},
		{"", Spelling},
	}
	for _, tt := range tests {
		got := c.Classify(tt.transcript)
		if got.Intent != tt.want {
			t.Errorf("Classify(%q) = %q, want %q", tt.transcript, got.Intent, tt.want)
		}
	}
}

func TestClassifyOffTopicCarriesRedirect(t *testing.T) {
	c := newDefaultClassifier(t)
	got := c.Classify("tell me a joke")
	if got.Intent != OffTopic || got.Redirect == "" {
		t.Fatalf("Classify = %+v, want off_topic with redirect message", got)
	}
}

func TestClassifyLongChatterHeuristic(t *testing.T) {
	c := newDefaultClassifier(t)
	got := c.Classify("yesterday after school everybody decided something completely different happened outside somewhere")
	if got.Intent != OffTopic {
		t.Fatalf("long non-spelling utterance classified %q, want off_topic", got.Intent)
	}

	// A long stream of letter-like tokens is still a spelling attempt.
	got = c.Classify("en ee see ee ess ess ay are why yes")
	if got.Intent != Spelling {
		t.Fatalf("letter-by-letter utterance classified %q, want spelling", got.Intent)
	}
}

func TestClassifierFailsOpen(t *testing.T) {
	c := newDefaultClassifier(t)
	if got := c.Classify("xqzt blorp"); got.Intent != Spelling {
		t.Fatalf("unmatched utterance classified %q, want spelling", got.Intent)
	}
}

func TestLoadRuleSetOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	doc := `
rules:
  - intent: skip
    patterns:
      - '\bsaltar\b'
redirect_message: "custom redirect"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	rs, err := LoadRuleSet(path)
	if err != nil {
		t.Fatalf("LoadRuleSet() error = %v", err)
	}
	if rs.RedirectMessage != "custom redirect" {
		t.Fatalf("RedirectMessage = %q", rs.RedirectMessage)
	}
	c, err := NewClassifier(rs)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	if got := c.Classify("quiero saltar"); got.Intent != Skip {
		t.Fatalf("override rule not applied, got %q", got.Intent)
	}
}

func TestNewClassifierRejectsBadConfig(t *testing.T) {
	if _, err := NewClassifier(RuleSet{Rules: []Rule{{Intent: "dance"}}}); err == nil {
		t.Fatal("unknown intent accepted")
	}
	if _, err := NewClassifier(RuleSet{Rules: []Rule{{Intent: "skip", Patterns: []string{"("}}}}); err == nil {
		t.Fatal("invalid pattern accepted")
	}
}
