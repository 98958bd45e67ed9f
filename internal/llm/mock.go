package llm

import (
	"context"
	"strings"
	"sync"
)

// MockClient is a scripted Client and VisionClient used when no model
// endpoint is configured and throughout the tests.
type MockClient struct {
	mu sync.Mutex

	Letters    []string
	LettersErr error
	Context    WordContext
	ContextErr error
	Words      []string
	WordsErr   error

	ExtractCalls int
	ContextCalls int
}

var (
	_ Client       = (*MockClient)(nil)
	_ VisionClient = (*MockClient)(nil)
)

func (m *MockClient) ExtractLetters(_ context.Context, transcript, _ string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ExtractCalls++
	if m.LettersErr != nil {
		return nil, m.LettersErr
	}
	if m.Letters != nil {
		return append([]string(nil), m.Letters...), nil
	}
	// Unscripted default: first rune of each token, the crudest possible
	// extraction, so the mock stays deterministic.
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(transcript)) {
		r := tok[0]
		if r >= 'a' && r <= 'z' {
			out = append(out, string(r))
		}
	}
	return out, nil
}

func (m *MockClient) WordContext(_ context.Context, word string) (WordContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ContextCalls++
	if m.ContextErr != nil {
		return WordContext{}, m.ContextErr
	}
	if m.Context != (WordContext{}) {
		return m.Context, nil
	}
	return WordContext{
		Definition: "a practice word",
		Sentence:   "Please spell " + word + ".",
	}, nil
}

func (m *MockClient) RandomWords(_ context.Context, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WordsErr != nil {
		return nil, m.WordsErr
	}
	if m.Words != nil {
		return append([]string(nil), m.Words...), nil
	}
	defaults := []string{"apple", "banana", "castle", "dragon", "elephant"}
	if n > 0 && n < len(defaults) {
		defaults = defaults[:n]
	}
	return defaults, nil
}

func (m *MockClient) ExtractWords(_ context.Context, _ []byte, _ string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WordsErr != nil {
		return nil, m.WordsErr
	}
	if m.Words != nil {
		return append([]string(nil), m.Words...), nil
	}
	return []string{"necessary", "beautiful"}, nil
}
