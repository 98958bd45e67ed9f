package speech

import (
	"context"
	"strings"
	"sync"
)

// MockSynthesizer is a local synthesizer used when no speech provider is
// configured and throughout the tests.
type MockSynthesizer struct {
	mu    sync.Mutex
	Err   error
	Calls []string
	name  string
}

var _ Synthesizer = (*MockSynthesizer)(nil)

func NewMockSynthesizer(name string) *MockSynthesizer {
	if name == "" {
		name = "mock"
	}
	return &MockSynthesizer{name: name}
}

func (m *MockSynthesizer) Name() string {
	return m.name
}

func (m *MockSynthesizer) Synthesize(_ context.Context, text string) (Audio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Audio{}, m.Err
	}
	m.Calls = append(m.Calls, text)
	return Audio{Data: []byte(text), Format: "mock_text_bytes"}, nil
}

// Spoken returns a copy of every synthesized text, in order.
func (m *MockSynthesizer) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

// MockTranscriber returns a scripted transcript for any audio.
type MockTranscriber struct {
	Text string
	Err  error
}

var _ Transcriber = (*MockTranscriber)(nil)

func (m *MockTranscriber) Transcribe(_ context.Context, audioData []byte, _ string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if len(audioData) == 0 {
		return "", nil
	}
	return strings.TrimSpace(m.Text), nil
}
