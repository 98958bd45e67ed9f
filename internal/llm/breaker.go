package llm

import (
	"context"
	"errors"
	"sync"
)

// ErrContextUnavailable means word-context lookups have been disabled for
// the rest of the process because the model kept failing.
var ErrContextUnavailable = errors.New("word context unavailable")

const contextFailureLimit = 3

// ContextBreaker wraps a Client and stops calling WordContext after a run
// of consecutive failures. Other operations pass through untouched; a
// success resets the count.
type ContextBreaker struct {
	Client

	mu       sync.Mutex
	failures int
}

func NewContextBreaker(c Client) *ContextBreaker {
	return &ContextBreaker{Client: c}
}

func (b *ContextBreaker) WordContext(ctx context.Context, word string) (WordContext, error) {
	b.mu.Lock()
	tripped := b.failures >= contextFailureLimit
	b.mu.Unlock()
	if tripped {
		return WordContext{}, ErrContextUnavailable
	}

	wc, err := b.Client.WordContext(ctx, word)

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		return WordContext{}, err
	}
	b.failures = 0
	return wc, nil
}
