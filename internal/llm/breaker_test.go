package llm

import (
	"context"
	"errors"
	"testing"
)

func TestContextBreakerTripsAfterThreeFailures(t *testing.T) {
	mock := &MockClient{ContextErr: errors.New("model down")}
	b := NewContextBreaker(mock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := b.WordContext(ctx, "cat"); err == nil {
			t.Fatalf("call %d: expected error", i+1)
		}
	}
	if mock.ContextCalls != 3 {
		t.Fatalf("ContextCalls = %d, want 3", mock.ContextCalls)
	}

	if _, err := b.WordContext(ctx, "cat"); !errors.Is(err, ErrContextUnavailable) {
		t.Fatalf("error = %v, want ErrContextUnavailable", err)
	}
	if mock.ContextCalls != 3 {
		t.Fatalf("tripped breaker still called upstream, calls = %d", mock.ContextCalls)
	}
}

func TestContextBreakerResetsOnSuccess(t *testing.T) {
	mock := &MockClient{ContextErr: errors.New("flaky")}
	b := NewContextBreaker(mock)
	ctx := context.Background()

	b.WordContext(ctx, "cat")
	b.WordContext(ctx, "cat")

	mock.ContextErr = nil
	if _, err := b.WordContext(ctx, "cat"); err != nil {
		t.Fatalf("WordContext() error = %v", err)
	}

	// The earlier failures no longer count toward the limit.
	mock.ContextErr = errors.New("flaky")
	for i := 0; i < 2; i++ {
		b.WordContext(ctx, "cat")
	}
	mock.ContextErr = nil
	if _, err := b.WordContext(ctx, "cat"); err != nil {
		t.Fatalf("breaker tripped early: %v", err)
	}
}

func TestContextBreakerPassesThroughOtherCalls(t *testing.T) {
	mock := &MockClient{ContextErr: errors.New("down")}
	b := NewContextBreaker(mock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		b.WordContext(ctx, "cat")
	}
	letters, err := b.ExtractLetters(ctx, "see ay tee", "cat")
	if err != nil {
		t.Fatalf("ExtractLetters() error = %v", err)
	}
	if len(letters) == 0 {
		t.Fatal("expected letters from pass-through call")
	}
}
