package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/beatrice/internal/llm"
	"github.com/antoniostano/beatrice/internal/phonics"
)

// casRetries bounds the reload-and-retry loop around optimistic saves.
// Conflicts are rare (a student drives one session at a time) so a small
// bound is enough.
const casRetries = 3

// Manager owns session lifecycle on top of a Store: creating word queues,
// recording per-word outcomes, spinning up review rounds and expiring
// stale sessions.
type Manager struct {
	store    Store
	ttl      time.Duration
	minWords int
	maxWords int
}

func NewManager(store Store, ttl time.Duration, minWords, maxWords int) *Manager {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if maxWords <= 0 {
		maxWords = 200
	}
	return &Manager{store: store, ttl: ttl, minWords: minWords, maxWords: maxWords}
}

// Start creates a session from a raw word list. Words are normalized to
// lowercase letters, deduplicated in order, and capped at the configured
// maximum.
func (m *Manager) Start(ctx context.Context, studentName string, words []string) (*Session, error) {
	queue := normalizeWords(words)
	if len(queue) == 0 {
		return nil, ErrNoWords
	}
	if len(queue) > m.maxWords {
		queue = queue[:m.maxWords]
	}

	now := time.Now().UTC()
	s := &Session{
		ID:           uuid.NewString(),
		StudentName:  studentName,
		Words:        queue,
		Round:        1,
		ContextCache: make(map[string]llm.WordContext),
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := m.store.Create(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Resume fetches an existing session and refreshes its activity clock so
// the TTL janitor leaves it alone.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, error) {
	return m.update(ctx, id, func(s *Session) error {
		return nil
	})
}

func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	return m.store.Get(ctx, id)
}

func (m *Manager) ListByStudent(ctx context.Context, studentName string) ([]*Session, error) {
	return m.store.ListByStudent(ctx, studentName)
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// BumpAttempt records one failed try on the current word so a resumed
// session does not grant extra retries.
func (m *Manager) BumpAttempt(ctx context.Context, id string) (*Session, error) {
	return m.update(ctx, id, func(s *Session) error {
		if s.Completed {
			return ErrCompleted
		}
		s.Attempts++
		return nil
	})
}

// RecordOutcome resolves the current word and advances the queue. A wrong
// or skipped word joins the review set; in a review round a correct word
// leaves it. The session completes when the queue is exhausted and nothing
// is left to review.
func (m *Manager) RecordOutcome(ctx context.Context, id string, outcome Outcome) (*Session, error) {
	return m.update(ctx, id, func(s *Session) error {
		if s.Completed {
			return ErrCompleted
		}
		word, ok := s.CurrentWord()
		if !ok {
			return ErrNoWords
		}

		s.ScoreTotal++
		switch outcome {
		case OutcomeCorrect:
			s.ScoreCorrect++
			if s.Round > 1 {
				s.WrongWords = remove(s.WrongWords, word)
				s.SkippedWords = remove(s.SkippedWords, word)
			}
		case OutcomeWrong:
			s.WrongWords = appendUnique(s.WrongWords, word)
		case OutcomeSkipped:
			s.SkippedWords = appendUnique(s.SkippedWords, word)
		default:
			return fmt.Errorf("unknown outcome %q", outcome)
		}

		s.Index++
		s.Attempts = 0
		if s.Index >= len(s.Words) && len(s.ReviewSet()) == 0 {
			s.Completed = true
		}
		return nil
	})
}

// StartReviewRound replaces the queue with the current review set. It
// fails with ErrNoWords when nothing was missed.
func (m *Manager) StartReviewRound(ctx context.Context, id string) (*Session, error) {
	return m.update(ctx, id, func(s *Session) error {
		if s.Completed {
			return ErrCompleted
		}
		set := s.ReviewSet()
		if len(set) == 0 {
			return ErrNoWords
		}
		s.Words = set
		s.Index = 0
		s.Attempts = 0
		s.WrongWords = nil
		s.SkippedWords = nil
		s.Round++
		return nil
	})
}

// CacheWordContext stores a definition/sentence pair so repeat help
// requests for the same word skip the language model.
func (m *Manager) CacheWordContext(ctx context.Context, id, word string, wc llm.WordContext) (*Session, error) {
	return m.update(ctx, id, func(s *Session) error {
		if s.ContextCache == nil {
			s.ContextCache = make(map[string]llm.WordContext, 1)
		}
		s.ContextCache[word] = wc
		return nil
	})
}

// Summarize builds the client-facing progress view, including a nudge when
// the word list is shorter than the configured minimum.
func (m *Manager) Summarize(s *Session) Summary {
	sum := Summary{
		SessionID:    s.ID,
		StudentName:  s.StudentName,
		Remaining:    s.Remaining(),
		ScoreCorrect: s.ScoreCorrect,
		ScoreTotal:   s.ScoreTotal,
		WrongWords:   s.ReviewSet(),
		Round:        s.Round,
		Completed:    s.Completed,
		LastActiveAt: s.LastActiveAt,
	}
	if word, ok := s.CurrentWord(); ok {
		sum.CurrentWord = word
	}
	if m.minWords > 0 && s.Round == 1 && len(s.Words) < m.minWords {
		sum.Nudge = fmt.Sprintf("Add at least %d words for a full practice run.", m.minWords)
	}
	return sum
}

// StartJanitor periodically removes sessions idle past the TTL.
func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-m.ttl)
				if n, err := m.store.DeleteExpired(ctx, cutoff); err != nil {
					slog.Warn("session janitor sweep failed", "err", err)
				} else if n > 0 {
					slog.Info("session janitor removed expired sessions", "count", n)
				}
			}
		}
	}()
}

// update runs fn against a fresh copy of the session and saves it,
// reloading on version conflicts.
func (m *Manager) update(ctx context.Context, id string, fn func(*Session) error) (*Session, error) {
	var lastErr error
	for range casRetries {
		s, err := m.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(s); err != nil {
			return nil, err
		}
		s.LastActiveAt = time.Now().UTC()
		if err := m.store.Save(ctx, s); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return s, nil
	}
	return nil, lastErr
}

func normalizeWords(words []string) []string {
	seen := make(map[string]bool, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		n := phonics.NormalizeWord(w)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func appendUnique(list []string, w string) []string {
	for _, v := range list {
		if v == w {
			return list
		}
	}
	return append(list, w)
}

func remove(list []string, w string) []string {
	out := list[:0]
	for _, v := range list {
		if v != w {
			out = append(out, v)
		}
	}
	return out
}
