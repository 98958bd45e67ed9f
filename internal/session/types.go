package session

import (
	"errors"
	"time"

	"github.com/antoniostano/beatrice/internal/llm"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrVersionConflict = errors.New("session version conflict")
	ErrNoWords         = errors.New("session has no words")
	ErrCompleted       = errors.New("session already completed")
)

// Outcome classifies how the current word was resolved.
type Outcome string

const (
	OutcomeCorrect Outcome = "correct"
	OutcomeWrong   Outcome = "wrong"
	OutcomeSkipped Outcome = "skipped"
)

// Session is the durable state of one spelling practice run. Version is an
// optimistic concurrency token: a Save whose Version does not match the
// stored row fails with ErrVersionConflict.
type Session struct {
	ID           string                     `json:"session_id"`
	StudentName  string                     `json:"student_name"`
	Words        []string                   `json:"words"`
	Index        int                        `json:"index"`
	Attempts     int                        `json:"attempts"`
	ScoreCorrect int                        `json:"score_correct"`
	ScoreTotal   int                        `json:"score_total"`
	WrongWords   []string                   `json:"wrong_words"`
	SkippedWords []string                   `json:"skipped_words"`
	ContextCache map[string]llm.WordContext `json:"context_cache,omitempty"`
	Round        int                        `json:"round"`
	Completed    bool                       `json:"completed"`
	CreatedAt    time.Time                  `json:"created_at"`
	LastActiveAt time.Time                  `json:"last_active_at"`
	Version      int64                      `json:"version"`
}

// CurrentWord returns the word the student is on, or false when the queue
// is exhausted.
func (s *Session) CurrentWord() (string, bool) {
	if s.Index < 0 || s.Index >= len(s.Words) {
		return "", false
	}
	return s.Words[s.Index], true
}

// Remaining reports how many words are left in the queue, including the
// current one.
func (s *Session) Remaining() int {
	if s.Index >= len(s.Words) {
		return 0
	}
	return len(s.Words) - s.Index
}

// ReviewSet is the union of words resolved wrong and words skipped, in
// first-seen order. It seeds the next review round.
func (s *Session) ReviewSet() []string {
	seen := make(map[string]bool, len(s.WrongWords)+len(s.SkippedWords))
	out := make([]string, 0, len(s.WrongWords)+len(s.SkippedWords))
	for _, list := range [][]string{s.WrongWords, s.SkippedWords} {
		for _, w := range list {
			if seen[w] {
				continue
			}
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

func clone(s *Session) *Session {
	c := *s
	c.Words = append([]string(nil), s.Words...)
	c.WrongWords = append([]string(nil), s.WrongWords...)
	c.SkippedWords = append([]string(nil), s.SkippedWords...)
	if s.ContextCache != nil {
		c.ContextCache = make(map[string]llm.WordContext, len(s.ContextCache))
		for k, v := range s.ContextCache {
			c.ContextCache[k] = v
		}
	}
	return &c
}

// Summary is the client-facing view of a session's progress.
type Summary struct {
	SessionID    string    `json:"session_id"`
	StudentName  string    `json:"student_name"`
	CurrentWord  string    `json:"current_word,omitempty"`
	Remaining    int       `json:"remaining"`
	ScoreCorrect int       `json:"score_correct"`
	ScoreTotal   int       `json:"score_total"`
	WrongWords   []string  `json:"wrong_words"`
	Round        int       `json:"round"`
	Completed    bool      `json:"completed"`
	Nudge        string    `json:"nudge,omitempty"`
	LastActiveAt time.Time `json:"last_active_at"`
}
