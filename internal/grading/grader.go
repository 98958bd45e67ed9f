// Package grading compares candidate letter sequences against target words
// and builds the spoken feedback for each verdict.
package grading

import (
	"fmt"
	"strings"

	"github.com/antoniostano/beatrice/internal/phonics"
)

// MaxAttempts is the fixed per-word attempt cap: one initial attempt plus one
// retry. This is a design constant, not a per-session setting.
const MaxAttempts = 2

// Verdict is the outcome of grading a single attempt.
type Verdict struct {
	Correct    bool
	Spelled    string
	Provenance phonics.Provenance
}

// Grade compares a parse result with the target word. An uncertain answer is
// graded incorrect, never left unresolved.
func Grade(res phonics.Result, target string) Verdict {
	target = phonics.NormalizeWord(target)
	spelled := phonics.NormalizeWord(res.Spelled())
	return Verdict{
		Correct:    target != "" && spelled == target,
		Spelled:    spelled,
		Provenance: res.Provenance,
	}
}

// RevealSpelling spells a word out with pauses, the way the pronouncer reads
// a correct answer back ("n ... e ... c ...").
func RevealSpelling(word string) string {
	word = phonics.NormalizeWord(word)
	letters := make([]string, 0, len(word))
	for _, r := range word {
		letters = append(letters, string(r))
	}
	return strings.Join(letters, " ... ")
}

// FeedbackCorrect is spoken after a correct attempt mid-session.
func FeedbackCorrect(word string) string {
	return fmt.Sprintf("Nice! %s is correct. Next word.", word)
}

// FeedbackRetry is spoken after a wrong attempt with retries remaining.
func FeedbackRetry() string {
	return "Not quite. Try again."
}

// FeedbackReveal is spoken when the retries for a word are exhausted.
func FeedbackReveal(word string) string {
	return fmt.Sprintf("Not quite. The correct spelling is %s. ... Next word.", RevealSpelling(word))
}

// FeedbackSkip is spoken when the learner skips a word.
func FeedbackSkip(word string, done bool) string {
	if done {
		return fmt.Sprintf("Skipping %s. You're all done!", word)
	}
	return fmt.Sprintf("Skipping %s. Next word.", word)
}

// FeedbackSessionComplete is spoken once the queue is exhausted.
func FeedbackSessionComplete(total int) string {
	return fmt.Sprintf("Great job! You finished all %d words.", total)
}

// FeedbackFinalReveal closes the session when the last word was missed.
func FeedbackFinalReveal(word string) string {
	return fmt.Sprintf("Not quite. The correct spelling was %s. ... You're done for today!", RevealSpelling(word))
}
