// Package turn drives one spelling word at a time through an explicit state
// machine: prompt the word, listen for an utterance, classify it, then help,
// redirect, or grade. Phases run strictly sequentially; every suspension
// point takes the context and stops cleanly on cancel.
package turn

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/antoniostano/beatrice/internal/grading"
	"github.com/antoniostano/beatrice/internal/intent"
	"github.com/antoniostano/beatrice/internal/llm"
	"github.com/antoniostano/beatrice/internal/observability"
	"github.com/antoniostano/beatrice/internal/phonics"
	"github.com/antoniostano/beatrice/internal/session"
	"github.com/antoniostano/beatrice/internal/speech"
)

// Phase is one node of the turn state machine.
type Phase string

const (
	PhasePrompting        Phase = "prompting"
	PhaseListening        Phase = "listening"
	PhaseClassifying      Phase = "classifying"
	PhaseHelpResponse     Phase = "help_response"
	PhaseOffTopicRedirect Phase = "off_topic_redirect"
	PhaseGrading          Phase = "grading"
	PhaseFeedback         Phase = "feedback"
	PhaseNextWord         Phase = "next_word"
	PhaseRetry            Phase = "retry"
	PhaseReview           Phase = "review"
	PhaseDone             Phase = "done"
)

// Utterance is one endpointed student reply. Transcript may come from the
// client's live recognizer; when it is empty the raw audio is sent to the
// server-side transcriber.
type Utterance struct {
	Transcript string
	Audio      []byte
	Filename   string
}

// Listener captures exactly one utterance. A Listen error is fatal to the
// turn: without working capture there is nothing to grade.
type Listener interface {
	Listen(ctx context.Context) (Utterance, error)
}

// Speaker plays one line to the student and returns when playback has been
// handed off. Speak errors degrade (the client still sees the text event);
// they never abort the turn.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Deps wires a Controller. Speaker and Listener are per-connection, so a
// Controller is built per conversation, not per process.
type Deps struct {
	Sessions    *session.Manager
	Parser      *phonics.Parser
	Classifier  *intent.Classifier
	Context     llm.Client
	Transcriber speech.Transcriber
	Speaker     Speaker
	Listener    Listener
	Metrics     *observability.Metrics
	OnPhase     func(Phase)
	OnResult    func(*WordResult)
	// PromptTimeout bounds each Speak call. Zero means the caller's
	// context is the only bound.
	PromptTimeout time.Duration
}

type Controller struct {
	deps Deps

	lastPhase   Phase
	lastPhaseAt time.Time
}

func New(deps Deps) *Controller {
	return &Controller{deps: deps}
}

// WordResult reports how one word was resolved.
type WordResult struct {
	Word     string
	Outcome  session.Outcome
	Verdict  grading.Verdict
	Feedback string
	Session  *session.Session
}

// RunWord runs the state machine for the session's current word until it is
// resolved correct, wrong, or skipped. Help and redirect detours do not
// count attempts.
func (c *Controller) RunWord(ctx context.Context, sessionID string) (*WordResult, error) {
	s, err := c.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Completed {
		return nil, session.ErrCompleted
	}
	word, ok := s.CurrentWord()
	if !ok {
		return nil, session.ErrNoWords
	}

	started := time.Now()
	attempts := s.Attempts

	c.phase(PhasePrompting)
	c.speak(ctx, PromptForWord(word, s.Round))

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		c.phase(PhaseListening)
		listenStart := time.Now()
		utt, err := c.deps.Listener.Listen(ctx)
		if err != nil {
			return nil, fmt.Errorf("capture: %w", err)
		}
		if c.deps.Metrics != nil {
			c.deps.Metrics.ObserveSpeechBoundary(time.Since(listenStart))
		}
		transcript := c.transcribe(ctx, utt)

		c.phase(PhaseClassifying)
		cls := c.deps.Classifier.Classify(transcript)
		if c.deps.Metrics != nil {
			c.deps.Metrics.IntentTotal.WithLabelValues(string(cls.Intent)).Inc()
		}

		switch cls.Intent {
		case intent.Definition, intent.Sentence:
			c.phase(PhaseHelpResponse)
			wc := c.wordContext(ctx, s, word)
			c.speak(ctx, helpLine(cls.Intent, word, wc))
			c.phase(PhasePrompting)
			c.speak(ctx, fmt.Sprintf("Now, please spell %s.", word))
			continue

		case intent.Repeat:
			c.phase(PhaseHelpResponse)
			c.phase(PhasePrompting)
			c.speak(ctx, fmt.Sprintf("Your word is %s.", word))
			continue

		case intent.OffTopic:
			// Redirect and keep listening; no full re-prompt.
			c.phase(PhaseOffTopicRedirect)
			c.speak(ctx, cls.Redirect)
			continue

		case intent.Skip:
			c.phase(PhaseGrading)
			return c.resolve(ctx, s, word, session.OutcomeSkipped, grading.Verdict{}, started)
		}

		c.phase(PhaseGrading)
		res := c.deps.Parser.Parse(ctx, transcript, word)
		verdict := grading.Grade(res, word)
		if c.deps.Metrics != nil {
			c.deps.Metrics.ParseProvenance.WithLabelValues(string(verdict.Provenance)).Inc()
		}

		if verdict.Correct {
			return c.resolve(ctx, s, word, session.OutcomeCorrect, verdict, started)
		}

		attempts++
		if attempts < grading.MaxAttempts {
			if _, err := c.deps.Sessions.BumpAttempt(ctx, s.ID); err != nil {
				return nil, err
			}
			c.phase(PhaseFeedback)
			c.speak(ctx, grading.FeedbackRetry())
			c.phase(PhaseRetry)
			continue
		}
		return c.resolve(ctx, s, word, session.OutcomeWrong, verdict, started)
	}
}

// RunSession resolves words until the session completes, spinning up review
// rounds from the missed-word set between queues.
func (c *Controller) RunSession(ctx context.Context, sessionID string) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := c.deps.Sessions.Get(ctx, sessionID)
		if err != nil {
			return err
		}
		if s.Completed {
			c.phase(PhaseDone)
			return nil
		}
		if _, ok := s.CurrentWord(); !ok {
			c.phase(PhaseReview)
			if _, err := c.deps.Sessions.StartReviewRound(ctx, sessionID); err != nil {
				return err
			}
			if c.deps.Metrics != nil {
				c.deps.Metrics.SessionEvents.WithLabelValues("review_round").Inc()
			}
			c.speak(ctx, "Let's review the words you missed.")
			continue
		}
		if _, err := c.RunWord(ctx, sessionID); err != nil {
			return err
		}
	}
}

// Evaluation is the outcome of one utterance submitted out of band, for
// clients that drive the conversation request by request instead of over a
// live stream.
type Evaluation struct {
	Intent      intent.Intent
	Reply       string
	Resolved    bool
	RetriesLeft int
	Result      *WordResult
}

// Evaluate runs a single utterance through the classify/help/grade switch
// without the listen loop. Help and redirect replies leave the word
// unresolved; a wrong attempt under the cap burns a retry.
func (c *Controller) Evaluate(ctx context.Context, sessionID, transcript string) (*Evaluation, error) {
	s, err := c.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Completed {
		return nil, session.ErrCompleted
	}
	word, ok := s.CurrentWord()
	if !ok {
		return nil, session.ErrNoWords
	}

	cls := c.deps.Classifier.Classify(transcript)
	if c.deps.Metrics != nil {
		c.deps.Metrics.IntentTotal.WithLabelValues(string(cls.Intent)).Inc()
	}
	ev := &Evaluation{Intent: cls.Intent}

	switch cls.Intent {
	case intent.Definition, intent.Sentence:
		wc := c.wordContext(ctx, s, word)
		ev.Reply = helpLine(cls.Intent, word, wc) + fmt.Sprintf(" Now, please spell %s.", word)
		return ev, nil
	case intent.Repeat:
		ev.Reply = fmt.Sprintf("Your word is %s.", word)
		return ev, nil
	case intent.OffTopic:
		ev.Reply = cls.Redirect
		return ev, nil
	case intent.Skip:
		res, err := c.resolve(ctx, s, word, session.OutcomeSkipped, grading.Verdict{}, time.Now())
		if err != nil {
			return nil, err
		}
		ev.Resolved = true
		ev.Result = res
		ev.Reply = res.Feedback
		return ev, nil
	}

	res := c.deps.Parser.Parse(ctx, transcript, word)
	verdict := grading.Grade(res, word)
	if c.deps.Metrics != nil {
		c.deps.Metrics.ParseProvenance.WithLabelValues(string(verdict.Provenance)).Inc()
	}

	if !verdict.Correct && s.Attempts+1 < grading.MaxAttempts {
		if _, err := c.deps.Sessions.BumpAttempt(ctx, s.ID); err != nil {
			return nil, err
		}
		ev.Reply = grading.FeedbackRetry()
		ev.RetriesLeft = grading.MaxAttempts - s.Attempts - 1
		return ev, nil
	}

	outcome := session.OutcomeWrong
	if verdict.Correct {
		outcome = session.OutcomeCorrect
	}
	result, err := c.resolve(ctx, s, word, outcome, verdict, time.Now())
	if err != nil {
		return nil, err
	}
	ev.Resolved = true
	ev.Result = result
	ev.Reply = result.Feedback
	return ev, nil
}

func (c *Controller) resolve(ctx context.Context, s *session.Session, word string, outcome session.Outcome, verdict grading.Verdict, started time.Time) (*WordResult, error) {
	updated, err := c.deps.Sessions.RecordOutcome(ctx, s.ID, outcome)
	if err != nil {
		return nil, err
	}

	feedback := FeedbackFor(outcome, word, updated)
	c.phase(PhaseFeedback)
	c.speak(ctx, feedback)

	switch {
	case updated.Completed:
		c.phase(PhaseDone)
	case updated.Remaining() == 0:
		c.phase(PhaseReview)
	default:
		c.phase(PhaseNextWord)
	}

	if c.deps.Metrics != nil {
		c.deps.Metrics.TurnOutcomes.WithLabelValues(string(outcome)).Inc()
		c.deps.Metrics.ObserveTurnLatency(time.Since(started))
	}
	result := &WordResult{
		Word:     word,
		Outcome:  outcome,
		Verdict:  verdict,
		Feedback: feedback,
		Session:  updated,
	}
	if c.deps.OnResult != nil {
		c.deps.OnResult(result)
	}
	return result, nil
}

// transcribe resolves the utterance to text, preferring the client's live
// transcript. A transcriber failure degrades to an empty transcript, which
// grades incorrect downstream.
func (c *Controller) transcribe(ctx context.Context, utt Utterance) string {
	if strings.TrimSpace(utt.Transcript) != "" {
		return utt.Transcript
	}
	if len(utt.Audio) == 0 || c.deps.Transcriber == nil {
		return ""
	}
	text, err := c.deps.Transcriber.Transcribe(ctx, utt.Audio, utt.Filename)
	if err != nil {
		if c.deps.Metrics != nil {
			c.deps.Metrics.ProviderErrors.WithLabelValues("stt", "transcribe").Inc()
		}
		return ""
	}
	return text
}

// wordContext serves definition and sentence from the session cache, going
// to the model once per word. Failures degrade to an empty context.
func (c *Controller) wordContext(ctx context.Context, s *session.Session, word string) llm.WordContext {
	if wc, ok := s.ContextCache[word]; ok {
		return wc
	}
	if c.deps.Context == nil {
		return llm.WordContext{}
	}
	wc, err := c.deps.Context.WordContext(ctx, word)
	if err != nil {
		if c.deps.Metrics != nil {
			c.deps.Metrics.ProviderErrors.WithLabelValues("llm", "word_context").Inc()
		}
		return llm.WordContext{}
	}
	if updated, err := c.deps.Sessions.CacheWordContext(ctx, s.ID, word, wc); err == nil {
		s.ContextCache = updated.ContextCache
	}
	return wc
}

func (c *Controller) speak(ctx context.Context, text string) {
	if c.deps.Speaker == nil || text == "" {
		return
	}
	sctx := ctx
	if c.deps.PromptTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, c.deps.PromptTimeout)
		defer cancel()
	}
	if err := c.deps.Speaker.Speak(sctx, text); err != nil && c.deps.Metrics != nil {
		c.deps.Metrics.ProviderErrors.WithLabelValues("tts", "speak").Inc()
	}
}

func (c *Controller) phase(p Phase) {
	now := time.Now()
	if c.lastPhase != "" && c.deps.Metrics != nil {
		c.deps.Metrics.ObservePhase(string(c.lastPhase), now.Sub(c.lastPhaseAt))
	}
	c.lastPhase, c.lastPhaseAt = p, now
	if c.deps.OnPhase != nil {
		c.deps.OnPhase(p)
	}
}

// PromptForWord builds the word announcement. Review rounds acknowledge the
// word came back.
func PromptForWord(word string, round int) string {
	if round > 1 {
		return fmt.Sprintf("Let's try %s again. Please spell %s.", word, word)
	}
	return fmt.Sprintf("Your word is %s. ... Please spell %s.", word, word)
}

// FeedbackFor picks the spoken feedback line for a resolved word, given the
// post-resolution session state.
func FeedbackFor(outcome session.Outcome, word string, s *session.Session) string {
	switch outcome {
	case session.OutcomeCorrect:
		if s.Completed {
			return fmt.Sprintf("Nice! %s is correct. %s", word, grading.FeedbackSessionComplete(s.ScoreTotal))
		}
		return grading.FeedbackCorrect(word)
	case session.OutcomeSkipped:
		return grading.FeedbackSkip(word, s.Remaining() == 0)
	default:
		if s.Remaining() == 0 {
			return grading.FeedbackFinalReveal(word)
		}
		return grading.FeedbackReveal(word)
	}
}

func helpLine(kind intent.Intent, word string, wc llm.WordContext) string {
	if kind == intent.Sentence {
		if strings.TrimSpace(wc.Sentence) == "" {
			return "Hmm, I can't think of a sentence right now."
		}
		return fmt.Sprintf("Here's a sentence: %s", wc.Sentence)
	}
	if strings.TrimSpace(wc.Definition) == "" {
		return "Hmm, I can't think of the meaning right now."
	}
	return fmt.Sprintf("It means: %s", wc.Definition)
}
