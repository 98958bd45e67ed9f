package turn

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antoniostano/beatrice/internal/intent"
	"github.com/antoniostano/beatrice/internal/llm"
	"github.com/antoniostano/beatrice/internal/phonics"
	"github.com/antoniostano/beatrice/internal/session"
)

type scriptedListener struct {
	mu         sync.Mutex
	utterances []Utterance
	err        error
}

func (l *scriptedListener) Listen(_ context.Context) (Utterance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return Utterance{}, l.err
	}
	if len(l.utterances) == 0 {
		return Utterance{}, errors.New("script exhausted")
	}
	u := l.utterances[0]
	l.utterances = l.utterances[1:]
	return u, nil
}

type recordingSpeaker struct {
	mu    sync.Mutex
	lines []string
}

func (s *recordingSpeaker) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, text)
	return nil
}

func (s *recordingSpeaker) spokenContaining(sub string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, l := range s.lines {
		if strings.Contains(l, sub) {
			n++
		}
	}
	return n
}

type fixture struct {
	controller *Controller
	sessions   *session.Manager
	speaker    *recordingSpeaker
	listener   *scriptedListener
	llm        *llm.MockClient
	phases     []Phase
}

func newFixture(t *testing.T, words []string, replies ...string) (*fixture, *session.Session) {
	t.Helper()
	mgr := session.NewManager(session.NewInMemoryStore(), 7*24*time.Hour, 0, 200)
	s, err := mgr.Start(context.Background(), "ada", words)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	classifier, err := intent.NewClassifier(intent.DefaultRuleSet())
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	f := &fixture{
		sessions: mgr,
		speaker:  &recordingSpeaker{},
		listener: &scriptedListener{},
		llm:      &llm.MockClient{},
	}
	for _, r := range replies {
		f.listener.utterances = append(f.listener.utterances, Utterance{Transcript: r})
	}
	f.controller = New(Deps{
		Sessions:   mgr,
		Parser:     phonics.NewParser(nil),
		Classifier: classifier,
		Context:    f.llm,
		Speaker:    f.speaker,
		Listener:   f.listener,
		OnPhase:    func(p Phase) { f.phases = append(f.phases, p) },
	})
	return f, s
}

func TestRunWordCorrectFirstTry(t *testing.T) {
	f, s := newFixture(t, []string{"cat", "dog"}, "see ay tee")

	res, err := f.controller.RunWord(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("RunWord() error = %v", err)
	}
	if res.Outcome != session.OutcomeCorrect || !res.Verdict.Correct {
		t.Fatalf("result = %+v", res)
	}
	if res.Feedback != "Nice! cat is correct. Next word." {
		t.Fatalf("feedback = %q", res.Feedback)
	}
	if res.Session.Index != 1 {
		t.Fatalf("Index = %d, want 1", res.Session.Index)
	}

	want := []Phase{PhasePrompting, PhaseListening, PhaseClassifying, PhaseGrading, PhaseFeedback, PhaseNextWord}
	if len(f.phases) != len(want) {
		t.Fatalf("phases = %v, want %v", f.phases, want)
	}
	for i := range want {
		if f.phases[i] != want[i] {
			t.Fatalf("phases = %v, want %v", f.phases, want)
		}
	}
}

func TestRunWordTwoStrikes(t *testing.T) {
	f, s := newFixture(t, []string{"beautiful", "zebra"},
		"bee ee ay", // wrong
		"bee ay dee", // wrong again
	)

	res, err := f.controller.RunWord(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("RunWord() error = %v", err)
	}
	if res.Outcome != session.OutcomeWrong {
		t.Fatalf("outcome = %q, want wrong", res.Outcome)
	}
	if !strings.Contains(res.Feedback, "The correct spelling is") {
		t.Fatalf("feedback = %q", res.Feedback)
	}
	if n := f.speaker.spokenContaining("Not quite. Try again."); n != 1 {
		t.Fatalf("retry line spoken %d times, want 1", n)
	}
	set := res.Session.ReviewSet()
	if len(set) != 1 || set[0] != "beautiful" {
		t.Fatalf("ReviewSet() = %v", set)
	}
}

func TestHelpDetourDoesNotCountAttempt(t *testing.T) {
	f, s := newFixture(t, []string{"cat", "dog"},
		"what does it mean",
		"bee ay dee", // attempt 1, wrong
		"what does it mean",
		"dee oh gee", // attempt 2, still wrong for "cat"
	)

	res, err := f.controller.RunWord(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("RunWord() error = %v", err)
	}
	if res.Outcome != session.OutcomeWrong {
		t.Fatalf("outcome = %q, want wrong", res.Outcome)
	}
	if f.llm.ContextCalls != 1 {
		t.Fatalf("ContextCalls = %d, want 1 (cached on second ask)", f.llm.ContextCalls)
	}
	if n := f.speaker.spokenContaining("It means:"); n != 2 {
		t.Fatalf("definition spoken %d times, want 2", n)
	}
}

func TestHelpDetourRepromptsBeforeListening(t *testing.T) {
	f, s := newFixture(t, []string{"cat"},
		"what does it mean",
		"see ay tee",
	)

	if _, err := f.controller.RunWord(context.Background(), s.ID); err != nil {
		t.Fatalf("RunWord() error = %v", err)
	}
	want := []Phase{
		PhasePrompting, PhaseListening, PhaseClassifying,
		PhaseHelpResponse, PhasePrompting,
		PhaseListening, PhaseClassifying, PhaseGrading, PhaseFeedback, PhaseDone,
	}
	if len(f.phases) != len(want) {
		t.Fatalf("phases = %v, want %v", f.phases, want)
	}
	for i := range want {
		if f.phases[i] != want[i] {
			t.Fatalf("phases = %v, want %v", f.phases, want)
		}
	}
}

func TestOffTopicRedirectsWithoutReprompt(t *testing.T) {
	f, s := newFixture(t, []string{"cat"},
		"tell me a joke",
		"see ay tee",
	)

	res, err := f.controller.RunWord(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("RunWord() error = %v", err)
	}
	if res.Outcome != session.OutcomeCorrect {
		t.Fatalf("outcome = %q, want correct", res.Outcome)
	}
	if n := f.speaker.spokenContaining("I can only help with spelling practice"); n != 1 {
		t.Fatalf("redirect spoken %d times, want 1", n)
	}
	// Only the initial prompt announces the word.
	if n := f.speaker.spokenContaining("Your word is cat"); n != 1 {
		t.Fatalf("word announced %d times, want 1", n)
	}
}

func TestRepeatAnnouncesWordAgain(t *testing.T) {
	f, s := newFixture(t, []string{"cat"},
		"say it again",
		"see ay tee",
	)

	if _, err := f.controller.RunWord(context.Background(), s.ID); err != nil {
		t.Fatalf("RunWord() error = %v", err)
	}
	if n := f.speaker.spokenContaining("Your word is cat"); n != 2 {
		t.Fatalf("word announced %d times, want 2", n)
	}
}

func TestSkipResolvesWord(t *testing.T) {
	f, s := newFixture(t, []string{"cat", "dog"}, "skip this one")

	res, err := f.controller.RunWord(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("RunWord() error = %v", err)
	}
	if res.Outcome != session.OutcomeSkipped {
		t.Fatalf("outcome = %q, want skipped", res.Outcome)
	}
	if len(res.Session.SkippedWords) != 1 || res.Session.SkippedWords[0] != "cat" {
		t.Fatalf("SkippedWords = %v", res.Session.SkippedWords)
	}
	if !strings.Contains(res.Feedback, "Skipping cat") {
		t.Fatalf("feedback = %q", res.Feedback)
	}
}

func TestListenerErrorFatalToTurn(t *testing.T) {
	f, s := newFixture(t, []string{"cat"})
	f.listener.err = errors.New("mic gone")

	if _, err := f.controller.RunWord(context.Background(), s.ID); err == nil {
		t.Fatal("expected capture error")
	}
	got, _ := f.sessions.Get(context.Background(), s.ID)
	if got.Index != 0 || got.ScoreTotal != 0 {
		t.Fatalf("session advanced on capture failure: %+v", got)
	}
}

func TestRunSessionReviewRound(t *testing.T) {
	f, s := newFixture(t, []string{"necessary", "beautiful"},
		"en oh", "en oh", // necessary: two strikes
		"bee", "bee", // beautiful: two strikes
		"necessary",                                            // review: whole-word match
		"bee ee ay you tee eye eff you ell",                    // review: correct
	)

	if err := f.controller.RunSession(context.Background(), s.ID); err != nil {
		t.Fatalf("RunSession() error = %v", err)
	}

	got, _ := f.sessions.Get(context.Background(), s.ID)
	if !got.Completed {
		t.Fatalf("session not completed: %+v", got)
	}
	if got.Round != 2 {
		t.Fatalf("Round = %d, want 2", got.Round)
	}
	if n := f.speaker.spokenContaining("Let's review the words you missed."); n != 1 {
		t.Fatalf("review announcement spoken %d times, want 1", n)
	}
	if n := f.speaker.spokenContaining("Let's try necessary again"); n != 1 {
		t.Fatalf("review prompt spoken %d times, want 1", n)
	}
}

func TestRunWordHonorsCancel(t *testing.T) {
	f, s := newFixture(t, []string{"cat"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.listener.err = ctx.Err()

	if _, err := f.controller.RunWord(ctx, s.ID); !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
}
