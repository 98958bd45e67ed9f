package speech

import (
	"context"
	"errors"
	"testing"
)

func TestFailoverPrefersPrimary(t *testing.T) {
	primary := NewMockSynthesizer("primary")
	secondary := NewMockSynthesizer("secondary")
	chain := NewFailoverChain(primary, secondary, ClientSynth{})

	audio, err := chain.Synthesize(context.Background(), "spell cat")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio.Data) != "spell cat" {
		t.Fatalf("audio = %q", audio.Data)
	}
	if len(secondary.Spoken()) != 0 {
		t.Fatal("secondary called while primary healthy")
	}
}

func TestFailoverAdvancesAndSticks(t *testing.T) {
	primary := NewMockSynthesizer("primary")
	primary.Err = errors.New("unreachable")
	secondary := NewMockSynthesizer("secondary")
	chain := NewFailoverChain(primary, secondary, ClientSynth{})

	if _, err := chain.Synthesize(context.Background(), "one"); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if chain.ActiveTier() != "secondary" {
		t.Fatalf("ActiveTier = %q, want secondary", chain.ActiveTier())
	}

	// Sticky: next call goes straight to the fallback.
	if _, err := chain.Synthesize(context.Background(), "two"); err != nil {
		t.Fatal(err)
	}
	if got := secondary.Spoken(); len(got) != 2 {
		t.Fatalf("secondary calls = %v", got)
	}
}

func TestFailoverRetriesPrimaryAfterFallbackFails(t *testing.T) {
	primary := NewMockSynthesizer("primary")
	primary.Err = errors.New("down")
	secondary := NewMockSynthesizer("secondary")
	chain := NewFailoverChain(primary, secondary)

	if _, err := chain.Synthesize(context.Background(), "one"); err != nil {
		t.Fatal(err)
	}

	// Fallback dies, primary recovers: traffic must move back.
	secondary.Err = errors.New("down too")
	primary.Err = nil
	if _, err := chain.Synthesize(context.Background(), "two"); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if chain.ActiveTier() != "primary" {
		t.Fatalf("ActiveTier = %q, want primary", chain.ActiveTier())
	}
}

func TestFailoverAllTiersDown(t *testing.T) {
	primary := NewMockSynthesizer("primary")
	primary.Err = errors.New("down")
	chain := NewFailoverChain(primary)

	if _, err := chain.Synthesize(context.Background(), "text"); !errors.Is(err, ErrNoSynthesizer) {
		t.Fatalf("error = %v, want ErrNoSynthesizer", err)
	}
}

func TestClientSynthTerminalTier(t *testing.T) {
	primary := NewMockSynthesizer("primary")
	primary.Err = errors.New("down")
	chain := NewFailoverChain(primary, ClientSynth{})

	audio, err := chain.Synthesize(context.Background(), "spell dog")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if audio.Format != FormatClientSynth || len(audio.Data) != 0 {
		t.Fatalf("audio = %+v, want client-synthesis marker", audio)
	}
}
