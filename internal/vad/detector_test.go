package vad

import (
	"context"
	"errors"
	"testing"
	"time"
)

func loudFrame(samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		// ~ -6 dBFS square wave, well above any sane threshold.
		pcm[2*i] = 0x00
		pcm[2*i+1] = 0x40
	}
	return pcm
}

func silentFrame(samples int) []byte {
	return make([]byte, samples*2)
}

func testConfig() Config {
	return Config{
		SpeechThreshold:   10,
		MinSpeechFrames:   3,
		SilenceHangFrames: 4,
		MaxUtterance:      time.Second,
	}
}

func TestEnergyScale(t *testing.T) {
	if e := Energy(silentFrame(160)); e != 0 {
		t.Fatalf("silent frame energy = %f, want 0", e)
	}
	e := Energy(loudFrame(160))
	if e < 40 || e > 60 {
		t.Fatalf("loud frame energy = %f, want ~50", e)
	}
	if e := Energy(nil); e != 0 {
		t.Fatalf("empty frame energy = %f, want 0", e)
	}
}

func TestDetectorBoundaryAfterSpeechThenSilence(t *testing.T) {
	d := NewDetector(testConfig())
	for i := 0; i < 3; i++ {
		dec, err := d.ProcessFrame(loudFrame(160))
		if err != nil {
			t.Fatal(err)
		}
		if !dec.Speech || dec.Boundary {
			t.Fatalf("speech frame %d: %+v", i, dec)
		}
	}
	for i := 0; i < 3; i++ {
		dec, err := d.ProcessFrame(silentFrame(160))
		if err != nil {
			t.Fatal(err)
		}
		if dec.Boundary {
			t.Fatalf("boundary fired after only %d silent frames", i+1)
		}
	}
	dec, err := d.ProcessFrame(silentFrame(160))
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Boundary {
		t.Fatal("boundary did not fire after silence hang")
	}

	// At most one boundary per capture invocation.
	if _, err := d.ProcessFrame(silentFrame(160)); !errors.Is(err, ErrDetectorSpent) {
		t.Fatalf("second boundary attempt error = %v, want ErrDetectorSpent", err)
	}
}

func TestDetectorSilenceCounterResetsOnSpeech(t *testing.T) {
	d := NewDetector(testConfig())
	for i := 0; i < 3; i++ {
		if _, err := d.ProcessFrame(loudFrame(160)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 3; i++ {
		if _, err := d.ProcessFrame(silentFrame(160)); err != nil {
			t.Fatal(err)
		}
	}
	// The learner pauses between letters: a speech frame resets the hang.
	if _, err := d.ProcessFrame(loudFrame(160)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		dec, err := d.ProcessFrame(silentFrame(160))
		if err != nil {
			t.Fatal(err)
		}
		if dec.Boundary {
			t.Fatalf("boundary fired %d frames after reset", i+1)
		}
	}
	dec, err := d.ProcessFrame(silentFrame(160))
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Boundary {
		t.Fatal("boundary did not fire after full silence hang post-reset")
	}
}

func TestDetectorRejectsShortBlip(t *testing.T) {
	d := NewDetector(testConfig())
	// Two speech frames are below MinSpeechFrames; silence must not fire.
	for i := 0; i < 2; i++ {
		if _, err := d.ProcessFrame(loudFrame(160)); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 20; i++ {
		dec, err := d.ProcessFrame(silentFrame(160))
		if err != nil {
			t.Fatal(err)
		}
		if dec.Boundary {
			t.Fatal("boundary fired on a spurious blip")
		}
	}
}

func TestListenSilenceBoundary(t *testing.T) {
	frames := make(chan Frame, 16)
	for i := 0; i < 3; i++ {
		frames <- Frame{PCM: loudFrame(160)}
	}
	for i := 0; i < 4; i++ {
		frames <- Frame{PCM: silentFrame(160)}
	}

	b, err := Listen(context.Background(), frames, testConfig())
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if b.Reason != ReasonSilence || !b.SpeechObserved {
		t.Fatalf("boundary = %+v, want silence with speech observed", b)
	}
}

func TestListenCeilingAlwaysFires(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUtterance = 30 * time.Millisecond

	// No frames at all: the capture must still terminate.
	b, err := Listen(context.Background(), make(chan Frame), cfg)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if b.Reason != ReasonCeiling {
		t.Fatalf("reason = %q, want ceiling", b.Reason)
	}
	if b.SpeechObserved {
		t.Fatal("no speech was sent, SpeechObserved should be false")
	}
}

func TestListenStreamEnd(t *testing.T) {
	frames := make(chan Frame, 4)
	frames <- Frame{PCM: loudFrame(160)}
	close(frames)

	b, err := Listen(context.Background(), frames, testConfig())
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if b.Reason != ReasonStreamEnd || !b.SpeechObserved {
		t.Fatalf("boundary = %+v, want stream_end with speech observed", b)
	}
}

func TestListenCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Listen(ctx, make(chan Frame), testConfig()); !errors.Is(err, ErrCaptureCanceled) {
		t.Fatalf("error = %v, want ErrCaptureCanceled", err)
	}
}
