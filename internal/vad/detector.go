// Package vad implements energy-based voice activity detection over PCM16LE
// mono frames. A Detector classifies frames synchronously; Listen wraps one
// capture invocation and guarantees exactly one boundary per call.
package vad

import (
	"context"
	"errors"
	"math"
	"time"
)

// Config holds the tunable detection parameters. The energy threshold and
// frame-count guards were tuned empirically and differ between deployments,
// so they are configuration rather than constants.
type Config struct {
	// SampleRate of the incoming PCM frames in Hz.
	SampleRate int
	// SpeechThreshold is the normalized 0-100 energy above which a frame
	// counts as speech.
	SpeechThreshold float64
	// MinSpeechFrames is the number of speech frames required before a
	// boundary may fire; rejects spurious single blips.
	MinSpeechFrames int
	// SilenceHangFrames is the number of consecutive silent frames after
	// speech that ends the utterance. Tuned to roughly three seconds so the
	// learner can pause between letters.
	SilenceHangFrames int
	// MaxUtterance is the hard ceiling after which a boundary fires
	// regardless of energy state. Guarantees a capture never hangs.
	MaxUtterance time.Duration
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = 16000
	}
	if c.SpeechThreshold <= 0 {
		c.SpeechThreshold = 6
	}
	if c.MinSpeechFrames <= 0 {
		c.MinSpeechFrames = 5
	}
	if c.SilenceHangFrames <= 0 {
		// ~3s of 100ms frames.
		c.SilenceHangFrames = 30
	}
	if c.MaxUtterance <= 0 {
		c.MaxUtterance = 30 * time.Second
	}
	return c
}

// Decision is the per-frame detector output.
type Decision struct {
	Energy   float64
	Speech   bool
	Boundary bool
}

// Detector tracks speech/silence counters across frames of one utterance.
// Not safe for concurrent use; each capture owns its own Detector.
type Detector struct {
	cfg           Config
	speechFrames  int
	silenceFrames int
	fired         bool
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg.withDefaults()}
}

var (
	// ErrCaptureCanceled reports that the audio capture was torn down before
	// a boundary fired (learner ended practice, connection dropped).
	ErrCaptureCanceled = errors.New("audio capture canceled")
	// ErrDetectorSpent reports a ProcessFrame call after the boundary fired.
	ErrDetectorSpent = errors.New("detector already fired its boundary")
)

// ProcessFrame classifies one PCM16LE frame and updates the counters.
// The boundary fires at most once per Detector; Reset re-arms it.
func (d *Detector) ProcessFrame(pcm []byte) (Decision, error) {
	if d.fired {
		return Decision{}, ErrDetectorSpent
	}

	energy := Energy(pcm)
	dec := Decision{Energy: energy, Speech: energy >= d.cfg.SpeechThreshold}

	if dec.Speech {
		d.speechFrames++
		d.silenceFrames = 0
		return dec, nil
	}
	if d.speechFrames > 0 {
		d.silenceFrames++
	}
	if d.speechFrames >= d.cfg.MinSpeechFrames && d.silenceFrames >= d.cfg.SilenceHangFrames {
		d.fired = true
		dec.Boundary = true
	}
	return dec, nil
}

// SpeechObserved reports whether any speech frames were seen so far.
func (d *Detector) SpeechObserved() bool { return d.speechFrames > 0 }

// Reset clears all counters so the detector can serve a fresh capture.
func (d *Detector) Reset() {
	d.speechFrames = 0
	d.silenceFrames = 0
	d.fired = false
}

// Energy computes the RMS energy of a PCM16LE frame normalized to 0-100.
func Energy(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(n))
	return rms / 32768 * 100
}

// BoundaryReason records which guard ended the capture.
type BoundaryReason string

const (
	ReasonSilence   BoundaryReason = "silence"
	ReasonCeiling   BoundaryReason = "ceiling"
	ReasonStreamEnd BoundaryReason = "stream_end"
)

// Boundary is the single utterance-boundary event of one capture.
type Boundary struct {
	Reason         BoundaryReason
	SpeechObserved bool
	Elapsed        time.Duration
}

// Frame is one chunk of captured audio.
type Frame struct {
	PCM        []byte
	SampleRate int
}

// Listen consumes frames until the detector fires, the frame stream ends,
// or the ceiling timeout elapses, and returns exactly one Boundary. On
// context cancelation it returns ErrCaptureCanceled; the caller releases the
// capture resources on every exit path.
func Listen(ctx context.Context, frames <-chan Frame, cfg Config) (Boundary, error) {
	cfg = cfg.withDefaults()
	det := NewDetector(cfg)
	start := time.Now()

	ceiling := time.NewTimer(cfg.MaxUtterance)
	defer ceiling.Stop()

	for {
		select {
		case <-ctx.Done():
			return Boundary{}, ErrCaptureCanceled
		case <-ceiling.C:
			return Boundary{
				Reason:         ReasonCeiling,
				SpeechObserved: det.SpeechObserved(),
				Elapsed:        time.Since(start),
			}, nil
		case f, ok := <-frames:
			if !ok {
				return Boundary{
					Reason:         ReasonStreamEnd,
					SpeechObserved: det.SpeechObserved(),
					Elapsed:        time.Since(start),
				}, nil
			}
			dec, err := det.ProcessFrame(f.PCM)
			if err != nil {
				return Boundary{}, err
			}
			if dec.Boundary {
				return Boundary{
					Reason:         ReasonSilence,
					SpeechObserved: true,
					Elapsed:        time.Since(start),
				}, nil
			}
		}
	}
}
