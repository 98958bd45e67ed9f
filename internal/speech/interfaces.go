// Package speech holds the synthesis and transcription collaborator
// boundaries plus the multi-tier synthesis failover chain.
package speech

import "context"

// Audio is one synthesized utterance.
type Audio struct {
	Data []byte
	// Format is a MIME type, or FormatClientSynth when the client should
	// synthesize the text with its own local voice.
	Format string
}

const (
	FormatWAV = "audio/wav"
	FormatMP3 = "audio/mpeg"
	// FormatClientSynth marks an empty payload: the service could not
	// synthesize and the client's built-in synthesizer should speak the text.
	FormatClientSynth = "client/synthesis"
)

// Synthesizer converts text to speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Audio, error)
	Name() string
}

// Transcriber converts a captured audio segment to text. Implementations may
// return an empty transcript when nothing intelligible was heard; that is
// not an error.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte, filename string) (string, error)
}
