// Package llm abstracts the generative-model collaborators: letter
// extraction from garbled spelling transcripts, child-friendly word context,
// practice word generation, and word-list extraction from images. All
// implementations are remote services and are treated as unreliable; callers
// degrade rather than fail when a call errors.
package llm

import "context"

// WordContext is a definition plus example sentence for one practice word.
type WordContext struct {
	Definition string `json:"definition"`
	Sentence   string `json:"sentence"`
}

// Client is the text-generation service boundary.
type Client interface {
	// ExtractLetters converts a garbled spelling transcript into the letter
	// sequence the speaker most likely intended.
	ExtractLetters(ctx context.Context, transcript, target string) ([]string, error)
	// WordContext generates a child-friendly definition and example sentence.
	WordContext(ctx context.Context, word string) (WordContext, error)
	// RandomWords generates up to n age-appropriate practice words.
	RandomWords(ctx context.Context, n int) ([]string, error)
}

// VisionClient is the vision-language service boundary: extract a spelling
// word list from a photographed worksheet.
type VisionClient interface {
	ExtractWords(ctx context.Context, image []byte, contentType string) ([]string, error)
}
