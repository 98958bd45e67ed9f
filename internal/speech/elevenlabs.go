package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	elevenLabsTTSEndpoint = "https://api.elevenlabs.io/v1/text-to-speech/%s"
	elevenLabsSTTEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"
)

// ElevenLabsConfig configures the secondary synthesis tier and the
// transcription client.
type ElevenLabsConfig struct {
	APIKey   string
	VoiceID  string
	ModelID  string
	STTModel string
	Timeout  time.Duration
}

func (c ElevenLabsConfig) withDefaults() ElevenLabsConfig {
	if c.VoiceID == "" {
		c.VoiceID = "21m00Tcm4TlvDq8ikWAM"
	}
	if c.ModelID == "" {
		c.ModelID = "eleven_flash_v2_5"
	}
	if c.STTModel == "" {
		c.STTModel = "scribe_v2"
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}

// ElevenLabsSynthesizer is the secondary synthesis tier.
type ElevenLabsSynthesizer struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

var _ Synthesizer = (*ElevenLabsSynthesizer)(nil)

func NewElevenLabsSynthesizer(cfg ElevenLabsConfig) (*ElevenLabsSynthesizer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("elevenlabs: API key must not be empty")
	}
	cfg = cfg.withDefaults()
	return &ElevenLabsSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (e *ElevenLabsSynthesizer) Name() string { return "elevenlabs" }

// Synthesize implements Synthesizer.
func (e *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text string) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, errors.New("elevenlabs: empty text")
	}

	body, err := json.Marshal(map[string]string{
		"text":     text,
		"model_id": e.cfg.ModelID,
	})
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs: encode request: %w", err)
	}

	url := fmt.Sprintf(elevenLabsTTSEndpoint, e.cfg.VoiceID) + "?output_format=mp3_22050_32"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Audio{}, fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return Audio{Data: data, Format: FormatMP3}, nil
}

// ElevenLabsTranscriber implements Transcriber against the scribe API.
type ElevenLabsTranscriber struct {
	cfg    ElevenLabsConfig
	client *http.Client
}

var _ Transcriber = (*ElevenLabsTranscriber)(nil)

func NewElevenLabsTranscriber(cfg ElevenLabsConfig) (*ElevenLabsTranscriber, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("elevenlabs: API key must not be empty")
	}
	cfg = cfg.withDefaults()
	if cfg.Timeout < 30*time.Second {
		cfg.Timeout = 30 * time.Second
	}
	return &ElevenLabsTranscriber{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Transcribe implements Transcriber.
func (e *ElevenLabsTranscriber) Transcribe(ctx context.Context, audioData []byte, filename string) (string, error) {
	if len(audioData) == 0 {
		return "", nil
	}
	if filename == "" {
		filename = "audio.webm"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: build form: %w", err)
	}
	if _, err := part.Write(audioData); err != nil {
		return "", fmt.Errorf("elevenlabs: write audio: %w", err)
	}
	_ = mw.WriteField("model_id", e.cfg.STTModel)
	_ = mw.WriteField("language_code", "en")
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("elevenlabs: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, elevenLabsSTTEndpoint, &body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs: transcription request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("elevenlabs: transcription status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("elevenlabs: decode transcription: %w", err)
	}
	return strings.TrimSpace(parsed.Text), nil
}
