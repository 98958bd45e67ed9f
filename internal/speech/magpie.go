package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/antoniostano/beatrice/internal/audio"
)

// MagpieConfig configures the primary synthesis provider, a Riva-style
// speech service that returns raw PCM16.
type MagpieConfig struct {
	URL        string
	APIKey     string
	FunctionID string
	Voice      string
	Language   string
	SampleRate int
	Timeout    time.Duration
}

// MagpieSynthesizer calls a Riva-proxy HTTP endpoint and wraps the returned
// PCM in a WAV container for browser playback.
type MagpieSynthesizer struct {
	cfg    MagpieConfig
	client *http.Client
}

var _ Synthesizer = (*MagpieSynthesizer)(nil)

func NewMagpieSynthesizer(cfg MagpieConfig) (*MagpieSynthesizer, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("magpie: URL must not be empty")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 22050
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	return &MagpieSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (m *MagpieSynthesizer) Name() string { return "magpie" }

type magpieRequest struct {
	Text         string `json:"text"`
	Voice        string `json:"voice"`
	LanguageCode string `json:"language_code"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Encoding     string `json:"encoding"`
}

// Synthesize implements Synthesizer.
func (m *MagpieSynthesizer) Synthesize(ctx context.Context, text string) (Audio, error) {
	if strings.TrimSpace(text) == "" {
		return Audio{}, errors.New("magpie: empty text")
	}

	body, err := json.Marshal(magpieRequest{
		Text:         text,
		Voice:        m.cfg.Voice,
		LanguageCode: m.cfg.Language,
		SampleRateHz: m.cfg.SampleRate,
		Encoding:     "LINEAR_PCM",
	})
	if err != nil {
		return Audio{}, fmt.Errorf("magpie: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return Audio{}, fmt.Errorf("magpie: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	}
	if m.cfg.FunctionID != "" {
		req.Header.Set("Function-Id", m.cfg.FunctionID)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return Audio{}, fmt.Errorf("magpie: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Audio{}, fmt.Errorf("magpie: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("magpie: read audio: %w", err)
	}
	if len(pcm) == 0 {
		return Audio{}, errors.New("magpie: empty audio response")
	}

	wav, err := audio.EncodeWAVPCM16LE(pcm, m.cfg.SampleRate)
	if err != nil {
		return Audio{}, fmt.Errorf("magpie: wrap wav: %w", err)
	}
	return Audio{Data: wav, Format: FormatWAV}, nil
}
