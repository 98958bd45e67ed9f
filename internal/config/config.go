package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the spelling tutor service.
type Config struct {
	BindAddr         string
	MetricsNamespace string
	ShutdownTimeout  time.Duration
	AllowAnyOrigin   bool

	DatabaseURL            string
	SessionTTL             time.Duration
	SessionJanitorInterval time.Duration
	MinSessionWords        int
	MaxWords               int

	PromptTimeout time.Duration

	VADSampleRate        int
	VADSpeechThreshold   float64
	VADMinSpeechFrames   int
	VADSilenceHangFrames int
	VADMaxUtterance      time.Duration

	LLMTextBaseURL   string
	LLMTextModel     string
	LLMVisionBaseURL string
	LLMVisionModel   string
	LLMAPIKey        string
	LLMTimeout       time.Duration

	MagpieTTSURL        string
	MagpieTTSAPIKey     string
	MagpieTTSFunctionID string
	MagpieTTSVoice      string
	MagpieTTSLanguage   string
	MagpieTTSSampleRate int

	ElevenLabsAPIKey   string
	ElevenLabsVoiceID  string
	ElevenLabsModelID  string
	ElevenLabsSTTModel string

	IntentRulesPath string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "beatrice"),
		AllowAnyOrigin:   false,
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),

		SessionTTL:             7 * 24 * time.Hour,
		SessionJanitorInterval: time.Hour,
		MinSessionWords:        5,
		MaxWords:               200,
		ShutdownTimeout:        15 * time.Second,
		PromptTimeout:          15 * time.Second,

		VADSampleRate:        16000,
		VADSpeechThreshold:   6,
		VADMinSpeechFrames:   5,
		VADSilenceHangFrames: 30,
		VADMaxUtterance:      30 * time.Second,

		LLMTextBaseURL:   envOrDefault("VLLM_TEXT_BASE", "http://vllm-llama-31-8b:8000/v1"),
		LLMTextModel:     envOrDefault("VLLM_TEXT_MODEL", "nvidia/NVIDIA-Nemotron-3-Nano-30B-A3B-BF16"),
		LLMVisionBaseURL: envOrDefault("VLLM_VL_BASE", "http://vllm-nemotron-vl:5566/v1"),
		LLMVisionModel:   envOrDefault("VLLM_VL_MODEL", "nvidia/NVIDIA-Nemotron-Nano-12B-v2-VL-BF16"),
		LLMAPIKey:        stringsTrimSpace("LLM_API_KEY"),
		LLMTimeout:       60 * time.Second,

		MagpieTTSURL:        envOrDefault("MAGPIE_TTS_URL", "https://grpc.nvcf.nvidia.com:443"),
		MagpieTTSAPIKey:     stringsTrimSpace("MAGPIE_TTS_API_KEY"),
		MagpieTTSFunctionID: envOrDefault("MAGPIE_TTS_FUNCTION_ID", "877104f7-e885-42b9-8de8-f6e4c6303969"),
		MagpieTTSVoice:      envOrDefault("MAGPIE_TTS_VOICE", "Magpie-Multilingual.EN-US.Sofia"),
		MagpieTTSLanguage:   envOrDefault("MAGPIE_TTS_LANGUAGE", "en-US"),
		MagpieTTSSampleRate: 22050,

		ElevenLabsAPIKey:   stringsTrimSpace("ELEVENLABS_API_KEY"),
		ElevenLabsVoiceID:  envOrDefault("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		ElevenLabsModelID:  envOrDefault("ELEVENLABS_MODEL_ID", "eleven_flash_v2_5"),
		ElevenLabsSTTModel: envOrDefault("ELEVENLABS_STT_MODEL_ID", "scribe_v2"),

		IntentRulesPath: stringsTrimSpace("INTENT_RULES_PATH"),
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL, err = durationFromEnv("APP_SESSION_TTL", cfg.SessionTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionJanitorInterval, err = durationFromEnv("APP_SESSION_JANITOR_INTERVAL", cfg.SessionJanitorInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.PromptTimeout, err = durationFromEnv("APP_PROMPT_TIMEOUT", cfg.PromptTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTimeout, err = durationFromEnv("LLM_TIMEOUT", cfg.LLMTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.VADMaxUtterance, err = durationFromEnv("VAD_MAX_UTTERANCE", cfg.VADMaxUtterance)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.MinSessionWords, err = intFromEnv("APP_MIN_SESSION_WORDS", cfg.MinSessionWords)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxWords, err = intFromEnv("MAX_WORDS", cfg.MaxWords)
	if err != nil {
		return Config{}, err
	}
	cfg.VADSampleRate, err = intFromEnv("VAD_SAMPLE_RATE", cfg.VADSampleRate)
	if err != nil {
		return Config{}, err
	}
	cfg.VADSpeechThreshold, err = floatFromEnv("VAD_SPEECH_THRESHOLD", cfg.VADSpeechThreshold)
	if err != nil {
		return Config{}, err
	}
	cfg.VADMinSpeechFrames, err = intFromEnv("VAD_MIN_SPEECH_FRAMES", cfg.VADMinSpeechFrames)
	if err != nil {
		return Config{}, err
	}
	cfg.VADSilenceHangFrames, err = intFromEnv("VAD_SILENCE_HANG_FRAMES", cfg.VADSilenceHangFrames)
	if err != nil {
		return Config{}, err
	}
	cfg.MagpieTTSSampleRate, err = intFromEnv("MAGPIE_TTS_SAMPLE_RATE", cfg.MagpieTTSSampleRate)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionTTL < time.Minute {
		return Config{}, fmt.Errorf("APP_SESSION_TTL must be at least 1m")
	}
	if cfg.MaxWords <= 0 {
		return Config{}, fmt.Errorf("MAX_WORDS must be positive")
	}
	if cfg.MinSessionWords < 0 {
		return Config{}, fmt.Errorf("APP_MIN_SESSION_WORDS must be >= 0")
	}
	if cfg.VADSampleRate <= 0 {
		return Config{}, fmt.Errorf("VAD_SAMPLE_RATE must be positive")
	}
	if cfg.VADSpeechThreshold < 0 || cfg.VADSpeechThreshold > 100 {
		return Config{}, fmt.Errorf("VAD_SPEECH_THRESHOLD must be within [0,100]")
	}
	if cfg.VADMinSpeechFrames <= 0 || cfg.VADSilenceHangFrames <= 0 {
		return Config{}, fmt.Errorf("VAD frame counts must be positive")
	}
	if cfg.VADMaxUtterance < time.Second {
		return Config{}, fmt.Errorf("VAD_MAX_UTTERANCE must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return trimSpace(os.Getenv(key))
}

func trimSpace(v string) string {
	for len(v) > 0 && (v[0] == ' ' || v[0] == '\n' || v[0] == '\t' || v[0] == '\r') {
		v = v[1:]
	}
	for len(v) > 0 {
		c := v[len(v)-1]
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			v = v[:len(v)-1]
			continue
		}
		break
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
