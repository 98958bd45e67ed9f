package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/antoniostano/beatrice/internal/config"
	"github.com/antoniostano/beatrice/internal/httpapi"
	"github.com/antoniostano/beatrice/internal/intent"
	"github.com/antoniostano/beatrice/internal/llm"
	"github.com/antoniostano/beatrice/internal/observability"
	"github.com/antoniostano/beatrice/internal/phonics"
	"github.com/antoniostano/beatrice/internal/session"
	"github.com/antoniostano/beatrice/internal/speech"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := session.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("session store init failed: %v", err)
	}
	defer store.Close()
	if cfg.DatabaseURL == "" {
		log.Printf("session store: in-memory (DATABASE_URL not set)")
	} else {
		log.Printf("session store: postgres")
	}

	sessions := session.NewManager(store, cfg.SessionTTL, cfg.MinSessionWords, cfg.MaxWords)
	sessions.StartJanitor(ctx, cfg.SessionJanitorInterval)

	var model llm.Client
	var vision llm.VisionClient
	if strings.TrimSpace(cfg.LLMTextBaseURL) != "" {
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			TextBaseURL:   cfg.LLMTextBaseURL,
			TextModel:     cfg.LLMTextModel,
			VisionBaseURL: cfg.LLMVisionBaseURL,
			VisionModel:   cfg.LLMVisionModel,
			APIKey:        cfg.LLMAPIKey,
			Timeout:       cfg.LLMTimeout,
			MaxWords:      cfg.MaxWords,
		})
		if err != nil {
			log.Fatalf("llm client init failed: %v", err)
		}
		model = client
		vision = client
		log.Printf("llm: %s (text), %s (vision)", cfg.LLMTextModel, cfg.LLMVisionModel)
	} else {
		mock := &llm.MockClient{}
		model = mock
		vision = mock
		log.Printf("llm: mock (LLM_TEXT_BASE_URL not set)")
	}
	// One breaker guards every context lookup so a dead model stops
	// costing a timeout per word.
	breaker := llm.NewContextBreaker(model)

	rules := intent.DefaultRuleSet()
	if cfg.IntentRulesPath != "" {
		rules, err = intent.LoadRuleSet(cfg.IntentRulesPath)
		if err != nil {
			log.Fatalf("intent rules load failed: %v", err)
		}
		log.Printf("intent rules: %s", cfg.IntentRulesPath)
	}
	classifier, err := intent.NewClassifier(rules)
	if err != nil {
		log.Fatalf("intent classifier init failed: %v", err)
	}

	var tiers []speech.Synthesizer
	if strings.TrimSpace(cfg.MagpieTTSURL) != "" {
		magpie, err := speech.NewMagpieSynthesizer(speech.MagpieConfig{
			URL:        cfg.MagpieTTSURL,
			APIKey:     cfg.MagpieTTSAPIKey,
			FunctionID: cfg.MagpieTTSFunctionID,
			Voice:      cfg.MagpieTTSVoice,
			Language:   cfg.MagpieTTSLanguage,
			SampleRate: cfg.MagpieTTSSampleRate,
		})
		if err != nil {
			log.Fatalf("magpie synthesizer init failed: %v", err)
		}
		tiers = append(tiers, magpie)
	}

	var transcriber speech.Transcriber = &speech.MockTranscriber{}
	if strings.TrimSpace(cfg.ElevenLabsAPIKey) != "" {
		elCfg := speech.ElevenLabsConfig{
			APIKey:   cfg.ElevenLabsAPIKey,
			VoiceID:  cfg.ElevenLabsVoiceID,
			ModelID:  cfg.ElevenLabsModelID,
			STTModel: cfg.ElevenLabsSTTModel,
		}
		synth, err := speech.NewElevenLabsSynthesizer(elCfg)
		if err != nil {
			log.Fatalf("elevenlabs synthesizer init failed: %v", err)
		}
		tiers = append(tiers, synth)
		transcriber, err = speech.NewElevenLabsTranscriber(elCfg)
		if err != nil {
			log.Fatalf("elevenlabs transcriber init failed: %v", err)
		}
	} else {
		log.Printf("stt: none (client transcripts only)")
	}
	tiers = append(tiers, speech.ClientSynth{})
	chain := speech.NewFailoverChain(tiers...)
	names := make([]string, 0, len(tiers))
	for _, tier := range tiers {
		names = append(names, tier.Name())
	}
	log.Printf("tts chain: %s", strings.Join(names, " -> "))

	api := httpapi.New(cfg, httpapi.Deps{
		Sessions:    sessions,
		Parser:      phonics.NewParser(breaker),
		Classifier:  classifier,
		LLM:         breaker,
		Vision:      vision,
		Synthesizer: chain,
		Transcriber: transcriber,
		Metrics:     metrics,
	})

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("server listening on %s", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
			return httpServer.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Printf("shutdown complete")
}
