package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/beatrice/internal/config"
	"github.com/antoniostano/beatrice/internal/intent"
	"github.com/antoniostano/beatrice/internal/llm"
	"github.com/antoniostano/beatrice/internal/observability"
	"github.com/antoniostano/beatrice/internal/phonics"
	"github.com/antoniostano/beatrice/internal/protocol"
	"github.com/antoniostano/beatrice/internal/session"
	"github.com/antoniostano/beatrice/internal/speech"
	"github.com/antoniostano/beatrice/internal/turn"
)

// Deps wires the server's collaborators.
type Deps struct {
	Sessions    *session.Manager
	Parser      *phonics.Parser
	Classifier  *intent.Classifier
	LLM         llm.Client
	Vision      llm.VisionClient
	Synthesizer speech.Synthesizer
	Transcriber speech.Transcriber
	Metrics     *observability.Metrics
}

type Server struct {
	cfg      config.Config
	deps     Deps
	turns    *turn.Controller
	upgrader websocket.Upgrader
}

func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:  cfg,
		deps: deps,
		turns: turn.New(turn.Deps{
			Sessions:    deps.Sessions,
			Parser:      deps.Parser,
			Classifier:  deps.Classifier,
			Context:     deps.LLM,
			Transcriber: deps.Transcriber,
			Metrics:     deps.Metrics,
		}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin, so another site cannot drive a student's mic
				// session if the tutor is ever exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/session/start", s.handleStartSession)
	r.Post("/v1/session/resume", s.handleResumeSession)
	r.Get("/v1/session/{id}", s.handleGetSession)
	r.Get("/v1/sessions", s.handleListSessions)
	r.Get("/v1/session/ws", s.handleSessionWS)

	r.Post("/v1/turn/ask", s.handleAsk)
	r.Post("/v1/turn/answer", s.handleAnswer)

	r.Post("/v1/word/context", s.handleWordContext)
	r.Post("/v1/intent/classify", s.handleClassify)
	r.Post("/v1/words/extract", s.handleExtractWords)
	r.Post("/v1/words/random", s.handleRandomWords)
	r.Post("/v1/tts", s.handleTTS)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondSessionError maps store errors to API errors.
func respondSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
	case errors.Is(err, session.ErrCompleted):
		respondError(w, http.StatusConflict, "session_completed", err.Error())
	case errors.Is(err, session.ErrNoWords):
		respondError(w, http.StatusConflict, "no_words", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func messageTypeOf(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.ClientAudioChunk:
		return m.Type, true
	case protocol.ClientTranscript:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.PromptAudio:
		return m.Type, true
	case protocol.TurnState:
		return m.Type, true
	case protocol.TurnResult:
		return m.Type, true
	case protocol.SessionDone:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
