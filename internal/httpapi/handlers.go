package httpapi

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/beatrice/internal/session"
	"github.com/antoniostano/beatrice/internal/turn"
)

// maxUploadBytes bounds answer audio and worksheet image uploads.
const maxUploadBytes = 10 << 20

type startSessionRequest struct {
	StudentName string   `json:"student_name"`
	Words       []string `json:"words"`
}

type startSessionResponse struct {
	session.Summary
	TTLMs int64 `json:"ttl_ms"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.StudentName) == "" {
		req.StudentName = "anonymous"
	}

	sess, err := s.deps.Sessions.Start(r.Context(), req.StudentName, req.Words)
	if err != nil {
		if errors.Is(err, session.ErrNoWords) {
			respondError(w, http.StatusBadRequest, "empty_word_list", "at least one word is required")
			return
		}
		respondSessionError(w, err)
		return
	}
	s.deps.Metrics.SessionEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, startSessionResponse{
		Summary: s.deps.Sessions.Summarize(sess),
		TTLMs:   s.cfg.SessionTTL.Milliseconds(),
	})
}

type resumeSessionRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	var req resumeSessionRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	sess, err := s.deps.Sessions.Resume(r.Context(), req.SessionID)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	s.deps.Metrics.SessionEvents.WithLabelValues("resumed").Inc()
	respondJSON(w, http.StatusOK, s.deps.Sessions.Summarize(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	sess, err := s.deps.Sessions.Get(r.Context(), id)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Sessions.Summarize(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	student := strings.TrimSpace(r.URL.Query().Get("student"))
	if student == "" {
		respondError(w, http.StatusBadRequest, "missing_student", "query parameter student is required")
		return
	}
	all, err := s.deps.Sessions.ListByStudent(r.Context(), student)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	summaries := make([]session.Summary, 0, len(all))
	for _, sess := range all {
		summaries = append(summaries, s.deps.Sessions.Summarize(sess))
	}
	respondJSON(w, http.StatusOK, map[string]any{"sessions": summaries})
}

type askRequest struct {
	SessionID string `json:"session_id"`
}

type askResponse struct {
	SessionID   string `json:"session_id"`
	Word        string `json:"word"`
	Prompt      string `json:"prompt"`
	Round       int    `json:"round"`
	Remaining   int    `json:"remaining"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	AudioFormat string `json:"audio_format,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.SessionID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	sess, err := s.deps.Sessions.Get(r.Context(), req.SessionID)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	if sess.Completed {
		respondSessionError(w, session.ErrCompleted)
		return
	}

	prompt := ""
	if _, ok := sess.CurrentWord(); !ok {
		// Queue drained with misses: roll straight into review.
		sess, err = s.deps.Sessions.StartReviewRound(r.Context(), req.SessionID)
		if err != nil {
			respondSessionError(w, err)
			return
		}
		s.deps.Metrics.SessionEvents.WithLabelValues("review_round").Inc()
		prompt = "Let's review the words you missed. "
	}
	word, _ := sess.CurrentWord()
	prompt += turn.PromptForWord(word, sess.Round)

	resp := askResponse{
		SessionID: sess.ID,
		Word:      word,
		Prompt:    prompt,
		Round:     sess.Round,
		Remaining: sess.Remaining(),
	}
	if audio, err := s.deps.Synthesizer.Synthesize(r.Context(), prompt); err == nil {
		resp.AudioBase64 = base64.StdEncoding.EncodeToString(audio.Data)
		resp.AudioFormat = audio.Format
	} else {
		s.deps.Metrics.ProviderErrors.WithLabelValues("tts", "ask").Inc()
	}
	respondJSON(w, http.StatusOK, resp)
}

type answerResult struct {
	Word       string `json:"word"`
	Outcome    string `json:"outcome"`
	Correct    bool   `json:"correct"`
	Spelled    string `json:"spelled,omitempty"`
	Provenance string `json:"provenance,omitempty"`
}

type answerResponse struct {
	SessionID   string          `json:"session_id"`
	Intent      string          `json:"intent"`
	Reply       string          `json:"reply"`
	Resolved    bool            `json:"resolved"`
	RetriesLeft int             `json:"retries_left"`
	Result      *answerResult   `json:"result,omitempty"`
	Summary     session.Summary `json:"summary"`
}

// handleAnswer grades one utterance. The client sends multipart form data:
// session_id, an optional live transcript, and optional captured audio that
// is transcribed server-side when no transcript came along.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_multipart", err.Error())
		return
	}
	sessionID := strings.TrimSpace(r.FormValue("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "session_id is required")
		return
	}

	transcript := strings.TrimSpace(r.FormValue("transcript"))
	if transcript == "" {
		if file, header, err := r.FormFile("audio"); err == nil {
			defer file.Close()
			audio, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
			if err != nil {
				respondError(w, http.StatusBadRequest, "invalid_audio", err.Error())
				return
			}
			if text, err := s.deps.Transcriber.Transcribe(r.Context(), audio, header.Filename); err == nil {
				transcript = text
			} else {
				s.deps.Metrics.ProviderErrors.WithLabelValues("stt", "answer").Inc()
			}
		}
	}

	ev, err := s.turns.Evaluate(r.Context(), sessionID, transcript)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	sess, err := s.deps.Sessions.Get(r.Context(), sessionID)
	if err != nil {
		respondSessionError(w, err)
		return
	}
	resp := answerResponse{
		SessionID:   sessionID,
		Intent:      string(ev.Intent),
		Reply:       ev.Reply,
		Resolved:    ev.Resolved,
		RetriesLeft: ev.RetriesLeft,
		Summary:     s.deps.Sessions.Summarize(sess),
	}
	if ev.Result != nil {
		resp.Result = &answerResult{
			Word:       ev.Result.Word,
			Outcome:    string(ev.Result.Outcome),
			Correct:    ev.Result.Verdict.Correct,
			Spelled:    ev.Result.Verdict.Spelled,
			Provenance: string(ev.Result.Verdict.Provenance),
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

type wordContextRequest struct {
	Word string `json:"word"`
}

func (s *Server) handleWordContext(w http.ResponseWriter, r *http.Request) {
	var req wordContextRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Word) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "word is required")
		return
	}

	wc, err := s.deps.LLM.WordContext(r.Context(), strings.ToLower(strings.TrimSpace(req.Word)))
	if err != nil {
		// Degrade: the client falls back to "no hint available".
		s.deps.Metrics.ProviderErrors.WithLabelValues("llm", "word_context").Inc()
		respondJSON(w, http.StatusOK, map[string]any{
			"word": req.Word, "definition": "", "sentence": "",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"word": req.Word, "definition": wc.Definition, "sentence": wc.Sentence,
	})
}

type classifyRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	cls := s.deps.Classifier.Classify(req.Text)
	respondJSON(w, http.StatusOK, map[string]any{
		"intent":   string(cls.Intent),
		"redirect": cls.Redirect,
	})
}

func (s *Server) handleExtractWords(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_multipart", err.Error())
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_image", "form file image is required")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_image", err.Error())
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	words, err := s.deps.Vision.ExtractWords(r.Context(), image, contentType)
	if err != nil {
		s.deps.Metrics.ProviderErrors.WithLabelValues("vision", "extract_words").Inc()
		respondError(w, http.StatusBadGateway, "vision_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"words": words})
}

type randomWordsRequest struct {
	Count int `json:"count"`
}

func (s *Server) handleRandomWords(w http.ResponseWriter, r *http.Request) {
	var req randomWordsRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Count <= 0 {
		req.Count = 10
	}

	words, err := s.deps.LLM.RandomWords(r.Context(), req.Count)
	if err != nil {
		s.deps.Metrics.ProviderErrors.WithLabelValues("llm", "random_words").Inc()
		respondError(w, http.StatusBadGateway, "generation_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"words": words})
}

type ttsRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	var req ttsRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Text) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	audio, err := s.deps.Synthesizer.Synthesize(r.Context(), req.Text)
	if err != nil {
		s.deps.Metrics.ProviderErrors.WithLabelValues("tts", "synthesize").Inc()
		respondError(w, http.StatusBadGateway, "tts_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"format":       audio.Format,
		"audio_base64": base64.StdEncoding.EncodeToString(audio.Data),
		"text":         req.Text,
	})
}
