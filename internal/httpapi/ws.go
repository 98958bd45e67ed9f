package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/beatrice/internal/audio"
	"github.com/antoniostano/beatrice/internal/protocol"
	"github.com/antoniostano/beatrice/internal/session"
	"github.com/antoniostano/beatrice/internal/speech"
	"github.com/antoniostano/beatrice/internal/turn"
	"github.com/antoniostano/beatrice/internal/vad"
)

// errStopRequested marks a deliberate client disengage from hands-free
// mode, as opposed to a capture failure.
var errStopRequested = errors.New("client requested stop")

// handleSessionWS runs hands-free mode: the client streams microphone PCM
// and live transcripts, the server endpoints utterances and drives the turn
// state machine, streaming prompts and results back.
func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	sess, err := s.deps.Sessions.Get(r.Context(), sessionID)
	if err != nil {
		respondSessionError(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.deps.Metrics.SessionEvents.WithLabelValues("ws_connected").Inc()
	s.deps.Metrics.ActiveSessions.Inc()
	defer s.deps.Metrics.ActiveSessions.Dec()
	slog.Info("hands-free session connected", "session_id", sessionID, "student", sess.StudentName)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		s.runConversation(ctx, sess, inbound, outbound)
		// The conversation is over; unblock the read loop.
		cancel()
	}()

	// The writer drains outbound until runConversation closes it, so the
	// final verdict and feedback still reach the client after the turn
	// loop ends. Write deadlines bound each send; cancellation must not,
	// or buffered messages would be dropped at shutdown.
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writeFailed := false
		for msg := range outbound {
			if writeFailed {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				cancel()
				writeFailed = true
				continue
			}
			if t, ok := messageTypeOf(msg); ok {
				s.deps.Metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
			}
		}
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Keep websocket writes single-threaded; drop if the
				// outbound queue is saturated.
			}
			continue
		}

		if t, ok := messageTypeOf(parsed); ok {
			s.deps.Metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-runDone
	<-writerDone
	s.deps.Metrics.SessionEvents.WithLabelValues("ws_disconnected").Inc()
	slog.Info("hands-free session disconnected", "session_id", sessionID)
}

func (s *Server) runConversation(ctx context.Context, sess *session.Session, inbound <-chan any, outbound chan<- any) {
	defer close(outbound)

	listener := &wsListener{
		inbound: inbound,
		vadCfg: vad.Config{
			SampleRate:        s.cfg.VADSampleRate,
			SpeechThreshold:   s.cfg.VADSpeechThreshold,
			MinSpeechFrames:   s.cfg.VADMinSpeechFrames,
			SilenceHangFrames: s.cfg.VADSilenceHangFrames,
			MaxUtterance:      s.cfg.VADMaxUtterance,
		},
		maxUtterance: s.cfg.VADMaxUtterance,
	}
	speaker := &wsSpeaker{
		sessionID: sess.ID,
		synth:     s.deps.Synthesizer,
		outbound:  outbound,
	}

	ctrl := turn.New(turn.Deps{
		Sessions:      s.deps.Sessions,
		Parser:        s.deps.Parser,
		Classifier:    s.deps.Classifier,
		Context:       s.deps.LLM,
		Transcriber:   s.deps.Transcriber,
		Speaker:       speaker,
		Listener:      listener,
		Metrics:       s.deps.Metrics,
		PromptTimeout: s.cfg.PromptTimeout,
		OnPhase: func(p turn.Phase) {
			send(ctx, outbound, protocol.TurnState{
				Type:      protocol.TypeTurnState,
				SessionID: sess.ID,
				Phase:     string(p),
			})
		},
		OnResult: func(res *turn.WordResult) {
			send(ctx, outbound, protocol.TurnResult{
				Type:         protocol.TypeTurnResult,
				SessionID:    sess.ID,
				Word:         res.Word,
				Outcome:      string(res.Outcome),
				Correct:      res.Verdict.Correct,
				Spelled:      res.Verdict.Spelled,
				Provenance:   string(res.Verdict.Provenance),
				Feedback:     res.Feedback,
				Remaining:    res.Session.Remaining(),
				ScoreCorrect: res.Session.ScoreCorrect,
				ScoreTotal:   res.Session.ScoreTotal,
				Round:        res.Session.Round,
			})
		},
	})

	err := ctrl.RunSession(ctx, sess.ID)
	switch {
	case err == nil:
		final, gerr := s.deps.Sessions.Get(ctx, sess.ID)
		if gerr != nil {
			final = sess
		}
		send(ctx, outbound, protocol.SessionDone{
			Type:         protocol.TypeSessionDone,
			SessionID:    sess.ID,
			ScoreCorrect: final.ScoreCorrect,
			ScoreTotal:   final.ScoreTotal,
			Rounds:       final.Round,
		})
		s.deps.Metrics.SessionEvents.WithLabelValues("completed").Inc()
	case errors.Is(err, errStopRequested), errors.Is(err, context.Canceled):
		// Clean disengage.
	default:
		slog.Error("hands-free turn loop failed", "session_id", sess.ID, "err", err)
		send(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: sess.ID,
			Code:      "turn_failed",
			Source:    "controller",
			Retryable: true,
			Detail:    err.Error(),
		})
	}
}

func send(ctx context.Context, outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	case <-ctx.Done():
	}
}

// wsListener assembles one utterance per Listen call from the inbound
// message stream, using server-side energy VAD to find the boundary. A
// stream_end control commits the utterance regardless of VAD state.
type wsListener struct {
	inbound      <-chan any
	vadCfg       vad.Config
	maxUtterance time.Duration
}

func (l *wsListener) Listen(ctx context.Context) (turn.Utterance, error) {
	det := vad.NewDetector(l.vadCfg)
	var pcm []byte
	var transcript string

	ceiling := time.NewTimer(l.maxUtterance)
	defer ceiling.Stop()

	for {
		select {
		case <-ctx.Done():
			return turn.Utterance{}, ctx.Err()
		case <-ceiling.C:
			return l.finish(pcm, transcript)
		case msg, ok := <-l.inbound:
			if !ok {
				return turn.Utterance{}, errors.New("client stream closed")
			}
			switch m := msg.(type) {
			case protocol.ClientAudioChunk:
				frame, err := base64.StdEncoding.DecodeString(m.PCM16Base64)
				if err != nil {
					continue
				}
				pcm = append(pcm, frame...)
				dec, err := det.ProcessFrame(frame)
				if err != nil {
					continue
				}
				if dec.Boundary {
					return l.finish(pcm, transcript)
				}
			case protocol.ClientTranscript:
				transcript = m.Text
			case protocol.ClientControl:
				switch m.Action {
				case "stream_end":
					return l.finish(pcm, transcript)
				case "stop":
					return turn.Utterance{}, errStopRequested
				}
			}
		}
	}
}

func (l *wsListener) finish(pcm []byte, transcript string) (turn.Utterance, error) {
	u := turn.Utterance{Transcript: transcript, Filename: "utterance.wav"}
	if len(pcm) > 0 {
		if wav, err := audio.EncodeWAVPCM16LE(pcm, l.vadCfg.SampleRate); err == nil {
			u.Audio = wav
		}
	}
	return u, nil
}

// wsSpeaker synthesizes one line and ships it down the outbound channel.
// When every TTS tier is down the text still goes out with the
// client-synthesis marker so the browser voices it locally.
type wsSpeaker struct {
	sessionID string
	synth     speech.Synthesizer
	outbound  chan<- any
}

func (sp *wsSpeaker) Speak(ctx context.Context, text string) error {
	msg := protocol.PromptAudio{
		Type:      protocol.TypePromptAudio,
		SessionID: sp.sessionID,
		Text:      text,
	}
	if a, err := sp.synth.Synthesize(ctx, text); err == nil {
		msg.Format = a.Format
		if len(a.Data) > 0 {
			msg.AudioBase64 = base64.StdEncoding.EncodeToString(a.Data)
		}
	} else {
		msg.Format = speech.FormatClientSynth
	}

	select {
	case sp.outbound <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
