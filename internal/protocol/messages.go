package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientAudioChunk MessageType = "client_audio_chunk"
	TypeClientTranscript MessageType = "client_transcript"
	TypeClientControl    MessageType = "client_control"
	TypePromptAudio      MessageType = "prompt_audio"
	TypeTurnState        MessageType = "turn_state"
	TypeTurnResult       MessageType = "turn_result"
	TypeSessionDone      MessageType = "session_done"
	TypeErrorEvent       MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientAudioChunk carries one frame of captured microphone PCM.
type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	TSMs        int64       `json:"ts_ms"`
}

// ClientTranscript carries the browser recognizer's live text for the
// current utterance. When present it is preferred over server-side STT.
type ClientTranscript struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	TSMs      int64       `json:"ts_ms"`
}

// ClientControl signals lifecycle actions: "stream_end" closes the current
// utterance, "stop" ends hands-free mode.
type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

// PromptAudio is one spoken line from the tutor. Format
// "client/synthesis" means the payload is empty and the client should
// speak Text with its local voice.
type PromptAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64,omitempty"`
	Text        string      `json:"text"`
}

// TurnState announces a phase change of the turn state machine.
type TurnState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Phase     string      `json:"phase"`
	Word      string      `json:"word,omitempty"`
}

// TurnResult reports one resolved word.
type TurnResult struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"session_id"`
	Word         string      `json:"word"`
	Outcome      string      `json:"outcome"`
	Correct      bool        `json:"correct"`
	Spelled      string      `json:"spelled,omitempty"`
	Provenance   string      `json:"provenance,omitempty"`
	Feedback     string      `json:"feedback"`
	Remaining    int         `json:"remaining"`
	ScoreCorrect int         `json:"score_correct"`
	ScoreTotal   int         `json:"score_total"`
	Round        int         `json:"round"`
}

// SessionDone closes the conversation once every word is resolved.
type SessionDone struct {
	Type         MessageType `json:"type"`
	SessionID    string      `json:"session_id"`
	ScoreCorrect int         `json:"score_correct"`
	ScoreTotal   int         `json:"score_total"`
	Rounds       int         `json:"rounds"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

// ParseClientMessage decodes and validates one inbound frame.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeClientTranscript:
		var msg ClientTranscript
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" {
			return nil, errors.New("invalid client_transcript")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
