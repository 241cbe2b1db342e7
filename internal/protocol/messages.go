package protocol

import "time"

// AudioFrame represents PCM audio data streamed from the capture device.
type AudioFrame struct {
	SessionID  string `json:"session_id"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

// RecognitionEvent is one recognizer hypothesis broadcast on the bus.
// Interim events for the same utterance may repeat with revised text; a
// final event for an utterance is delivered at most once.
type RecognitionEvent struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	IsFinal    bool      `json:"is_final"`
	Confidence float64   `json:"confidence,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RecognitionError carries a human-readable recognizer failure message.
// The display layer auto-clears it after 10s or on the next good event.
type RecognitionError struct {
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// CaptionLine is one rendered row of the visibility projection.
type CaptionLine struct {
	ID             string  `json:"id"`
	Text           string  `json:"text"`
	TranslatedText string  `json:"translated_text,omitempty"`
	IsFinal        bool    `json:"is_final"`
	Confidence     float64 `json:"confidence,omitempty"`
	AgeMS          int64   `json:"age_ms"`
	Current        bool    `json:"current"`
	Opacity        float64 `json:"opacity"`
}

// CaptionSnapshot is the visible caption projection at one instant.
type CaptionSnapshot struct {
	SessionID string        `json:"session_id,omitempty"`
	Lines     []CaptionLine `json:"lines"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// CaptionTranslation patches a finalized caption with its translation,
// keyed by caption id so late resolutions tolerate eviction.
type CaptionTranslation struct {
	CaptionID string    `json:"caption_id"`
	Text      string    `json:"text"`
	Language  string    `json:"language"`
	Timestamp time.Time `json:"timestamp"`
}

// VolumeLevel reports the sampled input amplitude and its discrete band.
type VolumeLevel struct {
	SessionID string    `json:"session_id,omitempty"`
	Volume    float64   `json:"volume"`
	Level     string    `json:"level"`
	Nudge     bool      `json:"nudge,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionControl starts, stops, or saves a listening session.
type SessionControl struct {
	SessionID string    `json:"session_id"`
	Subject   string    `json:"subject,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionSaved announces a materialized capture session.
type SessionSaved struct {
	SessionID string    `json:"session_id"`
	Subject   string    `json:"subject"`
	Duration  int       `json:"duration_minutes"`
	Lines     int       `json:"lines"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is one stateless assistant exchange. The full session
// context is rebuilt on every call; there is no conversation memory.
type ChatRequest struct {
	RequestID string    `json:"request_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatResponse carries the assistant reply, or the fallback message when
// the generation backend failed.
type ChatResponse struct {
	RequestID string    `json:"request_id"`
	Content   string    `json:"content"`
	Fallback  bool      `json:"fallback,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectAudioFramePrefix     = "audio.frame"
	SubjectCaptionPartial       = "caption.event.partial"
	SubjectCaptionFinal         = "caption.event.final"
	SubjectCaptionSnapshot      = "caption.snapshot"
	SubjectCaptionClear         = "caption.control.clear"
	SubjectCaptionTranslation   = "caption.translation"
	SubjectRecognitionError     = "caption.recognition.error"
	SubjectVolumeLevel          = "volume.level"
	SubjectSessionStart         = "session.control.start"
	SubjectSessionStop          = "session.control.stop"
	SubjectSessionSave          = "session.control.save"
	SubjectSessionSaved         = "session.saved"
	SubjectAssistantChatRequest = "assistant.chat.request"
	SubjectAssistantChatReply   = "assistant.chat.response"
)
