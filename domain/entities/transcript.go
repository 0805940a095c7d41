package entities

import "encoding/json"

// AudioChunk is a raw audio payload received from the client. Its content is
// never inspected by the relay.
type AudioChunk []byte

// AudioEvent marks an AudioChunk as input to a transcription stream.
type AudioEvent struct {
	Chunk AudioChunk
}

// Alternative is one candidate transcription of a result.
type Alternative struct {
	Text string `json:"text"`
}

// TranscriptResult is a single result produced by the transcription backend.
// Only the first alternative is relayed.
type TranscriptResult struct {
	Alternatives []Alternative `json:"alternatives"`
	IsPartial    bool          `json:"is_partial"`
}

// BestText returns the text of the first alternative, or an empty string.
func (r TranscriptResult) BestText() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Text
}

// ServiceErrorText is the message shown to clients when transcription fails.
const ServiceErrorText = "Transcription service error"

// OutboundMessage is a JSON text frame sent to the client. It is either a
// transcript ({"text", "is_final"}) or a failure ({"error", "errorType"}),
// never both.
type OutboundMessage struct {
	Text      string
	IsFinal   bool
	Error     string
	ErrorType string
}

type transcriptPayload struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

type failurePayload struct {
	Error     string `json:"error"`
	ErrorType string `json:"errorType"`
}

// NewTranscriptMessage builds the message for a result. ok is false when the
// result carries no text to relay.
func NewTranscriptMessage(result TranscriptResult) (msg OutboundMessage, ok bool) {
	text := result.BestText()
	if text == "" {
		return OutboundMessage{}, false
	}
	return OutboundMessage{Text: text, IsFinal: !result.IsPartial}, true
}

// NewFailureMessage builds the failure message for a backend error kind.
func NewFailureMessage(kind string) OutboundMessage {
	return OutboundMessage{Error: ServiceErrorText, ErrorType: kind}
}

// IsFailure reports whether m has the failure shape.
func (m OutboundMessage) IsFailure() bool {
	return m.Error != ""
}

// MarshalJSON encodes exactly one of the two message shapes.
func (m OutboundMessage) MarshalJSON() ([]byte, error) {
	if m.IsFailure() {
		return json.Marshal(failurePayload{Error: m.Error, ErrorType: m.ErrorType})
	}
	return json.Marshal(transcriptPayload{Text: m.Text, IsFinal: m.IsFinal})
}
