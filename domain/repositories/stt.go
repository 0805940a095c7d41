package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/satriahrh/transcribe-relay/domain/entities"
)

// StreamConfig is the per-deployment transcription configuration. It is
// passed unchanged for the lifetime of a connection.
type StreamConfig struct {
	LanguageCode string `json:"language_code"`
	SampleRateHz int    `json:"sample_rate_hz"`
	Encoding     string `json:"encoding"`
}

// AudioStream is a lazy, finite, non-restartable sequence of audio events.
type AudioStream interface {
	// Next blocks until the next event is available. ok is false once the
	// sequence has ended; it stays false on every later call.
	Next(ctx context.Context) (event entities.AudioEvent, ok bool)
}

// TranscriptStream is the sequence of results produced by one backend session,
// in backend emission order.
type TranscriptStream interface {
	// Recv returns the next result. It returns io.EOF when the backend ends
	// the stream and a *BackendError when the backend fails.
	Recv() (entities.TranscriptResult, error)
	// Close releases backend resources and unblocks a pending Recv. It is
	// safe to call more than once.
	Close() error
}

// Transcriber abstracts streaming speech recognition backends
type Transcriber interface {
	// StartStream opens a backend session fed from audio. A rejected request
	// is reported as a *BackendError with StageStart.
	StartStream(ctx context.Context, config StreamConfig, audio AudioStream) (TranscriptStream, error)
}

// BackendStage tells where a backend error happened
type BackendStage string

const (
	StageStart  BackendStage = "start"
	StageStream BackendStage = "stream"
)

// UnknownErrorKind is the kind reported for errors that carry no name
const UnknownErrorKind = "UnknownError"

// BackendError is a failure raised by the transcription backend
type BackendError struct {
	Kind  string
	Stage BackendStage
	Err   error
}

// NewBackendError wraps err with a kind label and stage
func NewBackendError(stage BackendStage, kind string, err error) *BackendError {
	if kind == "" {
		kind = UnknownErrorKind
	}
	return &BackendError{Kind: kind, Stage: stage, Err: err}
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("transcription backend %s error (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ErrorKindOf returns the kind label of err, or UnknownErrorKind when err is
// not a BackendError.
func ErrorKindOf(err error) string {
	var backendErr *BackendError
	if errors.As(err, &backendErr) && backendErr.Kind != "" {
		return backendErr.Kind
	}
	return UnknownErrorKind
}
