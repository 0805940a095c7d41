package usecase

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
)

// TranscriptionService opens backend sessions with the deployment's fixed
// stream configuration.
type TranscriptionService struct {
	transcriber repositories.Transcriber
	config      repositories.StreamConfig
	logger      *zap.Logger
}

// NewTranscriptionService creates a new transcription service
func NewTranscriptionService(
	transcriber repositories.Transcriber,
	config repositories.StreamConfig,
	logger *zap.Logger,
) *TranscriptionService {
	return &TranscriptionService{
		transcriber: transcriber,
		config:      config,
		logger:      logger,
	}
}

// Config returns the stream configuration used for every session
func (s *TranscriptionService) Config() repositories.StreamConfig {
	return s.config
}

// Open starts one backend session that consumes audio. The returned error is
// a *repositories.BackendError when the backend rejected the request.
func (s *TranscriptionService) Open(ctx context.Context, audio repositories.AudioStream) (*TranscriptionSession, error) {
	stream, err := s.transcriber.StartStream(ctx, s.config, audio)
	if err != nil {
		var backendErr *repositories.BackendError
		if !errors.As(err, &backendErr) {
			err = repositories.NewBackendError(repositories.StageStart, "", err)
		}
		return nil, err
	}

	s.logger.Debug("Transcription session opened",
		zap.String("language", s.config.LanguageCode),
		zap.Int("sampleRate", s.config.SampleRateHz),
		zap.String("encoding", s.config.Encoding))

	return &TranscriptionSession{
		stream: stream,
		logger: s.logger,
	}, nil
}

// TranscriptionSession is one backend session owned by a single connection
type TranscriptionSession struct {
	stream  repositories.TranscriptStream
	logger  *zap.Logger
	release sync.Once
}

// Recv returns the next result from the backend
func (s *TranscriptionSession) Recv() (entities.TranscriptResult, error) {
	return s.stream.Recv()
}

// Release closes the backend session. Only the first call has an effect; it
// is a no-op on a nil session. Close errors are logged, not returned.
func (s *TranscriptionSession) Release() {
	if s == nil || s.stream == nil {
		return
	}
	s.release.Do(func() {
		if err := s.stream.Close(); err != nil {
			s.logger.Warn("Failed to release transcription session", zap.Error(err))
		}
	})
}
