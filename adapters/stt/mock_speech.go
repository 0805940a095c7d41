package stt

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
)

var languageCodePattern = regexp.MustCompile(`^[a-z]{2}-[A-Z]{2}$`)

// MockSpeechToText is a local stand-in for a streaming backend. Every audio
// chunk yields a partial result and the end of audio yields a final one.
type MockSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.Transcriber = (*MockSpeechToText)(nil)

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// StartStream validates config the way a real backend would and starts
// consuming audio.
func (s *MockSpeechToText) StartStream(ctx context.Context, config repositories.StreamConfig, audio repositories.AudioStream) (repositories.TranscriptStream, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRateHz),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.LanguageCode))

	if !languageCodePattern.MatchString(config.LanguageCode) {
		return nil, repositories.NewBackendError(repositories.StageStart, "BadRequestException",
			fmt.Errorf("invalid language code %q", config.LanguageCode))
	}
	if config.SampleRateHz < 8000 || config.SampleRateHz > 48000 {
		return nil, repositories.NewBackendError(repositories.StageStart, "BadRequestException",
			fmt.Errorf("sample rate %d out of range", config.SampleRateHz))
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := &MockSpeechToTextStream{
		results: make(chan entities.TranscriptResult, 16),
		cancel:  cancel,
		done:    streamCtx.Done(),
		logger:  s.logger,
	}
	go stream.consume(streamCtx, audio)

	return stream, nil
}

// MockSpeechToTextStream is a mock implementation of streaming speech recognition
type MockSpeechToTextStream struct {
	results   chan entities.TranscriptResult
	cancel    context.CancelFunc
	done      <-chan struct{}
	logger    *zap.Logger
	closeOnce sync.Once
}

func (m *MockSpeechToTextStream) consume(ctx context.Context, audio repositories.AudioStream) {
	defer close(m.results)

	var chunks, size int
	for {
		event, ok := audio.Next(ctx)
		if !ok {
			break
		}
		chunks++
		size += len(event.Chunk)

		if !m.emit(entities.TranscriptResult{
			Alternatives: []entities.Alternative{{Text: fmt.Sprintf("listening (%d bytes)", size)}},
			IsPartial:    true,
		}) {
			return
		}
	}

	m.logger.Info("Ending mock transcription stream", zap.Int("chunks", chunks), zap.Int("size", size))
	if chunks == 0 {
		return
	}
	m.emit(entities.TranscriptResult{
		Alternatives: []entities.Alternative{{Text: fmt.Sprintf("received %d chunks (%d bytes)", chunks, size)}},
	})
}

func (m *MockSpeechToTextStream) emit(result entities.TranscriptResult) bool {
	select {
	case m.results <- result:
		return true
	case <-m.done:
		return false
	}
}

func (m *MockSpeechToTextStream) Recv() (entities.TranscriptResult, error) {
	select {
	case result, ok := <-m.results:
		if !ok {
			return entities.TranscriptResult{}, io.EOF
		}
		return result, nil
	case <-m.done:
		return entities.TranscriptResult{}, io.EOF
	}
}

func (m *MockSpeechToTextStream) Close() error {
	m.closeOnce.Do(m.cancel)
	return nil
}
