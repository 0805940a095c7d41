package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
)

// AWSTranscriber implements Transcriber with Amazon Transcribe Streaming
type AWSTranscriber struct {
	awsConfig aws.Config
	logger    *zap.Logger
}

var _ repositories.Transcriber = (*AWSTranscriber)(nil)

// NewAWSTranscriber loads the default AWS credential chain for region
func NewAWSTranscriber(ctx context.Context, region string, logger *zap.Logger) (*AWSTranscriber, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("AWS Transcribe backend configured", zap.String("region", region))

	return &AWSTranscriber{
		awsConfig: cfg,
		logger:    logger,
	}, nil
}

// StartStream starts a StartStreamTranscription call and pumps audio into it
func (t *AWSTranscriber) StartStream(ctx context.Context, config repositories.StreamConfig, audio repositories.AudioStream) (repositories.TranscriptStream, error) {
	// One client per session so releasing the session tears down everything
	// it owns.
	client := transcribestreaming.NewFromConfig(t.awsConfig)

	streamCtx, cancel := context.WithCancel(ctx)
	output, err := client.StartStreamTranscription(streamCtx, &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(config.LanguageCode),
		MediaSampleRateHertz: aws.Int32(int32(config.SampleRateHz)),
		MediaEncoding:        types.MediaEncoding(config.Encoding),
	})
	if err != nil {
		cancel()
		return nil, repositories.NewBackendError(repositories.StageStart, awsErrorKind(err), err)
	}

	stream := &awsTranscriptStream{
		events: output.GetStream(),
		cancel: cancel,
		logger: t.logger,
	}
	go stream.pumpAudio(streamCtx, audio)

	return stream, nil
}

type awsTranscriptStream struct {
	events  *transcribestreaming.StartStreamTranscriptionEventStream
	cancel  context.CancelFunc
	logger  *zap.Logger
	pending []entities.TranscriptResult

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (s *awsTranscriptStream) pumpAudio(ctx context.Context, audio repositories.AudioStream) {
	sent := 0
	for {
		event, ok := audio.Next(ctx)
		if !ok {
			break
		}
		// An empty audio event ends the upstream stream, so zero-length
		// frames are not forwarded.
		if len(event.Chunk) == 0 {
			continue
		}
		if err := s.events.Send(ctx, &types.AudioStreamMemberAudioEvent{
			Value: types.AudioEvent{AudioChunk: event.Chunk},
		}); err != nil {
			if !s.closed.Load() {
				s.logger.Warn("Failed to send audio event", zap.Int("sent", sent), zap.Error(err))
			}
			return
		}
		sent++
	}

	if err := s.events.Writer.Close(); err != nil && !s.closed.Load() {
		s.logger.Debug("Failed to close audio stream", zap.Error(err))
	}
	s.logger.Debug("Audio stream ended", zap.Int("sent", sent))
}

func (s *awsTranscriptStream) Recv() (entities.TranscriptResult, error) {
	for len(s.pending) == 0 {
		event, ok := <-s.events.Events()
		if !ok {
			if err := s.events.Err(); err != nil && !s.closed.Load() {
				return entities.TranscriptResult{}, repositories.NewBackendError(repositories.StageStream, awsErrorKind(err), err)
			}
			return entities.TranscriptResult{}, io.EOF
		}

		transcriptEvent, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent)
		if !ok || transcriptEvent.Value.Transcript == nil {
			continue
		}
		for _, result := range transcriptEvent.Value.Transcript.Results {
			s.pending = append(s.pending, convertAWSResult(result))
		}
	}

	result := s.pending[0]
	s.pending = s.pending[1:]
	return result, nil
}

func (s *awsTranscriptStream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.closeErr = s.events.Close()
		s.cancel()
	})
	return s.closeErr
}

func convertAWSResult(result types.Result) entities.TranscriptResult {
	alternatives := make([]entities.Alternative, 0, len(result.Alternatives))
	for _, alt := range result.Alternatives {
		alternatives = append(alternatives, entities.Alternative{Text: aws.ToString(alt.Transcript)})
	}
	return entities.TranscriptResult{
		Alternatives: alternatives,
		IsPartial:    result.IsPartial,
	}
}

// awsErrorKind returns the service error code, e.g. BadRequestException
func awsErrorKind(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() != "" {
		return apiErr.ErrorCode()
	}
	if errors.Is(err, context.Canceled) {
		return "Canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "DeadlineExceeded"
	}
	return repositories.UnknownErrorKind
}
