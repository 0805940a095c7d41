package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
)

// GoogleSpeechToText implements Transcriber for Google Cloud
type GoogleSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.Transcriber = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a Google Cloud Speech backend. Credentials
// come from the application default credentials.
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{logger: logger}
}

func (g *GoogleSpeechToText) StartStream(ctx context.Context, config repositories.StreamConfig, audio repositories.AudioStream) (repositories.TranscriptStream, error) {
	// Convert encoding string to Google Speech API enum
	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		return nil, repositories.NewBackendError(repositories.StageStart, "UnsupportedEncoding", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	// Create Google Cloud Speech client
	client, err := speech.NewClient(streamCtx)
	if err != nil {
		cancel()
		return nil, repositories.NewBackendError(repositories.StageStart, grpcErrorKind(err),
			fmt.Errorf("failed to create speech client: %w", err))
	}

	// Create streaming recognize request
	stream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		client.Close()
		cancel()
		return nil, repositories.NewBackendError(repositories.StageStart, grpcErrorKind(err),
			fmt.Errorf("failed to create streaming recognize: %w", err))
	}

	// Send initial configuration; interim results map to partial results
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRateHz),
					LanguageCode:    config.LanguageCode,
				},
				InterimResults: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		cancel()
		return nil, repositories.NewBackendError(repositories.StageStart, grpcErrorKind(err),
			fmt.Errorf("failed to send streaming config: %w", err))
	}

	streamInstance := &GoogleSpeechToTextStream{
		client: client,
		stream: stream,
		cancel: cancel,
		logger: g.logger,
	}
	go streamInstance.pumpAudio(streamCtx, audio)

	return streamInstance, nil
}

type GoogleSpeechToTextStream struct {
	client  *speech.Client
	stream  speechpb.Speech_StreamingRecognizeClient
	cancel  context.CancelFunc
	logger  *zap.Logger
	pending []entities.TranscriptResult

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (g *GoogleSpeechToTextStream) pumpAudio(ctx context.Context, audio repositories.AudioStream) {
	for {
		event, ok := audio.Next(ctx)
		if !ok {
			break
		}
		if len(event.Chunk) == 0 {
			continue
		}
		if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
			StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
				AudioContent: event.Chunk,
			},
		}); err != nil {
			// The matching error surfaces from Recv
			if !g.closed.Load() && !errors.Is(err, io.EOF) {
				g.logger.Warn("Failed to send audio data", zap.Error(err))
			}
			return
		}
	}

	// Close the send stream to signal end of audio
	if err := g.stream.CloseSend(); err != nil && !g.closed.Load() {
		g.logger.Debug("Failed to close send stream", zap.Error(err))
	}
}

func (g *GoogleSpeechToTextStream) Recv() (entities.TranscriptResult, error) {
	for len(g.pending) == 0 {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			return entities.TranscriptResult{}, io.EOF
		}
		if err != nil {
			if g.closed.Load() {
				return entities.TranscriptResult{}, io.EOF
			}
			return entities.TranscriptResult{}, repositories.NewBackendError(repositories.StageStream, grpcErrorKind(err), err)
		}
		if resp.Error != nil {
			err := status.ErrorProto(resp.Error)
			return entities.TranscriptResult{}, repositories.NewBackendError(repositories.StageStream, grpcErrorKind(err), err)
		}

		for _, result := range resp.Results {
			alternatives := make([]entities.Alternative, 0, len(result.Alternatives))
			for _, alt := range result.Alternatives {
				alternatives = append(alternatives, entities.Alternative{Text: alt.Transcript})
			}
			g.pending = append(g.pending, entities.TranscriptResult{
				Alternatives: alternatives,
				IsPartial:    !result.IsFinal,
			})
		}
	}

	result := g.pending[0]
	g.pending = g.pending[1:]
	return result, nil
}

func (g *GoogleSpeechToTextStream) Close() error {
	g.closeOnce.Do(func() {
		g.closed.Store(true)
		g.cancel()
		if g.client != nil {
			g.closeErr = g.client.Close()
		}
	})
	return g.closeErr
}

// grpcErrorKind returns the gRPC status code name, e.g. InvalidArgument
func grpcErrorKind(err error) string {
	if s, ok := status.FromError(err); ok && s.Code() != codes.OK && s.Code() != codes.Unknown {
		return s.Code().String()
	}
	return repositories.UnknownErrorKind
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToUpper(encoding) {
	case "PCM", "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
