package websocket

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
	"github.com/satriahrh/transcribe-relay/internal/metrics"
)

// messageSink is the client side the relay writes to
type messageSink interface {
	Send(msg entities.OutboundMessage) error
	Closed() bool
}

// transcriptSource yields backend results in emission order
type transcriptSource interface {
	Recv() (entities.TranscriptResult, error)
}

// Relay forwards transcript results to the client as they arrive
type Relay struct {
	sink    messageSink
	metrics *metrics.Metrics
	logger  *zap.Logger
	sent    int
}

// NewRelay creates a relay writing to sink
func NewRelay(sink messageSink, m *metrics.Metrics, logger *zap.Logger) *Relay {
	return &Relay{
		sink:    sink,
		metrics: m,
		logger:  logger,
	}
}

// Run consumes source until it ends, the connection is closed or ctx is done.
// It returns a *repositories.BackendError when the backend fails mid-stream
// while the client is still connected.
func (r *Relay) Run(ctx context.Context, source transcriptSource) error {
	for {
		if r.sink.Closed() || ctx.Err() != nil {
			return nil
		}

		result, err := source.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				r.logger.Debug("Transcript stream ended", zap.Int("sent", r.sent))
				return nil
			}
			// A release triggered by teardown is not a backend failure
			if r.sink.Closed() || ctx.Err() != nil {
				return nil
			}
			var backendErr *repositories.BackendError
			if !errors.As(err, &backendErr) {
				err = repositories.NewBackendError(repositories.StageStream, "", err)
			}
			return err
		}

		if r.sink.Closed() {
			return nil
		}

		msg, ok := entities.NewTranscriptMessage(result)
		if !ok {
			continue
		}

		if err := r.sink.Send(msg); err != nil {
			r.metrics.SendFailures.Inc()
			r.logger.Debug("Transcript not delivered", zap.Error(err))
			continue
		}
		r.sent++
		r.metrics.RecordTranscript(msg.IsFinal)
	}
}

// Sent returns how many transcript messages were delivered
func (r *Relay) Sent() int {
	return r.sent
}
