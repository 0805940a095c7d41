package websocket

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
	"github.com/satriahrh/transcribe-relay/internal/metrics"
)

type fakeSink struct {
	messages []entities.OutboundMessage
	closed   atomic.Bool
	sendErr  error
}

func (s *fakeSink) Send(msg entities.OutboundMessage) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *fakeSink) Closed() bool { return s.closed.Load() }

type scriptedSource struct {
	results []entities.TranscriptResult
	err     error

	// Called before each Recv with the number of results already returned
	beforeRecv func(n int)
	n          int
}

func (s *scriptedSource) Recv() (entities.TranscriptResult, error) {
	if s.beforeRecv != nil {
		s.beforeRecv(s.n)
	}
	if s.n < len(s.results) {
		result := s.results[s.n]
		s.n++
		return result, nil
	}
	if s.err != nil {
		return entities.TranscriptResult{}, s.err
	}
	return entities.TranscriptResult{}, io.EOF
}

func result(text string, partial bool) entities.TranscriptResult {
	return entities.TranscriptResult{
		Alternatives: []entities.Alternative{{Text: text}, {Text: "ignored"}},
		IsPartial:    partial,
	}
}

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func TestRelay_ForwardsInOrder(t *testing.T) {
	sink := &fakeSink{}
	m := newTestMetrics()
	relay := NewRelay(sink, m, zap.NewNop())

	source := &scriptedSource{results: []entities.TranscriptResult{
		result("hel", true),
		result("hello", false),
	}}

	if err := relay.Run(context.Background(), source); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []entities.OutboundMessage{
		{Text: "hel", IsFinal: false},
		{Text: "hello", IsFinal: true},
	}
	if len(sink.messages) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(sink.messages), len(want))
	}
	for i := range want {
		if sink.messages[i] != want[i] {
			t.Errorf("message %d = %+v, want %+v", i, sink.messages[i], want[i])
		}
	}
	if relay.Sent() != 2 {
		t.Errorf("Sent() = %d, want 2", relay.Sent())
	}
	if got := testutil.ToFloat64(m.TranscriptMessages.WithLabelValues("true")); got != 1 {
		t.Errorf("final transcript count = %v, want 1", got)
	}
}

func TestRelay_SkipsEmptyResults(t *testing.T) {
	sink := &fakeSink{}
	relay := NewRelay(sink, newTestMetrics(), zap.NewNop())

	source := &scriptedSource{results: []entities.TranscriptResult{
		{IsPartial: true},
		result("", false),
		result("ok", false),
	}}

	if err := relay.Run(context.Background(), source); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.messages) != 1 || sink.messages[0].Text != "ok" {
		t.Errorf("messages = %+v, want only \"ok\"", sink.messages)
	}
}

func TestRelay_StopsWhenClosed(t *testing.T) {
	sink := &fakeSink{}
	relay := NewRelay(sink, newTestMetrics(), zap.NewNop())

	source := &scriptedSource{
		results: []entities.TranscriptResult{result("one", true), result("two", true)},
		beforeRecv: func(n int) {
			if n == 0 {
				sink.closed.Store(true)
			}
		},
	}

	if err := relay.Run(context.Background(), source); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.messages) != 0 {
		t.Errorf("no message should be sent once the result arrives after close, got %+v", sink.messages)
	}
}

func TestRelay_ReturnsBackendError(t *testing.T) {
	sink := &fakeSink{}
	relay := NewRelay(sink, newTestMetrics(), zap.NewNop())

	backendErr := repositories.NewBackendError(repositories.StageStream, "LimitExceededException", errors.New("too long"))
	source := &scriptedSource{
		results: []entities.TranscriptResult{result("partial", true)},
		err:     backendErr,
	}

	err := relay.Run(context.Background(), source)
	if !errors.Is(err, backendErr) {
		t.Fatalf("Run() error = %v, want %v", err, backendErr)
	}
	if len(sink.messages) != 1 {
		t.Errorf("results before the error should be relayed, got %d", len(sink.messages))
	}
}

func TestRelay_WrapsPlainErrors(t *testing.T) {
	relay := NewRelay(&fakeSink{}, newTestMetrics(), zap.NewNop())

	err := relay.Run(context.Background(), &scriptedSource{err: errors.New("boom")})

	var backendErr *repositories.BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("Run() error = %v, want a BackendError", err)
	}
	if backendErr.Stage != repositories.StageStream {
		t.Errorf("Stage = %q, want %q", backendErr.Stage, repositories.StageStream)
	}
	if backendErr.Kind != repositories.UnknownErrorKind {
		t.Errorf("Kind = %q, want %q", backendErr.Kind, repositories.UnknownErrorKind)
	}
}

func TestRelay_ErrorAfterCloseIsIgnored(t *testing.T) {
	sink := &fakeSink{}
	sink.closed.Store(true)
	relay := NewRelay(sink, newTestMetrics(), zap.NewNop())

	if err := relay.Run(context.Background(), &scriptedSource{err: errors.New("released")}); err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
}

func TestRelay_SendFailureIsSwallowed(t *testing.T) {
	sink := &fakeSink{sendErr: ErrConnectionClosed}
	m := newTestMetrics()
	relay := NewRelay(sink, m, zap.NewNop())

	source := &scriptedSource{results: []entities.TranscriptResult{result("a", true), result("b", false)}}
	if err := relay.Run(context.Background(), source); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := testutil.ToFloat64(m.SendFailures); got != 2 {
		t.Errorf("send failures = %v, want 2", got)
	}
}
