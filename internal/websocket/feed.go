package websocket

import (
	"context"

	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
)

// terminationFlag is the connection's cooperative stop signal
type terminationFlag interface {
	Closed() bool
	MarkClosed()
	Terminated() <-chan struct{}
}

// AudioFeed turns the frames arriving on a connection into the audio sequence
// consumed by the transcription backend. Next must not be called
// concurrently.
type AudioFeed struct {
	frames       <-chan []byte
	clientClosed <-chan struct{}
	flag         terminationFlag
	logger       *zap.Logger

	ended  bool
	events int
}

var _ repositories.AudioStream = (*AudioFeed)(nil)

// NewAudioFeed creates a feed over frames. clientClosed is closed once the
// client side of the socket is gone.
func NewAudioFeed(frames <-chan []byte, clientClosed <-chan struct{}, flag terminationFlag, logger *zap.Logger) *AudioFeed {
	return &AudioFeed{
		frames:       frames,
		clientClosed: clientClosed,
		flag:         flag,
		logger:       logger,
	}
}

// Next waits for the next frame or the close notification, whichever comes
// first. Once it returns false it keeps returning false.
func (f *AudioFeed) Next(ctx context.Context) (entities.AudioEvent, bool) {
	if f.ended {
		return entities.AudioEvent{}, false
	}
	if f.flag.Closed() {
		return f.end("connection terminated")
	}

	select {
	case frame, ok := <-f.frames:
		if !ok || frame == nil {
			return f.end("no frame")
		}
		f.events++
		return entities.AudioEvent{Chunk: frame}, true

	case <-f.clientClosed:
		// The flag is set before the sequence reports its end
		f.flag.MarkClosed()
		return f.end("client closed")

	case <-f.flag.Terminated():
		return f.end("connection terminated")

	case <-ctx.Done():
		// Releasing the session cancels ctx during a normal teardown
		if f.flag.Closed() {
			return f.end("session released")
		}
		f.logger.Warn("Audio feed interrupted", zap.Error(ctx.Err()))
		f.flag.MarkClosed()
		return f.end("interrupted")
	}
}

// Events returns how many audio events the feed has produced
func (f *AudioFeed) Events() int {
	return f.events
}

func (f *AudioFeed) end(reason string) (entities.AudioEvent, bool) {
	f.ended = true
	f.logger.Debug("Audio feed ended",
		zap.String("reason", reason),
		zap.Int("events", f.events))
	return entities.AudioEvent{}, false
}
