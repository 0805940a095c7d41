package websocket

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
	"github.com/satriahrh/transcribe-relay/usecase"
)

// socketErrorKind labels connections that ended because the socket failed
const socketErrorKind = "WebSocketError"

const recordSaveTimeout = 5 * time.Second

// serve runs the whole life of the connection: it opens a transcription
// session fed by the socket, relays results until either side ends, then
// tears everything down exactly once.
func (c *Client) serve(ctx context.Context) {
	defer c.hub.unregister(c)

	go c.writePump()
	go c.readPump()

	c.logger.Info("Client connected", zap.String("remoteAddr", c.record.RemoteAddr))

	// The store must not hold up the session start
	initial := *c.record
	go func() {
		defer close(c.initialSaved)
		c.saveRecord(&initial)
	}()

	feed := NewAudioFeed(c.frames, c.readDone, c, c.logger)
	session, err := c.hub.transcription.Open(ctx, feed)
	if err != nil {
		c.transition(entities.ConnectionStateClosingError)
		c.reportBackendError(err)
		c.finish(nil, entities.ConnectionStateClosingError, repositories.ErrorKindOf(err))
		return
	}
	c.transition(entities.ConnectionStateStreaming)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)
	relay := NewRelay(c, c.hub.metrics, c.logger)

	g.Go(func() error {
		defer cancel()
		return relay.Run(gctx, session)
	})

	// Client close releases the backend session so a blocked Recv returns.
	// Any other ending leaves the release to finish, after the client has
	// been told about a backend failure.
	g.Go(func() error {
		select {
		case <-c.readDone:
			c.MarkClosed()
			session.Release()
		case <-gctx.Done():
		}
		return nil
	})

	outcome := entities.ConnectionStateClosingClean
	errorKind := ""
	if err := g.Wait(); err != nil {
		outcome = entities.ConnectionStateClosingError
		errorKind = repositories.ErrorKindOf(err)
		c.transition(outcome)
		c.reportBackendError(err)
	} else {
		select {
		case <-c.readDone:
			if c.socketErr != nil {
				outcome = entities.ConnectionStateClosingError
				errorKind = socketErrorKind
			}
		default:
		}
		c.transition(outcome)
	}

	c.logger.Info("Transcription finished",
		zap.String("outcome", string(outcome)),
		zap.Int("events", feed.Events()),
		zap.Int("sent", relay.Sent()))

	c.finish(session, outcome, errorKind)
}

// reportBackendError logs err and tells the client, if it is still there
func (c *Client) reportBackendError(err error) {
	kind := repositories.ErrorKindOf(err)
	stage := repositories.StageStart
	var backendErr *repositories.BackendError
	if errors.As(err, &backendErr) {
		stage = backendErr.Stage
	}

	c.logger.Error("Transcription error",
		zap.String("stage", string(stage)),
		zap.String("errorType", kind),
		zap.Error(err))
	c.hub.metrics.RecordBackendError(string(stage), kind)

	if err := c.Send(entities.NewFailureMessage(kind)); err != nil {
		c.hub.metrics.SendFailures.Inc()
		c.logger.Debug("Error message not delivered", zap.Error(err))
	}
}

// finish sets the termination flag, releases the session, lets the write
// pump flush and close the socket, and stores the connection record.
func (c *Client) finish(session *usecase.TranscriptionSession, outcome entities.ConnectionState, errorKind string) {
	c.MarkClosed()
	session.Release()

	close(c.send)
	<-c.writeDone
	<-c.readDone

	c.transition(entities.ConnectionStateClosed)

	c.record.Frames = c.frameCount.Load()
	c.record.AudioBytes = c.byteCount.Load()
	c.record.Messages = c.messageCount.Load()
	c.record.Finish(outcome, errorKind)

	// The final state must not be overwritten by the initial save
	<-c.initialSaved
	final := *c.record
	c.saveRecord(&final)

	c.hub.metrics.Connections.WithLabelValues(string(outcome)).Inc()
	c.hub.metrics.ConnectionDuration.Observe(c.record.Duration().Seconds())

	c.logger.Info("Client disconnected",
		zap.String("outcome", string(outcome)),
		zap.Int64("frames", c.record.Frames),
		zap.Int64("messages", c.record.Messages),
		zap.Duration("duration", c.record.Duration()))
}

// saveRecord stores a connection record. Failures only get logged.
func (c *Client) saveRecord(record *entities.ConnectionRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), recordSaveTimeout)
	defer cancel()

	if err := c.hub.records.Save(ctx, record); err != nil {
		c.logger.Warn("Failed to save connection record", zap.Error(err))
	}
}
