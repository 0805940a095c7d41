package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/entities"
)

// ErrConnectionClosed is returned by Send once the connection is closed
var ErrConnectionClosed = errors.New("connection closed")

// Client is a middleman between the websocket connection and the
// transcription session it owns.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Audio frames handed from the read pump to the audio feed.
	frames chan []byte

	// Closed when the read pump stops.
	readDone chan struct{}

	// Closed when the write pump stops.
	writeDone chan struct{}

	// Closed together with the termination flag.
	terminated    chan struct{}
	closed        atomic.Bool
	terminateOnce sync.Once

	// Set by the read pump before readDone is closed.
	socketErr error

	// Closed once the record of the starting connection is stored.
	initialSaved chan struct{}

	id     string
	record *entities.ConnectionRecord
	logger *zap.Logger

	mu    sync.Mutex
	state entities.ConnectionState

	frameCount   atomic.Int64
	byteCount    atomic.Int64
	messageCount atomic.Int64
}

func newClient(hub *Hub, conn *websocket.Conn, id, remoteAddr string) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, 256),
		frames:       make(chan []byte),
		readDone:     make(chan struct{}),
		writeDone:    make(chan struct{}),
		terminated:   make(chan struct{}),
		initialSaved: make(chan struct{}),
		id:           id,
		record:       entities.NewConnectionRecord(id, remoteAddr),
		logger:       hub.logger.With(zap.String("connectionID", id)),
		state:        entities.ConnectionStateConnecting,
	}
}

// Closed reports whether the termination flag is set
func (c *Client) Closed() bool {
	return c.closed.Load()
}

// MarkClosed sets the termination flag. It never clears.
func (c *Client) MarkClosed() {
	c.terminateOnce.Do(func() {
		c.closed.Store(true)
		close(c.terminated)
	})
}

// Terminated is closed once the termination flag is set
func (c *Client) Terminated() <-chan struct{} {
	return c.terminated
}

// State returns the current lifecycle state
func (c *Client) State() entities.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) transition(next entities.ConnectionState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.CanTransition(next) {
		c.logger.Warn("Invalid connection state transition",
			zap.String("from", string(c.state)),
			zap.String("to", string(next)))
		return false
	}
	c.logger.Debug("Connection state changed",
		zap.String("from", string(c.state)),
		zap.String("to", string(next)))
	c.state = next
	c.record.State = next
	return true
}

// Send queues msg for the write pump. Messages are dropped, not queued, once
// the connection is closed.
func (c *Client) Send(msg entities.OutboundMessage) error {
	if c.Closed() {
		return ErrConnectionClosed
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	select {
	case c.send <- payload:
		c.messageCount.Add(1)
		return nil
	case <-c.writeDone:
		return ErrConnectionClosed
	}
}

// readPump pumps audio frames from the websocket connection to the audio
// feed. Every frame is handed off before readDone is closed.
func (c *Client) readPump() {
	defer close(c.readDone)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Error("WebSocket error", zap.Error(err))
				c.socketErr = err
			} else {
				c.logger.Debug("Client closed connection", zap.Error(err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.frameCount.Add(1)
			c.byteCount.Add(int64(len(message)))
			c.hub.metrics.RecordFrame(len(message))

			select {
			case c.frames <- message:
			case <-c.terminated:
				return
			}
		case websocket.TextMessage:
			c.logger.Debug("Ignoring text frame", zap.Int("size", len(message)))
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages to the websocket connection. When send is closed
// it flushes what is queued, writes a close frame and closes the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.writeDone)
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(c.hub.closeCode(), ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// closeGoingAway asks the peer to close. The peer's close reply ends the read
// pump and with it the connection.
func (c *Client) closeGoingAway() {
	err := c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(writeWait))
	if err != nil {
		c.logger.Debug("Failed to send going away", zap.Error(err))
	}
}
