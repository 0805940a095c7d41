package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/domain/repositories"
	"github.com/satriahrh/transcribe-relay/internal/metrics"
	"github.com/satriahrh/transcribe-relay/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for audio chunks
)

var upgrader = websocket.Upgrader{
	// The relay serves its own page and accepts any origin
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active clients and shuts them down together.
type Hub struct {
	// Registered clients.
	clients map[string]*Client

	// Set once Shutdown starts; no client registers after that.
	closing bool

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// Tracks running clients.
	wg sync.WaitGroup

	// Parent context of every transcription session.
	ctx    context.Context
	cancel context.CancelFunc

	transcription *usecase.TranscriptionService
	records       repositories.ConnectionRepository
	metrics       *metrics.Metrics

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	transcription *usecase.TranscriptionService,
	records repositories.ConnectionRepository,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:       make(map[string]*Client),
		ctx:           ctx,
		cancel:        cancel,
		transcription: transcription,
		records:       records,
		metrics:       m,
		logger:        logger,
	}
}

// ConnectionCount returns the number of live connections
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Closing reports whether the hub stopped accepting connections
func (h *Hub) Closing() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closing
}

func (h *Hub) register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return false
	}
	h.clients[client.id] = client
	h.wg.Add(1)
	h.metrics.ActiveConnections.Inc()
	h.logger.Info("Client registered", zap.String("connectionID", client.id))
	return true
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		h.metrics.ActiveConnections.Dec()
		h.wg.Done()
	}
	h.mu.Unlock()
	h.logger.Info("Client unregistered", zap.String("connectionID", client.id))
}

func (h *Hub) closeCode() int {
	if h.Closing() {
		return websocket.CloseGoingAway
	}
	return websocket.CloseNormalClosure
}

// Shutdown stops accepting connections, asks every live client to go away
// and waits for them to finish. When ctx expires first the remaining
// transcription sessions are canceled and ctx.Err() is returned.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	h.logger.Info("Shutting down hub", zap.Int("connections", len(clients)))
	for _, client := range clients {
		client.closeGoingAway()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		h.logger.Warn("Hub shutdown timed out, canceling sessions", zap.Error(err))
		h.cancel()
		select {
		case <-done:
		case <-time.After(writeWait):
			h.logger.Warn("Connections still open after cancel", zap.Int("connections", h.ConnectionCount()))
		}
	}
	h.cancel()
	return err
}

// HandleWebSocket upgrades the request and serves the connection until it
// ends. It returns once the connection is handed to its own goroutine.
func HandleWebSocket(hub *Hub, c echo.Context) error {
	if hub.Closing() {
		hub.metrics.RejectedUpgrades.Inc()
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "server is shutting down",
		})
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	client := newClient(hub, conn, uuid.New().String(), c.RealIP())
	if !hub.register(client) {
		hub.metrics.RejectedUpgrades.Inc()
		client.closeGoingAway()
		conn.Close()
		return nil
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.serve(hub.ctx)

	return nil
}
