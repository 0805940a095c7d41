package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/adapters"
	"github.com/satriahrh/transcribe-relay/adapters/stt"
	"github.com/satriahrh/transcribe-relay/domain/entities"
	"github.com/satriahrh/transcribe-relay/internal/config"
	"github.com/satriahrh/transcribe-relay/internal/metrics"
	"github.com/satriahrh/transcribe-relay/internal/websocket"
	"github.com/satriahrh/transcribe-relay/usecase"
)

func setupTestRoutes(t *testing.T) (*echo.Echo, *adapters.MemoryConnectionRepository) {
	t.Helper()

	staticDir := t.TempDir()
	index := "<html><body>relay test page</body></html>"
	if err := os.WriteFile(filepath.Join(staticDir, "index.html"), []byte(index), 0o644); err != nil {
		t.Fatalf("failed to write index.html: %v", err)
	}

	cfg := config.Default()
	cfg.StaticDir = staticDir

	logger := zap.NewNop()
	service := usecase.NewTranscriptionService(stt.NewMockSpeechToText(logger), cfg.StreamConfig(), logger)
	records := adapters.NewMemoryConnectionRepository()
	hub := websocket.NewHub(service, records, metrics.NewMetrics(prometheus.NewRegistry()), logger)

	e := echo.New()
	InitRoutes(e, hub, records, cfg, logger)
	return e, records
}

func serve(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	e, _ := setupTestRoutes(t)

	rec := serve(e, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "ok" || body.Service != "transcribe-relay" || body.Connections != 0 {
		t.Errorf("body = %+v", body)
	}
}

func TestMetrics(t *testing.T) {
	e, _ := setupTestRoutes(t)

	rec := serve(e, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics output should contain the default Go collectors")
	}
}

func TestRootServesIndex(t *testing.T) {
	e, _ := setupTestRoutes(t)

	rec := serve(e, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "relay test page") {
		t.Errorf("body = %q, want the index page", rec.Body.String())
	}
}

func TestWebSocketPathRequiresUpgrade(t *testing.T) {
	e, _ := setupTestRoutes(t)

	rec := serve(e, "/ws")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for a plain GET", rec.Code)
	}
}

func TestListConnections(t *testing.T) {
	e, records := setupTestRoutes(t)

	for _, id := range []string{"a", "b", "c"} {
		record := entities.NewConnectionRecord(id, "127.0.0.1")
		if err := records.Save(context.Background(), record); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	rec := serve(e, "/api/v1/connections?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body ConnectionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 2 || len(body.Connections) != 2 {
		t.Errorf("got %d connections, want 2", body.Count)
	}

	if rec := serve(e, "/api/v1/connections?limit=abc"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid limit status = %d, want 400", rec.Code)
	}
}

func TestGetConnection(t *testing.T) {
	e, records := setupTestRoutes(t)

	record := entities.NewConnectionRecord("conn-1", "10.0.0.1")
	record.Finish(entities.ConnectionStateClosingClean, "")
	if err := records.Save(context.Background(), record); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec := serve(e, "/api/v1/connections/conn-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got entities.ConnectionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.RemoteAddr != "10.0.0.1" || got.Outcome != entities.ConnectionStateClosingClean {
		t.Errorf("record = %+v", got)
	}

	if rec := serve(e, "/api/v1/connections/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("missing record status = %d, want 404", rec.Code)
	}
}
