package entities

import (
	"testing"
	"time"
)

func TestConnectionRecordCreation(t *testing.T) {
	record := NewConnectionRecord("conn-1", "127.0.0.1")

	if record.State != ConnectionStateConnecting {
		t.Errorf("Expected state %s, got %s", ConnectionStateConnecting, record.State)
	}
	if record.EndedAt != nil {
		t.Error("Expected EndedAt to be nil")
	}
	if err := record.Validate(); err != nil {
		t.Errorf("Expected valid record, got %v", err)
	}
}

func TestConnectionRecordFinish(t *testing.T) {
	record := NewConnectionRecord("conn-1", "127.0.0.1")
	record.StartedAt = time.Now().Add(-3 * time.Second)

	record.Finish(ConnectionStateClosingError, "BadRequestException")

	if record.State != ConnectionStateClosed {
		t.Errorf("Expected state %s, got %s", ConnectionStateClosed, record.State)
	}
	if record.Outcome != ConnectionStateClosingError {
		t.Errorf("Expected outcome %s, got %s", ConnectionStateClosingError, record.Outcome)
	}
	if record.ErrorKind != "BadRequestException" {
		t.Errorf("Expected error kind BadRequestException, got %s", record.ErrorKind)
	}
	if record.EndedAt == nil {
		t.Fatal("Expected EndedAt to be set")
	}
	if d := record.Duration(); d < 3*time.Second {
		t.Errorf("Expected duration of at least 3s, got %v", d)
	}
}

func TestConnectionRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(r *ConnectionRecord)
		wantErr bool
	}{
		{"valid", func(r *ConnectionRecord) {}, false},
		{"missing id", func(r *ConnectionRecord) { r.ID = "" }, true},
		{"missing start", func(r *ConnectionRecord) { r.StartedAt = time.Time{} }, true},
		{"closed without outcome", func(r *ConnectionRecord) { r.State = ConnectionStateClosed }, true},
		{"closed with outcome", func(r *ConnectionRecord) { r.Finish(ConnectionStateClosingClean, "") }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := NewConnectionRecord("conn-1", "127.0.0.1")
			tt.modify(record)
			if err := record.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConnectionStateTransitions(t *testing.T) {
	tests := []struct {
		from, to ConnectionState
		want     bool
	}{
		{ConnectionStateConnecting, ConnectionStateStreaming, true},
		{ConnectionStateConnecting, ConnectionStateClosingError, true},
		{ConnectionStateStreaming, ConnectionStateClosingClean, true},
		{ConnectionStateStreaming, ConnectionStateClosingError, true},
		{ConnectionStateClosingClean, ConnectionStateClosed, true},
		{ConnectionStateClosingError, ConnectionStateClosed, true},
		{ConnectionStateStreaming, ConnectionStateConnecting, false},
		{ConnectionStateStreaming, ConnectionStateClosed, false},
		{ConnectionStateClosingClean, ConnectionStateClosingError, false},
		{ConnectionStateClosed, ConnectionStateStreaming, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}

	if !ConnectionStateClosingClean.IsClosing() || ConnectionStateClosed.IsClosing() {
		t.Error("IsClosing should hold for the closing states only")
	}
}
