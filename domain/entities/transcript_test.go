package entities

import (
	"encoding/json"
	"testing"
)

func TestNewTranscriptMessage(t *testing.T) {
	tests := []struct {
		name   string
		result TranscriptResult
		want   string
		ok     bool
	}{
		{
			name: "partial",
			result: TranscriptResult{
				Alternatives: []Alternative{{Text: "hel"}},
				IsPartial:    true,
			},
			want: `{"text":"hel","is_final":false}`,
			ok:   true,
		},
		{
			name: "final uses first alternative",
			result: TranscriptResult{
				Alternatives: []Alternative{{Text: "hello"}, {Text: "yellow"}},
			},
			want: `{"text":"hello","is_final":true}`,
			ok:   true,
		},
		{
			name:   "no alternatives",
			result: TranscriptResult{IsPartial: true},
			ok:     false,
		},
		{
			name:   "empty text",
			result: TranscriptResult{Alternatives: []Alternative{{Text: ""}}},
			ok:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := NewTranscriptMessage(tt.result)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal() = %s, want %s", data, tt.want)
			}
		})
	}
}

func TestNewFailureMessage(t *testing.T) {
	msg := NewFailureMessage("BadRequestException")
	if !msg.IsFailure() {
		t.Fatal("Expected a failure message")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"error":"Transcription service error","errorType":"BadRequestException"}`
	if string(data) != want {
		t.Errorf("Marshal() = %s, want %s", data, want)
	}
}
