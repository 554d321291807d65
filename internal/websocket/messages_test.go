package websocket

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
)

func TestMessageValidator_ValidateMessage(t *testing.T) {
	validator := NewMessageValidator(entities.IsSupportedAudioFilename)

	tests := []struct {
		name    string
		message string
		want    interface{}
		wantErr string
	}{
		{
			name:    "recording start with filename",
			message: `{"type": "recording_start", "filename": "consult.webm"}`,
			want:    &RecordingStartMessage{},
		},
		{
			name:    "recording start without filename",
			message: `{"type": "recording_start"}`,
			want:    &RecordingStartMessage{},
		},
		{
			name:    "unsupported filename",
			message: `{"type": "recording_start", "filename": "notes.txt"}`,
			wantErr: "unsupported audio format: notes.txt",
		},
		{
			name:    "recording end",
			message: `{"type": "recording_end"}`,
			want:    &RecordingEndMessage{},
		},
		{
			name:    "ping",
			message: `{"type": "ping", "data": "hello"}`,
			want:    &PingMessage{},
		},
		{
			name:    "missing type",
			message: `{"filename": "consult.webm"}`,
			wantErr: "type is required",
		},
		{
			name:    "unsupported type",
			message: `{"type": "listening_start"}`,
			wantErr: "unsupported message type",
		},
		{
			name:    "invalid JSON",
			message: `{"type": `,
			wantErr: "invalid JSON format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := validator.ValidateMessage([]byte(tt.message))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("ValidateMessage() error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateMessage() unexpected error = %v", err)
			}
			switch tt.want.(type) {
			case *RecordingStartMessage:
				if _, ok := msg.(*RecordingStartMessage); !ok {
					t.Errorf("Expected *RecordingStartMessage, got %T", msg)
				}
			case *RecordingEndMessage:
				if _, ok := msg.(*RecordingEndMessage); !ok {
					t.Errorf("Expected *RecordingEndMessage, got %T", msg)
				}
			case *PingMessage:
				ping, ok := msg.(*PingMessage)
				if !ok {
					t.Fatalf("Expected *PingMessage, got %T", msg)
				}
				if ping.Data != "hello" {
					t.Errorf("Expected data hello, got %s", ping.Data)
				}
			}
		})
	}
}

func TestCreateErrorMessage(t *testing.T) {
	msg := CreateErrorMessage("not_recording", "No recording in progress", "details")

	if msg.Type != MessageTypeError {
		t.Errorf("Expected type %s, got %s", MessageTypeError, msg.Type)
	}
	if msg.Code != "not_recording" {
		t.Errorf("Expected code not_recording, got %s", msg.Code)
	}
	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
}

func TestCreateSessionEventMessage(t *testing.T) {
	event := domain.NewSessionEvent(domain.EventStateChanged, "tx-1", "MT00001", "review")
	msg := CreateSessionEventMessage(event)

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if decoded["type"] != string(MessageTypeSessionEvent) {
		t.Errorf("Expected type session_event, got %v", decoded["type"])
	}
	if decoded["message_id"] != event.ID {
		t.Errorf("Expected message_id %s, got %v", event.ID, decoded["message_id"])
	}
	inner, ok := decoded["event"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected event object, got %T", decoded["event"])
	}
	if inner["state"] != "review" || inner["transcription_id"] != "tx-1" {
		t.Errorf("Unexpected event payload: %v", inner)
	}
}

func TestCreateRecordingStatusMessage(t *testing.T) {
	msg := CreateRecordingStatusMessage(MessageTypeRecordingSaved, "tx-1", "live.webm", 42)
	if msg.Type != MessageTypeRecordingSaved || msg.Bytes != 42 || msg.Filename != "live.webm" {
		t.Errorf("Unexpected status message: %+v", msg)
	}
}
