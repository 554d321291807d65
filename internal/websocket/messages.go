package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/loic-ops/medical-transcription/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	MessageTypeRecordingStart   MessageType = "recording_start"
	MessageTypeRecordingEnd     MessageType = "recording_end"
	MessageTypeRecordingStarted MessageType = "recording_started"
	MessageTypeRecordingSaved   MessageType = "recording_saved"
	MessageTypePing             MessageType = "ping"
	MessageTypePong             MessageType = "pong"
	MessageTypeError            MessageType = "error"
	MessageTypeSessionEvent     MessageType = "session_event"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type" validate:"required"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// RecordingStartMessage opens a recording on the subscribed session
type RecordingStartMessage struct {
	BaseMessage
	Filename string `json:"filename" validate:"omitempty,max=255,audio_filename"`
}

// RecordingEndMessage closes the recording and stores the audio received so far
type RecordingEndMessage struct {
	BaseMessage
}

// RecordingStatusMessage acknowledges recording_start and recording_end
type RecordingStatusMessage struct {
	BaseMessage
	TranscriptionID string `json:"transcription_id"`
	Filename        string `json:"filename,omitempty"`
	Bytes           int    `json:"bytes"`
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// SessionEventMessage pushes a lifecycle event to subscribers
type SessionEventMessage struct {
	BaseMessage
	Event domain.SessionEvent `json:"event"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct {
	validate *validator.Validate
}

// NewMessageValidator creates a new message validator. isAudioFilename
// decides which recording filenames are accepted.
func NewMessageValidator(isAudioFilename func(string) bool) *MessageValidator {
	v := validator.New()
	_ = v.RegisterValidation("audio_filename", func(fl validator.FieldLevel) bool {
		return isAudioFilename(fl.Field().String())
	})
	return &MessageValidator{validate: v}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}
	if err := v.validate.Struct(base); err != nil {
		return nil, errors.New("type is required")
	}

	var msg interface{}
	switch base.Type {
	case MessageTypeRecordingStart:
		msg = &RecordingStartMessage{}
	case MessageTypeRecordingEnd:
		msg = &RecordingEndMessage{}
	case MessageTypePing:
		msg = &PingMessage{}
	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}

	if err := json.Unmarshal(messageBytes, msg); err != nil {
		return nil, fmt.Errorf("invalid %s message: %w", base.Type, err)
	}
	if err := v.validate.Struct(msg); err != nil {
		return nil, describe(err)
	}
	return msg, nil
}

// describe turns the first failed rule into a short message
func describe(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	if fe.Tag() == "audio_filename" {
		return fmt.Errorf("unsupported audio format: %v", fe.Value())
	}
	return fmt.Errorf("%s failed %s", fe.Field(), fe.Tag())
}

func newBase(t MessageType) BaseMessage {
	return BaseMessage{Type: t, Timestamp: time.Now().Format(time.RFC3339)}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBase(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBase(MessageTypePong),
		Data:        data,
	}
}

// CreateRecordingStatusMessage acknowledges a recording step
func CreateRecordingStatusMessage(t MessageType, transcriptionID, filename string, bytes int) *RecordingStatusMessage {
	return &RecordingStatusMessage{
		BaseMessage:     newBase(t),
		TranscriptionID: transcriptionID,
		Filename:        filename,
		Bytes:           bytes,
	}
}

// CreateSessionEventMessage wraps a lifecycle event for subscribers
func CreateSessionEventMessage(event domain.SessionEvent) *SessionEventMessage {
	return &SessionEventMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeSessionEvent,
			Timestamp: event.OccurredAt.Format(time.RFC3339),
			MessageID: event.ID,
		},
		Event: event,
	}
}
