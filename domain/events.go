package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a session lifecycle event
type EventType string

const (
	EventSessionCreated EventType = "session.created"
	EventStateChanged   EventType = "session.state_changed"
	EventAudioAttached  EventType = "session.audio_attached"
	EventArtifactStored EventType = "session.artifact_stored"
	EventReportEdited   EventType = "session.report_edited"
)

// SessionEvent is published whenever a session changes in a way the UI or
// downstream consumers care about
type SessionEvent struct {
	ID              string    `json:"id"`
	Type            EventType `json:"type"`
	TranscriptionID string    `json:"transcription_id"`
	Reference       string    `json:"reference,omitempty"`
	State           string    `json:"state,omitempty"`
	Error           string    `json:"error,omitempty"`
	Detail          string    `json:"detail,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewSessionEvent stamps a new event with an ID and the current time
func NewSessionEvent(eventType EventType, transcriptionID, reference, state string) SessionEvent {
	return SessionEvent{
		ID:              uuid.New().String(),
		Type:            eventType,
		TranscriptionID: transcriptionID,
		Reference:       reference,
		State:           state,
		OccurredAt:      time.Now().UTC(),
	}
}
