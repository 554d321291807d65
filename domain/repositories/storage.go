package repositories

import (
	"context"
	"errors"

	"github.com/loic-ops/medical-transcription/domain/entities"
)

var (
	// ErrSessionNotFound is returned when no session has the requested ID
	ErrSessionNotFound = errors.New("transcription session not found")
	// ErrAttachmentNotFound is returned when the session holds no payload of the requested kind
	ErrAttachmentNotFound = errors.New("attachment not found")
)

// TranscriptionRepository defines data access methods for transcription sessions
type TranscriptionRepository interface {
	// Create stores a new session and assigns its reference from the sequence
	Create(ctx context.Context, session *entities.TranscriptionSession) error
	GetByID(ctx context.Context, id string) (*entities.TranscriptionSession, error)
	// List returns the most recent sessions first
	List(ctx context.Context, limit int) ([]*entities.TranscriptionSession, error)
	// Update applies a partial write
	Update(ctx context.Context, id string, patch entities.SessionPatch) error
	// PutAttachment stores (or replaces) the binary payload of the given kind
	PutAttachment(ctx context.Context, id string, attachment entities.Attachment) error
	GetAttachment(ctx context.Context, id string, kind entities.AttachmentKind) (*entities.Attachment, error)
}
