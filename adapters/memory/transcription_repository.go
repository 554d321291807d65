package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
)

// TranscriptionRepository is an in-memory implementation of
// repositories.TranscriptionRepository, used by tests and STORE_DRIVER=memory.
type TranscriptionRepository struct {
	mu          sync.RWMutex
	sessions    map[string]*entities.TranscriptionSession                  // id -> session
	attachments map[string]map[entities.AttachmentKind]entities.Attachment // id -> kind -> payload
	seq         int64
	format      entities.ReferenceFormat
}

// Ensure TranscriptionRepository implements the repository interface
var _ repositories.TranscriptionRepository = (*TranscriptionRepository)(nil)

// NewTranscriptionRepository creates an empty in-memory repository
func NewTranscriptionRepository(format entities.ReferenceFormat) *TranscriptionRepository {
	return &TranscriptionRepository{
		sessions:    make(map[string]*entities.TranscriptionSession),
		attachments: make(map[string]map[entities.AttachmentKind]entities.Attachment),
		format:      format,
	}
}

// Create implements repositories.TranscriptionRepository
func (m *TranscriptionRepository) Create(ctx context.Context, session *entities.TranscriptionSession) error {
	if session == nil {
		return errors.New("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return errors.New("session with this ID already exists")
	}

	m.seq++
	if err := session.AssignReference(m.format.Format(m.seq)); err != nil {
		return err
	}

	// Store a copy to prevent external modifications
	sessionCopy := *session
	m.sessions[session.ID] = &sessionCopy
	return nil
}

// GetByID implements repositories.TranscriptionRepository
func (m *TranscriptionRepository) GetByID(ctx context.Context, id string) (*entities.TranscriptionSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[id]
	if !exists {
		return nil, repositories.ErrSessionNotFound
	}
	sessionCopy := *session
	return &sessionCopy, nil
}

// List implements repositories.TranscriptionRepository
func (m *TranscriptionRepository) List(ctx context.Context, limit int) ([]*entities.TranscriptionSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*entities.TranscriptionSession, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessionCopy := *session
		sessions = append(sessions, &sessionCopy)
	}

	// Newest first; the reference breaks ties between sessions created in the same instant
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].Reference > sessions[j].Reference
	})

	if limit > 0 && len(sessions) > limit {
		sessions = sessions[:limit]
	}
	return sessions, nil
}

// Update implements repositories.TranscriptionRepository
func (m *TranscriptionRepository) Update(ctx context.Context, id string, patch entities.SessionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return repositories.ErrSessionNotFound
	}
	if patch.IsEmpty() {
		return nil
	}
	patch.Apply(session)
	return nil
}

// PutAttachment implements repositories.TranscriptionRepository
func (m *TranscriptionRepository) PutAttachment(ctx context.Context, id string, attachment entities.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[id]
	if !exists {
		return repositories.ErrSessionNotFound
	}

	data := make([]byte, len(attachment.Data))
	copy(data, attachment.Data)
	attachment.Data = data

	if m.attachments[id] == nil {
		m.attachments[id] = make(map[entities.AttachmentKind]entities.Attachment)
	}
	m.attachments[id][attachment.Kind] = attachment

	now := time.Now().UTC()
	session.SetAttachmentRef(attachment.Kind, &entities.AttachmentRef{
		Filename: attachment.Filename,
		Size:     int64(len(data)),
		StoredAt: now,
	})
	session.UpdatedAt = now
	return nil
}

// GetAttachment implements repositories.TranscriptionRepository
func (m *TranscriptionRepository) GetAttachment(ctx context.Context, id string, kind entities.AttachmentKind) (*entities.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, exists := m.sessions[id]; !exists {
		return nil, repositories.ErrSessionNotFound
	}
	attachment, exists := m.attachments[id][kind]
	if !exists {
		return nil, repositories.ErrAttachmentNotFound
	}

	data := make([]byte, len(attachment.Data))
	copy(data, attachment.Data)
	attachment.Data = data
	return &attachment, nil
}
