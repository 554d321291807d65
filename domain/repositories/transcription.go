package repositories

import (
	"context"
	"time"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
)

// TranscribeInput is everything the external service needs to transcribe one clip
type TranscribeInput struct {
	Audio          []byte
	Filename       string
	Fields         entities.FieldSpecs
	InputLanguage  string
	OutputLanguage string
	// Timeout overrides the configured transcription timeout when non-zero
	Timeout time.Duration
}

// ValidateInput carries the user-approved report and data
type ValidateInput struct {
	APITranscriptionID string
	Report             string
	Data               map[string]interface{}
}

// TranscriptionAPI abstracts the external transcription service. Every
// method returns the decoded service payload, or a *domain.Error.
type TranscriptionAPI interface {
	ListTemplates(ctx context.Context) (domain.Result, error)
	Lookup(ctx context.Context, apiTranscriptionID string) (domain.Result, error)
	Transcribe(ctx context.Context, input TranscribeInput) (domain.Result, error)
	Validate(ctx context.Context, input ValidateInput) (domain.Result, error)
	// Download fetches an artifact given the path fragment the service returned
	Download(ctx context.Context, path string) ([]byte, error)
}

// TemplateCache keeps the service's template catalog between requests
type TemplateCache interface {
	Get(ctx context.Context) (domain.Result, bool, error)
	Set(ctx context.Context, catalog domain.Result) error
}

// EventPublisher delivers session lifecycle events
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SessionEvent) error
}

// ReportRenderer renders the printable report of a session
type ReportRenderer interface {
	Render(ctx context.Context, session *entities.TranscriptionSession) ([]byte, error)
}
