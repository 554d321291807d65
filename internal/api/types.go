package api

import (
	"context"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/usecase"
)

// TranscriptionService is the workflow behind the HTTP routes
type TranscriptionService interface {
	ListTemplates(ctx context.Context) domain.Result
	Lookup(ctx context.Context, req usecase.LookupRequest) domain.Result
	Transcribe(ctx context.Context, req usecase.TranscribeRequest) domain.Result
	Validate(ctx context.Context, req usecase.ValidateRequest) domain.Result
	DownloadFile(ctx context.Context, id, fileType string) (*entities.Attachment, error)
	DownloadReport(ctx context.Context, id string) (*entities.Attachment, error)
	CreateSession(ctx context.Context, req usecase.CreateSessionRequest) domain.Result
	GetSession(ctx context.Context, id string) domain.Result
	ListSessions(ctx context.Context, limit int) domain.Result
	UpdateReport(ctx context.Context, id string, req usecase.UpdateReportRequest) domain.Result
	SessionData(ctx context.Context, id string) domain.Result
}

// HealthResponse represents the health check payload
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// ErrorResponse represents an error response in the uniform result shape
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
