package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
)

// downloadAndStore fetches an artifact the service generated and stores it
// on the session. Failures are logged only: the primary operation already
// succeeded.
func (s *TranscriptionService) downloadAndStore(ctx context.Context, session *entities.TranscriptionSession, path string, kind entities.AttachmentKind) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()

	data, err := s.api.Download(ctx, path)
	if err != nil {
		s.logger.Warn("Failed to download file",
			zap.String("transcriptionID", session.ID),
			zap.String("path", path),
			zap.Error(err))
		return
	}

	filename := entities.ArtifactFilename(path)
	err = s.repo.PutAttachment(ctx, session.ID, entities.Attachment{Kind: kind, Filename: filename, Data: data})
	if err != nil {
		s.logger.Warn("Failed to store downloaded file",
			zap.String("transcriptionID", session.ID),
			zap.String("filename", filename),
			zap.Error(err))
		return
	}

	s.logger.Info("File stored successfully",
		zap.String("transcriptionID", session.ID),
		zap.String("filename", filename))
	event := domain.NewSessionEvent(domain.EventArtifactStored, session.ID, session.Reference, string(session.State))
	event.Detail = filename
	s.notify(ctx, event)
}

// DownloadFile returns a stored artifact by file type (pdf or json). Unknown
// types, unknown sessions and missing artifacts are all not-found errors.
func (s *TranscriptionService) DownloadFile(ctx context.Context, id, fileType string) (*entities.Attachment, error) {
	kind, ok := entities.ParseDownloadKind(fileType)
	if !ok {
		return nil, domain.NewError(domain.KindNotFound, fmt.Sprintf("Unknown file type %q", fileType), nil)
	}

	attachment, err := s.repo.GetAttachment(ctx, id, kind)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) || errors.Is(err, repositories.ErrAttachmentNotFound) {
			return nil, domain.NewError(domain.KindNotFound, fmt.Sprintf("No %s file for transcription %q", kind, id), err)
		}
		s.logger.Error("Failed to read attachment",
			zap.String("transcriptionID", id),
			zap.String("kind", string(kind)),
			zap.Error(err))
		return nil, domain.NewError(domain.KindUnexpected, "Unexpected error: "+err.Error(), err)
	}
	if attachment.Filename == "" {
		attachment.Filename = fmt.Sprintf("%s.%s", id, kind)
	}
	return attachment, nil
}

// DownloadReport renders the printable report of a session
func (s *TranscriptionService) DownloadReport(ctx context.Context, id string) (*entities.Attachment, error) {
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := s.renderer.Render(ctx, session)
	if err != nil {
		s.logger.Error("Error generating PDF report", zap.String("transcriptionID", id), zap.Error(err))
		return nil, domain.NewError(domain.KindUnexpected, "Unexpected error: "+err.Error(), err)
	}
	return &entities.Attachment{
		Kind:     entities.AttachmentPDF,
		Filename: session.ReportFilename(),
		Data:     data,
	}, nil
}
