package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
)

// Validate forwards the user-approved report and data to the external
// service and, once acknowledged, stores them as the session's validated
// copies.
func (s *TranscriptionService) Validate(ctx context.Context, req ValidateRequest) domain.Result {
	if err := s.validate.Struct(req); err != nil {
		return s.fail("validate", validationError(err))
	}

	session, err := s.loadSession(ctx, req.TranscriptionID)
	if err != nil {
		return s.fail("validate", err, zap.String("transcriptionID", req.TranscriptionID))
	}
	if !session.State.CanValidate() {
		err := domain.ValidationError(fmt.Sprintf("Cannot validate a session in state %s", session.State))
		return s.fail("validate", err, zap.String("transcriptionID", session.ID))
	}
	if session.APITranscriptionID == "" {
		return s.fail("validate", domain.ValidationError("Missing transcription ID"), zap.String("transcriptionID", session.ID))
	}

	s.logger.Info("Validating transcription",
		zap.String("transcriptionID", session.ID),
		zap.String("apiTranscriptionID", session.APITranscriptionID))

	// an omitted payload confirms the data as it currently reads
	data := req.ValidatedData
	if data == nil {
		data = session.CurrentData()
	}

	result, err := s.api.Validate(ctx, repositories.ValidateInput{
		APITranscriptionID: session.APITranscriptionID,
		Report:             req.ValidatedReport,
		Data:               data,
	})
	if err != nil {
		return s.fail("validate", err, zap.String("transcriptionID", session.ID))
	}
	if !result.Succeeded() {
		return result
	}

	var order []string
	if fields, ferr := session.TemplateFields(); ferr == nil {
		order = fields.Keys()
	}
	validated, err := entities.StructuredData(data).SerializeOrdered(order)
	if err == nil {
		patch := entities.SessionPatch{
			ValidatedDataJSON: entities.StringPtr(validated),
			MedicalReport:     entities.StringPtr(req.ValidatedReport),
			State:             entities.StatePtr(entities.StateValidated),
		}
		if err = s.repo.Update(ctx, session.ID, patch); err == nil {
			patch.Apply(session)
		}
	}
	if err != nil {
		perr := domain.NewError(domain.KindPersistence, fmt.Sprintf("Failed to update record: %v", err), err)
		return s.fail("validate", perr, zap.String("transcriptionID", session.ID))
	}
	s.stateChanged(ctx, session, entities.StateValidated, "")

	if path, ok := result.Map("files")["validated_pdf"].(string); ok && path != "" {
		s.downloadAndStore(ctx, session, path, entities.AttachmentPDF)
	}
	return result
}
