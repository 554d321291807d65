package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/internal/present"
)

// CreateSession starts a session in draft, or directly in transcribing when
// asked. Template fields are cached on the record and the audio, when
// given, is stored once.
func (s *TranscriptionService) CreateSession(ctx context.Context, req CreateSessionRequest) domain.Result {
	if err := s.validate.Struct(req); err != nil {
		return s.fail("create", validationError(err))
	}

	var audio []byte
	if req.AudioBase64 != "" {
		var err error
		if audio, err = decodeAudio(req.AudioBase64); err != nil {
			return s.fail("create", err)
		}
	}

	session := entities.NewTranscriptionSession(req.TemplateType, req.TemplateName)
	if req.State != "" {
		session.State = entities.State(req.State)
	}
	if req.TemplateFields != nil {
		fieldsJSON, err := entities.SerializeFieldSpecs(req.TemplateFields.Normalize())
		if err != nil {
			return s.fail("create", domain.NewError(domain.KindValidation, "Invalid template_fields", err))
		}
		session.TemplateFieldsJSON = fieldsJSON
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return s.fail("create", domain.NewError(domain.KindPersistence, fmt.Sprintf("Failed to create record: %v", err), err))
	}
	s.logger.Info("Transcription session created",
		zap.String("transcriptionID", session.ID),
		zap.String("reference", session.Reference),
		zap.String("state", string(session.State)))
	s.metrics.RecordTransition(string(session.State))
	s.notify(ctx, domain.NewSessionEvent(domain.EventSessionCreated, session.ID, session.Reference, string(session.State)))

	if len(audio) > 0 {
		s.attachAudio(ctx, session, firstNonEmpty(req.AudioFilename, entities.DefaultAudioFilename), audio)
	}

	return domain.Success(map[string]interface{}{
		"id":            session.ID,
		"reference":     session.Reference,
		"transcription": session,
	})
}

// GetSession returns one session
func (s *TranscriptionService) GetSession(ctx context.Context, id string) domain.Result {
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return s.fail("get", err, zap.String("transcriptionID", id))
	}
	return domain.Success(map[string]interface{}{"transcription": session})
}

// ListSessions returns the most recent sessions first
func (s *TranscriptionService) ListSessions(ctx context.Context, limit int) domain.Result {
	if limit <= 0 || limit > s.config.ListLimit {
		limit = s.config.ListLimit
	}
	sessions, err := s.repo.List(ctx, limit)
	if err != nil {
		return s.fail("list", domain.NewError(domain.KindUnexpected, "Unexpected error: "+err.Error(), err))
	}
	return domain.Success(map[string]interface{}{
		"transcriptions": sessions,
		"count":          len(sessions),
	})
}

// UpdateReport replaces the report text of a session after the fact
func (s *TranscriptionService) UpdateReport(ctx context.Context, id string, req UpdateReportRequest) domain.Result {
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return s.fail("update_report", err, zap.String("transcriptionID", id))
	}

	patch := entities.SessionPatch{MedicalReport: entities.StringPtr(req.MedicalReport)}
	if err := s.repo.Update(ctx, session.ID, patch); err != nil {
		perr := domain.NewError(domain.KindPersistence, fmt.Sprintf("Failed to update record: %v", err), err)
		return s.fail("update_report", perr, zap.String("transcriptionID", id))
	}
	patch.Apply(session)

	s.notify(ctx, domain.NewSessionEvent(domain.EventReportEdited, session.ID, session.Reference, string(session.State)))
	return domain.Success(map[string]interface{}{"transcription": session})
}

// SessionData returns the session's current structured data, split into
// patient identification and clinical observations, with display markup
// for the extracted and validated copies.
func (s *TranscriptionService) SessionData(ctx context.Context, id string) domain.Result {
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return s.fail("data", err, zap.String("transcriptionID", id))
	}

	return domain.Success(map[string]interface{}{
		"current_data":        map[string]interface{}(session.CurrentData()),
		"patient_info":        map[string]interface{}(session.PatientInfo()),
		"clinical_data":       map[string]interface{}(session.ClinicalData()),
		"has_validated_data":  session.HasValidatedData(),
		"extracted_data_html": present.StructuredDataHTML(session.ExtractedDataJSON),
		"validated_data_html": present.StructuredDataHTML(session.ValidatedDataJSON),
	})
}
