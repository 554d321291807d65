package usecase

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/domain"
	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
)

// extractedDataPrecedence lists the transcribe response fragments merged
// into the session's structured data, lowest precedence first: a key found
// in a later fragment overrides the same key from an earlier one.
var extractedDataPrecedence = [...]string{"extracted_data", "requested_fields", "additional_fields"}

// MergeExtractedData combines the structured fragments of a transcribe
// response following extractedDataPrecedence. Fragments that are absent or
// not objects are skipped.
func MergeExtractedData(result domain.Result) entities.StructuredData {
	merged := entities.StructuredData{}
	for _, fragment := range extractedDataPrecedence {
		merged.Overlay(result.Map(fragment))
	}
	return merged
}

// decodeAudio decodes the transport encoding of an audio payload
func decodeAudio(audioBase64 string) ([]byte, error) {
	// browsers send data URLs
	if i := strings.Index(audioBase64, ";base64,"); i >= 0 && strings.HasPrefix(audioBase64, "data:") {
		audioBase64 = audioBase64[i+len(";base64,"):]
	}
	audio, err := base64.StdEncoding.DecodeString(strings.TrimSpace(audioBase64))
	if err != nil {
		return nil, domain.NewError(domain.KindDecode, fmt.Sprintf("Failed to decode audio: %v", err), err)
	}
	return audio, nil
}

// Transcribe sends a session's audio to the external service and moves the
// session to review with the merged results. Missing inputs and undecodable
// audio fail before any network call or record write.
func (s *TranscriptionService) Transcribe(ctx context.Context, req TranscribeRequest) domain.Result {
	s.logger.Info("Transcribe start",
		zap.String("transcriptionID", req.TranscriptionID),
		zap.String("filename", req.AudioFilename),
		zap.String("templateType", req.TemplateType))

	if err := s.validate.Struct(req); err != nil {
		return s.fail("transcribe", validationError(err), zap.String("transcriptionID", req.TranscriptionID))
	}

	audio, err := decodeAudio(req.AudioBase64)
	if err != nil {
		return s.fail("transcribe", err, zap.String("transcriptionID", req.TranscriptionID))
	}
	s.logger.Debug("Audio decoded", zap.Int("bytes", len(audio)))

	session, err := s.loadSession(ctx, req.TranscriptionID)
	if err != nil {
		return s.fail("transcribe", err, zap.String("transcriptionID", req.TranscriptionID))
	}
	if !session.State.CanStartTranscription() {
		err := domain.ValidationError(fmt.Sprintf("Cannot transcribe a session in state %s", session.State))
		return s.fail("transcribe", err, zap.String("transcriptionID", session.ID))
	}

	filename := req.AudioFilename
	if filename == "" {
		filename = entities.DefaultAudioFilename
	}
	fields := s.resolveFieldSpecs(session, req.TemplateFields)

	// announced only: the state is persisted once the service has answered
	s.notify(ctx, domain.NewSessionEvent(domain.EventStateChanged, session.ID, session.Reference, string(entities.StateTranscribing)))

	result, err := s.api.Transcribe(ctx, repositories.TranscribeInput{
		Audio:          audio,
		Filename:       filename,
		Fields:         fields,
		InputLanguage:  firstNonEmpty(req.InputLanguage, s.config.InputLanguage),
		OutputLanguage: firstNonEmpty(req.OutputLanguage, s.config.OutputLanguage),
		Timeout:        s.config.TranscribeTimeout,
	})
	if err != nil {
		s.markFailed(ctx, session, domain.UserMessage(err))
		return s.fail("transcribe", err, zap.String("transcriptionID", session.ID))
	}
	if !result.Succeeded() {
		s.logger.Warn("Transcription service declined",
			zap.String("transcriptionID", session.ID),
			zap.String("error", result.ErrorMessage()))
		return result
	}

	merged := MergeExtractedData(result)
	if err := s.storeTranscription(ctx, session, req, result, merged, fields); err != nil {
		s.markFailed(ctx, session, domain.UserMessage(err))
		return s.fail("transcribe", err, zap.String("transcriptionID", session.ID))
	}
	s.stateChanged(ctx, session, entities.StateReview, "")

	if session.Audio == nil {
		s.attachAudio(ctx, session, filename, audio)
	}

	result["extracted_data"] = map[string]interface{}(merged)
	result["template"] = map[string]interface{}{"fields": fields.Normalize()}

	files := result.Map("files")
	for _, kind := range []entities.AttachmentKind{entities.AttachmentPDF, entities.AttachmentJSON} {
		if path, ok := files[string(kind)].(string); ok && path != "" {
			s.downloadAndStore(ctx, session, path, kind)
		}
	}

	s.logger.Info("Transcribe end",
		zap.String("transcriptionID", session.ID),
		zap.String("apiTranscriptionID", result.String("transcription_id")),
		zap.Int("fields", len(merged)))
	return result
}

// resolveFieldSpecs returns the caller's specs, or the session's cached
// specs when the caller sent none
func (s *TranscriptionService) resolveFieldSpecs(session *entities.TranscriptionSession, requested entities.FieldSpecs) entities.FieldSpecs {
	if requested != nil {
		return requested
	}
	cached, err := session.TemplateFields()
	if err != nil {
		s.logger.Warn("Ignoring unreadable cached template fields",
			zap.String("transcriptionID", session.ID),
			zap.Error(err))
		return entities.FieldSpecs{}
	}
	return cached
}

// storeTranscription writes a successful transcription back to the record
func (s *TranscriptionService) storeTranscription(
	ctx context.Context,
	session *entities.TranscriptionSession,
	req TranscribeRequest,
	result domain.Result,
	merged entities.StructuredData,
	fields entities.FieldSpecs,
) error {
	extracted, err := merged.SerializeOrdered(fields.Keys())
	if err != nil {
		return domain.NewError(domain.KindPersistence, fmt.Sprintf("Failed to update record: %v", err), err)
	}
	fieldsJSON, err := entities.SerializeFieldSpecs(fields.Normalize())
	if err != nil {
		return domain.NewError(domain.KindPersistence, fmt.Sprintf("Failed to update record: %v", err), err)
	}

	patch := entities.SessionPatch{
		APITranscriptionID: entities.StringPtr(result.String("transcription_id")),
		RawTranscript:      entities.StringPtr(firstNonEmpty(result.String("whisper_transcription"), result.String("full_text"))),
		CleanedText:        entities.StringPtr(result.String("cleaned_text")),
		MedicalReport:      entities.StringPtr(result.String("medical_report")),
		ExtractedDataJSON:  entities.StringPtr(extracted),
		TemplateFieldsJSON: entities.StringPtr(fieldsJSON),
		State:              entities.StatePtr(entities.StateReview),
	}
	if req.TemplateType != "" {
		patch.TemplateType = entities.StringPtr(req.TemplateType)
	}

	if err := s.repo.Update(ctx, session.ID, patch); err != nil {
		return domain.NewError(domain.KindPersistence, fmt.Sprintf("Failed to update record: %v", err), err)
	}
	patch.Apply(session)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
