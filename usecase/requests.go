package usecase

import "github.com/loic-ops/medical-transcription/domain/entities"

// LookupRequest fetches a transcription from the external service
type LookupRequest struct {
	APITranscriptionID string `json:"api_transcription_id" validate:"required"`
}

// TranscribeRequest sends one audio clip for transcription. A nil
// TemplateFields (absent or null) falls back to the session's cached fields.
type TranscribeRequest struct {
	TranscriptionID string              `json:"transcription_id" validate:"required"`
	AudioBase64     string              `json:"audio_base64" validate:"required"`
	AudioFilename   string              `json:"audio_filename" validate:"omitempty,audio_filename"`
	TemplateType    string              `json:"template_type"`
	TemplateFields  entities.FieldSpecs `json:"template_fields"`
	InputLanguage   string              `json:"input_language"`
	OutputLanguage  string              `json:"output_language"`
}

// ValidateRequest confirms the user-edited report and data
type ValidateRequest struct {
	TranscriptionID string                 `json:"transcription_id" validate:"required"`
	ValidatedData   map[string]interface{} `json:"validated_data"`
	ValidatedReport string                 `json:"validated_report"`
}

// CreateSessionRequest starts a new session, optionally with its audio
type CreateSessionRequest struct {
	TemplateType   string              `json:"template_type"`
	TemplateName   string              `json:"template_name"`
	TemplateFields entities.FieldSpecs `json:"template_fields"`
	AudioBase64    string              `json:"audio_base64"`
	AudioFilename  string              `json:"audio_filename" validate:"omitempty,audio_filename"`
	State          string              `json:"state" validate:"omitempty,oneof=draft transcribing"`
}

// UpdateReportRequest replaces the report text of a session
type UpdateReportRequest struct {
	MedicalReport string `json:"medical_report"`
}
