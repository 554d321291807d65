package entities

import "time"

// SessionPatch is a partial write against a session. Nil fields are left
// untouched. Reference and ID are deliberately absent: they never change
// after creation.
type SessionPatch struct {
	TemplateType       *string
	TemplateName       *string
	APITranscriptionID *string
	RawTranscript      *string
	CleanedText        *string
	MedicalReport      *string
	ExtractedDataJSON  *string
	ValidatedDataJSON  *string
	TemplateFieldsJSON *string
	State              *State
	ErrorMessage       *string
}

// StringPtr is a helper for building patches
func StringPtr(s string) *string {
	return &s
}

// StatePtr is a helper for building patches
func StatePtr(s State) *State {
	return &s
}

// ErrorPatch moves a session to the error state with a message
func ErrorPatch(message string) SessionPatch {
	return SessionPatch{
		State:        StatePtr(StateError),
		ErrorMessage: StringPtr(message),
	}
}

// IsEmpty reports whether the patch changes nothing
func (p SessionPatch) IsEmpty() bool {
	return len(p.Fields()) == 0
}

// Fields returns the patch as a field-name to value map, using the stored
// field names. A state change away from error clears the error message.
func (p SessionPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{})
	set := func(name string, v *string) {
		if v != nil {
			fields[name] = *v
		}
	}
	set("template_type", p.TemplateType)
	set("template_name", p.TemplateName)
	set("api_transcription_id", p.APITranscriptionID)
	set("whisper_transcription", p.RawTranscript)
	set("cleaned_text", p.CleanedText)
	set("medical_report", p.MedicalReport)
	set("extracted_data_json", p.ExtractedDataJSON)
	set("validated_data_json", p.ValidatedDataJSON)
	set("template_fields_json", p.TemplateFieldsJSON)
	set("error_message", p.ErrorMessage)
	if p.State != nil {
		fields["state"] = *p.State
		if *p.State != StateError && p.ErrorMessage == nil {
			fields["error_message"] = ""
		}
	}
	return fields
}

// Apply writes the patch onto s and bumps UpdatedAt
func (p SessionPatch) Apply(s *TranscriptionSession) {
	assign := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	assign(&s.TemplateType, p.TemplateType)
	assign(&s.TemplateName, p.TemplateName)
	assign(&s.APITranscriptionID, p.APITranscriptionID)
	assign(&s.RawTranscript, p.RawTranscript)
	assign(&s.CleanedText, p.CleanedText)
	assign(&s.MedicalReport, p.MedicalReport)
	assign(&s.ExtractedDataJSON, p.ExtractedDataJSON)
	assign(&s.ValidatedDataJSON, p.ValidatedDataJSON)
	assign(&s.TemplateFieldsJSON, p.TemplateFieldsJSON)
	assign(&s.ErrorMessage, p.ErrorMessage)
	if p.State != nil {
		s.State = *p.State
		if *p.State != StateError && p.ErrorMessage == nil {
			s.ErrorMessage = ""
		}
	}
	s.UpdatedAt = time.Now().UTC()
}
