package entities

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AttachmentKind names one of the binary payloads stored on a session
type AttachmentKind string

const (
	AttachmentAudio AttachmentKind = "audio"
	AttachmentPDF   AttachmentKind = "pdf"
	AttachmentJSON  AttachmentKind = "json"
)

// ContentType returns the MIME type served for this kind of attachment
func (k AttachmentKind) ContentType() string {
	switch k {
	case AttachmentPDF:
		return "application/pdf"
	case AttachmentJSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// FieldName returns the stored field holding the reference of this kind
func (k AttachmentKind) FieldName() string {
	switch k {
	case AttachmentPDF:
		return "pdf_file"
	case AttachmentJSON:
		return "json_file"
	default:
		return "audio"
	}
}

// ParseDownloadKind accepts the file types the download endpoint serves
func ParseDownloadKind(fileType string) (AttachmentKind, bool) {
	switch AttachmentKind(fileType) {
	case AttachmentPDF, AttachmentJSON:
		return AttachmentKind(fileType), true
	}
	return "", false
}

// AttachmentRef points at a stored binary payload
type AttachmentRef struct {
	Filename string    `json:"filename" bson:"filename"`
	FileID   string    `json:"-" bson:"file_id,omitempty"`
	Size     int64     `json:"size" bson:"size"`
	StoredAt time.Time `json:"stored_at" bson:"stored_at"`
}

// Attachment is a binary payload with its filename
type Attachment struct {
	Kind     AttachmentKind
	Filename string
	Data     []byte
}

// TranscriptionSession is one audio-to-report workflow instance.
// Structured data and template fields are kept serialized, the way the
// record store holds them.
type TranscriptionSession struct {
	ID                 string         `json:"id" bson:"_id"`
	Reference          string         `json:"reference" bson:"reference"`
	TemplateType       string         `json:"template_type" bson:"template_type"`
	TemplateName       string         `json:"template_name" bson:"template_name"`
	Audio              *AttachmentRef `json:"audio,omitempty" bson:"audio,omitempty"`
	APITranscriptionID string         `json:"api_transcription_id" bson:"api_transcription_id"`
	RawTranscript      string         `json:"whisper_transcription" bson:"whisper_transcription"`
	CleanedText        string         `json:"cleaned_text" bson:"cleaned_text"`
	MedicalReport      string         `json:"medical_report" bson:"medical_report"`
	ExtractedDataJSON  string         `json:"extracted_data_json" bson:"extracted_data_json"`
	ValidatedDataJSON  string         `json:"validated_data_json" bson:"validated_data_json"`
	TemplateFieldsJSON string         `json:"template_fields_json" bson:"template_fields_json"`
	PDF                *AttachmentRef `json:"pdf_file,omitempty" bson:"pdf_file,omitempty"`
	JSON               *AttachmentRef `json:"json_file,omitempty" bson:"json_file,omitempty"`
	State              State          `json:"state" bson:"state"`
	ErrorMessage       string         `json:"error_message,omitempty" bson:"error_message,omitempty"`
	CreatedAt          time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at" bson:"updated_at"`
}

// NewTranscriptionSession creates a draft session. The reference is
// assigned by the record store on creation.
func NewTranscriptionSession(templateType, templateName string) *TranscriptionSession {
	now := time.Now().UTC()
	return &TranscriptionSession{
		ID:           uuid.New().String(),
		TemplateType: templateType,
		TemplateName: templateName,
		State:        StateDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ErrReferenceAssigned is returned when a reference is assigned twice
var ErrReferenceAssigned = errors.New("reference already assigned")

// AssignReference sets the human-readable reference; it can only happen once
func (s *TranscriptionSession) AssignReference(ref string) error {
	if s.Reference != "" {
		return ErrReferenceAssigned
	}
	if ref == "" {
		return errors.New("reference cannot be empty")
	}
	s.Reference = ref
	return nil
}

// ReportFilename is the download name of the session's printable report
func (s *TranscriptionSession) ReportFilename() string {
	return fmt.Sprintf("Rapport_Medical_%s.pdf", s.Reference)
}

// ExtractedData returns the data produced by the external service
func (s *TranscriptionSession) ExtractedData() (StructuredData, error) {
	return ParseStructuredData(s.ExtractedDataJSON)
}

// ValidatedData returns the user-confirmed data
func (s *TranscriptionSession) ValidatedData() (StructuredData, error) {
	return ParseStructuredData(s.ValidatedDataJSON)
}

// HasValidatedData reports whether the user has confirmed a non-empty copy
// of the data
func (s *TranscriptionSession) HasValidatedData() bool {
	data, err := ParseStructuredData(s.ValidatedDataJSON)
	return err == nil && len(data) > 0
}

// CurrentData returns the validated data once it is set, the extracted
// data otherwise. A payload that does not decode to a mapping reads as empty.
func (s *TranscriptionSession) CurrentData() StructuredData {
	raw := s.ExtractedDataJSON
	if s.HasValidatedData() {
		raw = s.ValidatedDataJSON
	}
	data, err := ParseStructuredData(raw)
	if err != nil {
		return StructuredData{}
	}
	return data
}

// PatientInfo returns the patient identification part of the current data
func (s *TranscriptionSession) PatientInfo() StructuredData {
	return s.CurrentData().PatientInfo()
}

// ClinicalData returns the clinical observation part of the current data
func (s *TranscriptionSession) ClinicalData() StructuredData {
	return s.CurrentData().ClinicalData()
}

// TemplateFields returns the cached field specs
func (s *TranscriptionSession) TemplateFields() (FieldSpecs, error) {
	if s.TemplateFieldsJSON == "" {
		return FieldSpecs{}, nil
	}
	var fields FieldSpecs
	if err := fields.UnmarshalJSON([]byte(s.TemplateFieldsJSON)); err != nil {
		return nil, err
	}
	return fields, nil
}

// SerializeFieldSpecs encodes field specs for storage
func SerializeFieldSpecs(fields FieldSpecs) (string, error) {
	if fields == nil {
		fields = FieldSpecs{}
	}
	b, err := marshalNoEscape(fields)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// AttachmentRef returns the reference stored for kind, nil when absent
func (s *TranscriptionSession) AttachmentRef(kind AttachmentKind) *AttachmentRef {
	switch kind {
	case AttachmentAudio:
		return s.Audio
	case AttachmentPDF:
		return s.PDF
	case AttachmentJSON:
		return s.JSON
	}
	return nil
}

// SetAttachmentRef replaces the reference stored for kind
func (s *TranscriptionSession) SetAttachmentRef(kind AttachmentKind, ref *AttachmentRef) {
	switch kind {
	case AttachmentAudio:
		s.Audio = ref
	case AttachmentPDF:
		s.PDF = ref
	case AttachmentJSON:
		s.JSON = ref
	}
}

// Validate validates the session data
func (s *TranscriptionSession) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if !s.State.Valid() {
		return fmt.Errorf("invalid session state %q", s.State)
	}
	if s.State == StateError && s.ErrorMessage == "" {
		return errors.New("error_message is required in error state")
	}
	return nil
}
