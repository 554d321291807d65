package entities

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// StructuredData is a key to value mapping extracted from a transcript.
// Values may themselves be nested objects or lists.
type StructuredData map[string]interface{}

// ParseStructuredData decodes a serialized mapping. An empty string decodes
// to an empty mapping.
func ParseStructuredData(raw string) (StructuredData, error) {
	if strings.TrimSpace(raw) == "" {
		return StructuredData{}, nil
	}
	var data StructuredData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = StructuredData{}
	}
	return data, nil
}

// SerializeOrdered encodes the mapping with the keys listed in order first,
// in that order, followed by the remaining keys sorted
func (d StructuredData) SerializeOrdered(order []string) (string, error) {
	keys := make([]string, 0, len(d))
	placed := make(map[string]bool, len(d))
	for _, k := range order {
		if _, ok := d[k]; ok && !placed[k] {
			placed[k] = true
			keys = append(keys, k)
		}
	}
	rest := make([]string, 0, len(d)-len(keys))
	for k := range d {
		if !placed[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	keys = append(keys, rest...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := marshalNoEscape(k)
		if err != nil {
			return "", err
		}
		value, err := marshalNoEscape(d[k])
		if err != nil {
			return "", err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// Overlay copies every key of other into d; keys already in d are overwritten
func (d StructuredData) Overlay(other map[string]interface{}) {
	for k, v := range other {
		d[k] = v
	}
}

// patientInfoKeys are the patient identification fields. Everything else is
// a clinical observation.
var patientInfoKeys = map[string]bool{
	"nom":                     true,
	"prenom":                  true,
	"age":                     true,
	"sexe":                    true,
	"date_de_naissance":       true,
	"numero_securite_sociale": true,
	"adresse":                 true,
	"telephone":               true,
	"histoire_de_la_maladie":  true,
	"antecedents":             true,
	"allergies":               true,
	"profession":              true,
	"situation_familiale":     true,
	"motif_de_consultation":   true,
	"motif":                   true,
}

// IsPatientInfoKey reports whether key identifies the patient (case-insensitive)
func IsPatientInfoKey(key string) bool {
	return patientInfoKeys[strings.ToLower(key)]
}

// PatientInfo returns only the patient identification fields
func (d StructuredData) PatientInfo() StructuredData {
	out := StructuredData{}
	for k, v := range d {
		if IsPatientInfoKey(k) {
			out[k] = v
		}
	}
	return out
}

// ClinicalData returns every field that is not patient identification
func (d StructuredData) ClinicalData() StructuredData {
	out := StructuredData{}
	for k, v := range d {
		if !IsPatientInfoKey(k) {
			out[k] = v
		}
	}
	return out
}

var fieldLabels = map[string]string{
	"atcd":                     "Antecedents",
	"antecedents":              "Antecedents",
	"hdm":                      "Histoire De La Maladie",
	"histoire_de_la_maladie":   "Histoire De La Maladie",
	"mdc":                      "Motif De Consultation",
	"motif_de_consultation":    "Motif De Consultation",
	"motif":                    "Motif",
	"derniere_rgle":            "Derniere Regle",
	"derniere_regle":           "Derniere Regle",
	"resume_syndromique":       "Resume Syndromique",
	"hypotheses_diagnostiques": "Hypotheses Diagnostiques",
	"examen_physique":          "Examen Physique",
	"examens_paracliniques":    "Examens Paracliniques",
	"autre_examen":             "Autre Examen",
	"nom":                      "Nom",
	"prenom":                   "Prenom",
	"age":                      "Age",
	"sexe":                     "Sexe",
	"date_de_naissance":        "Date De Naissance",
	"numero_securite_sociale":  "Numero Securite Sociale",
	"adresse":                  "Adresse",
	"telephone":                "Telephone",
	"allergies":                "Allergies",
	"profession":               "Profession",
	"situation_familiale":      "Situation Familiale",
	"commentaires":             "Commentaires",
}

// FormatFieldName turns a field key into a display label: known medical
// abbreviations get their full name, anything else is title-cased on '_'.
func FormatFieldName(key string) string {
	if label, ok := fieldLabels[strings.ToLower(key)]; ok {
		return label
	}
	return TitleCaseKey(key)
}

// TitleCaseKey replaces underscores with spaces and capitalizes each word
func TitleCaseKey(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

// marshalNoEscape encodes v without HTML escaping and without the trailing newline
func marshalNoEscape(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
