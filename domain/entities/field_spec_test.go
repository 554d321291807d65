package entities

import (
	"encoding/json"
	"testing"
)

func TestFieldSpecsAcceptBothForms(t *testing.T) {
	var fields FieldSpecs
	raw := `[{"key":"nom","label":"Nom"}, "age", {"key":"poids"}, 42, null]`
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		t.Fatalf("Failed to decode field specs: %v", err)
	}

	if len(fields) != 3 {
		t.Fatalf("Expected 3 usable specs, got %d: %+v", len(fields), fields)
	}

	if fields[0].Bare || fields[0].Key != "nom" || fields[0].Label != "Nom" {
		t.Errorf("Unexpected first spec: %+v", fields[0])
	}
	if !fields[1].Bare || fields[1].Key != "age" {
		t.Errorf("Unexpected second spec: %+v", fields[1])
	}
	if fields[2].Label != "" {
		t.Errorf("Label should stay empty until normalized, got %q", fields[2].Label)
	}
}

func TestFieldSpecsNormalizeAndEncode(t *testing.T) {
	fields := FieldSpecs{LabeledField("nom", "Nom"), BareField("age"), LabeledField("poids", "")}.Normalize()

	out, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("Failed to encode field specs: %v", err)
	}

	want := `[{"key":"nom","label":"Nom"},"age",{"key":"poids","label":"poids"}]`
	if string(out) != want {
		t.Errorf("Expected %s, got %s", want, out)
	}
}

func TestFieldSpecsNullVersusEmpty(t *testing.T) {
	var absent struct {
		Fields FieldSpecs `json:"template_fields"`
	}
	if err := json.Unmarshal([]byte(`{}`), &absent); err != nil {
		t.Fatal(err)
	}
	if absent.Fields != nil {
		t.Error("Absent field list should decode to nil")
	}

	var empty struct {
		Fields FieldSpecs `json:"template_fields"`
	}
	if err := json.Unmarshal([]byte(`{"template_fields":[]}`), &empty); err != nil {
		t.Fatal(err)
	}
	if empty.Fields == nil {
		t.Error("Empty field list should decode to an empty, non-nil list")
	}
}

func TestFormatFieldName(t *testing.T) {
	tests := map[string]string{
		"hdm":                "Histoire De La Maladie",
		"ATCD":               "Antecedents",
		"tension_arterielle": "Tension Arterielle",
		"poids":              "Poids",
	}
	for key, want := range tests {
		if got := FormatFieldName(key); got != want {
			t.Errorf("FormatFieldName(%q) = %q, want %q", key, got, want)
		}
	}
}
