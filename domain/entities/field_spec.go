package entities

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FieldSpec is a requested structured-data key. On the wire it is either a
// bare string ("age") or a labelled pair ({"key":"nom","label":"Nom"}); Bare
// remembers which form it arrived in so it goes back out the same way.
type FieldSpec struct {
	Key   string
	Label string
	Bare  bool
}

// BareField builds a field spec sent as a plain string
func BareField(key string) FieldSpec {
	return FieldSpec{Key: key, Bare: true}
}

// LabeledField builds a {key, label} field spec
func LabeledField(key, label string) FieldSpec {
	return FieldSpec{Key: key, Label: label}
}

// Normalize defaults the label of a labelled spec to its key
func (f FieldSpec) Normalize() FieldSpec {
	if !f.Bare && f.Label == "" {
		f.Label = f.Key
	}
	return f
}

// DisplayLabel returns the label to show for this field
func (f FieldSpec) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return FormatFieldName(f.Key)
}

type labeledField struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// MarshalJSON writes bare specs as strings and labelled specs as objects
func (f FieldSpec) MarshalJSON() ([]byte, error) {
	if f.Bare {
		return json.Marshal(f.Key)
	}
	return json.Marshal(labeledField{Key: f.Key, Label: f.Label})
}

// UnmarshalJSON accepts either a string or a {key, label} object
func (f *FieldSpec) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty field spec")
	}

	switch data[0] {
	case '"':
		var key string
		if err := json.Unmarshal(data, &key); err != nil {
			return err
		}
		*f = BareField(key)
		return nil
	case '{':
		var lf labeledField
		if err := json.Unmarshal(data, &lf); err != nil {
			return err
		}
		*f = LabeledField(lf.Key, lf.Label)
		return nil
	default:
		return fmt.Errorf("field spec must be a string or an object, got %s", data)
	}
}

// FieldSpecs is an ordered list of field specs. Decoding skips elements that
// are neither strings nor objects instead of failing the whole list.
type FieldSpecs []FieldSpec

// UnmarshalJSON implements json.Unmarshaler
func (fs *FieldSpecs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*fs = nil
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(FieldSpecs, 0, len(raw))
	for _, item := range raw {
		if bytes.Equal(bytes.TrimSpace(item), []byte("null")) {
			continue
		}
		var f FieldSpec
		if err := json.Unmarshal(item, &f); err != nil {
			continue
		}
		out = append(out, f)
	}
	*fs = out
	return nil
}

// Normalize returns a copy with every labelled spec's label defaulted
func (fs FieldSpecs) Normalize() FieldSpecs {
	out := make(FieldSpecs, len(fs))
	for i, f := range fs {
		out[i] = f.Normalize()
	}
	return out
}

// Keys returns the requested keys in order
func (fs FieldSpecs) Keys() []string {
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.Key
	}
	return keys
}
