package types

import (
	"fmt"
	"strings"
	"time"
)

// FieldType identifies the kind of input a form field accepts.
// The set is closed: schemas coming back from the mapping model are
// validated against it and rejected on unknown values.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldEmail    FieldType = "email"
	FieldPhone    FieldType = "phone"
	FieldNumber   FieldType = "number"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
	FieldCheckbox FieldType = "checkbox"
	FieldRadio    FieldType = "radio"
	FieldTextarea FieldType = "textarea"
	FieldFile     FieldType = "file"
	FieldPassword FieldType = "password"
)

// knownFieldTypes is the validation set for ParseFieldType.
var knownFieldTypes = map[FieldType]bool{
	FieldText:     true,
	FieldEmail:    true,
	FieldPhone:    true,
	FieldNumber:   true,
	FieldDate:     true,
	FieldSelect:   true,
	FieldCheckbox: true,
	FieldRadio:    true,
	FieldTextarea: true,
	FieldFile:     true,
	FieldPassword: true,
}

// ParseFieldType validates a raw type tag against the known enumeration.
// Matching is case-insensitive; unknown tags are an error, never coerced.
func ParseFieldType(raw string) (FieldType, error) {
	ft := FieldType(strings.ToLower(strings.TrimSpace(raw)))
	if !knownFieldTypes[ft] {
		return "", fmt.Errorf("unknown field type %q", raw)
	}
	return ft, nil
}

// FormField describes one fillable element of an analyzed form.
// Fields are immutable once emitted by the analyzer.
type FormField struct {
	// Name is the field's internal identifier (usually the name attribute).
	Name string `json:"name"`

	// Label is the human-visible label associated with the field, if any.
	Label string `json:"label,omitempty"`

	// Type is the inferred input type from the closed enumeration.
	Type FieldType `json:"type"`

	// Selector is the CSS selector used to locate the element.
	Selector string `json:"selector"`

	// Required indicates whether the form marks the field as mandatory.
	Required bool `json:"required"`

	// Options holds the candidate values for select and radio fields.
	Options []string `json:"options,omitempty"`

	// ValueSource is the logical profile key the executor resolves the
	// field's value from (e.g. "full_name", "email").
	ValueSource string `json:"value_source,omitempty"`
}

// FormSchema is one analyzed snapshot of a form. Field order matches
// document order; later stages rely on sequential completion.
type FormSchema struct {
	URL        string      `json:"url"`
	Title      string      `json:"title,omitempty"`
	Fields     []FormField `json:"fields"`
	CapturedAt time.Time   `json:"captured_at"`
}

// ProfileData maps logical field names to the values used to populate a
// form. It is supplied by the caller and never mutated by the pipeline.
type ProfileData map[string]string

// Lookup resolves a value for a field, preferring its declared value
// source and falling back to the raw field name.
func (p ProfileData) Lookup(field FormField) (string, bool) {
	if field.ValueSource != "" {
		if v, ok := p[field.ValueSource]; ok {
			return v, true
		}
	}
	v, ok := p[field.Name]
	return v, ok
}
