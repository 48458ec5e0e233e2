package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================
// Forms
// ============================================================

const (
	FormStatusActive   = "ativo"
	FormStatusInactive = "inativo"
)

// Visual defaults applied when a form is created without customization.
const (
	DefaultFormBackground = "#ffffff"
	DefaultFormPrimary    = "#2563eb"
	DefaultFormText       = "#1f2937"
	DefaultFormFont       = "Inter"
	DefaultFormButtonText = "Enviar"
)

// Known field types. Anything else decodes as an opaque field.
const (
	FieldText     = "text"
	FieldTextarea = "textarea"
	FieldEmail    = "email"
	FieldPhone    = "phone"
	FieldNumber   = "number"
	FieldDate     = "date"
	FieldSelect   = "select"
	FieldRadio    = "radio"
	FieldCheckbox = "checkbox"
)

var knownFieldTypes = map[string]bool{
	FieldText: true, FieldTextarea: true, FieldEmail: true, FieldPhone: true,
	FieldNumber: true, FieldDate: true, FieldSelect: true, FieldRadio: true, FieldCheckbox: true,
}

// FormField is one question of a form. Opaque fields keep their raw JSON so
// that editing a form never drops field types the CRM does not know yet.
type FormField struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Label       string   `json:"label"`
	Required    bool     `json:"required"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"`

	raw json.RawMessage
}

// Opaque reports whether the field type is unknown to the CRM.
func (f FormField) Opaque() bool {
	return f.raw != nil
}

type formFieldAlias FormField

func (f *FormField) UnmarshalJSON(data []byte) error {
	var alias formFieldAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return fmt.Errorf("decode form field: %w", err)
	}
	*f = FormField(alias)
	if !knownFieldTypes[f.Type] {
		f.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	}
	return nil
}

func (f FormField) MarshalJSON() ([]byte, error) {
	if f.raw != nil {
		return f.raw, nil
	}
	return json.Marshal(formFieldAlias(f))
}

// Form is a questionnaire sent to clients.
type Form struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Fields          []FormField `json:"fields"`
	Status          string      `json:"status"`
	QuestionCount   int         `json:"question_count"`
	LogoURL         string      `json:"logo_url"`
	BackgroundColor string      `json:"background_color"`
	PrimaryColor    string      `json:"primary_color"`
	TextColor       string      `json:"text_color"`
	FontFamily      string      `json:"font_family"`
	ButtonText      string      `json:"button_text"`
	CreatedBy       string      `json:"created_by"`
	CreatedAt       time.Time   `json:"created_at"`
}

// FormInput is the payload for creating a form.
type FormInput struct {
	Title           string      `json:"title"`
	Description     string      `json:"description,omitempty"`
	Fields          []FormField `json:"fields"`
	Status          string      `json:"status,omitempty"`
	LogoURL         string      `json:"logo_url,omitempty"`
	BackgroundColor string      `json:"background_color,omitempty"`
	PrimaryColor    string      `json:"primary_color,omitempty"`
	TextColor       string      `json:"text_color,omitempty"`
	FontFamily      string      `json:"font_family,omitempty"`
	ButtonText      string      `json:"button_text,omitempty"`
}

// ApplyVisualDefaults fills unset customization fields.
func (in *FormInput) ApplyVisualDefaults() {
	if in.BackgroundColor == "" {
		in.BackgroundColor = DefaultFormBackground
	}
	if in.PrimaryColor == "" {
		in.PrimaryColor = DefaultFormPrimary
	}
	if in.TextColor == "" {
		in.TextColor = DefaultFormText
	}
	if in.FontFamily == "" {
		in.FontFamily = DefaultFormFont
	}
	if in.ButtonText == "" {
		in.ButtonText = DefaultFormButtonText
	}
}

// FormPatch carries the fields to change; nil fields are left untouched.
type FormPatch struct {
	Title           *string      `json:"title,omitempty"`
	Description     *string      `json:"description,omitempty"`
	Fields          *[]FormField `json:"fields,omitempty"`
	Status          *string      `json:"status,omitempty"`
	LogoURL         *string      `json:"logo_url,omitempty"`
	BackgroundColor *string      `json:"background_color,omitempty"`
	PrimaryColor    *string      `json:"primary_color,omitempty"`
	TextColor       *string      `json:"text_color,omitempty"`
	FontFamily      *string      `json:"font_family,omitempty"`
	ButtonText      *string      `json:"button_text,omitempty"`
}

// Row converts the patch to columns; question_count follows fields.
func (p *FormPatch) Row() map[string]any {
	row := map[string]any{}
	set := func(col string, v *string) {
		if v != nil {
			row[col] = *v
		}
	}
	set("title", p.Title)
	set("description", p.Description)
	set("status", p.Status)
	set("logo_url", p.LogoURL)
	set("background_color", p.BackgroundColor)
	set("primary_color", p.PrimaryColor)
	set("text_color", p.TextColor)
	set("font_family", p.FontFamily)
	set("button_text", p.ButtonText)
	if p.Fields != nil {
		row["fields"] = *p.Fields
		row["question_count"] = len(*p.Fields)
	}
	return row
}

// FormResponse is one submission of a form.
type FormResponse struct {
	ID          string          `json:"id"`
	FormID      string          `json:"form_id"`
	ClientID    *string         `json:"client_id,omitempty"`
	Answers     json.RawMessage `json:"answers"`
	SubmittedAt time.Time       `json:"submitted_at"`
}

func ValidFormStatus(status string) bool {
	return status == FormStatusActive || status == FormStatusInactive
}
