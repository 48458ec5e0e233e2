package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AudienceKind tags the shape of a campaign's target_audience column.
type AudienceKind int

const (
	// AudienceUnset: column is null or absent.
	AudienceUnset AudienceKind = iota
	// AudienceAny: an empty object, no selector chosen.
	AudienceAny
	// AudienceCriteria: only selector keys the CRM knows about.
	AudienceCriteria
	// AudienceOpaque: anything else, kept verbatim.
	AudienceOpaque
)

var knownAudienceKeys = map[string]bool{
	"tag":                true,
	"tags":               true,
	"profile_type":       true,
	"status":             true,
	"inactive_days":      true,
	"birthday_month":     true,
	"last_purchase_days": true,
}

// AudienceCriterion is one key of the selector object, in input order.
type AudienceCriterion struct {
	Key   string
	Value json.RawMessage
}

// Audience is the target_audience JSON modelled as a tagged union.
type Audience struct {
	Kind     AudienceKind
	Criteria []AudienceCriterion
	raw      json.RawMessage // non-object payloads
}

// NewAudience builds a criteria (or opaque) audience from ordered key/value pairs.
func NewAudience(criteria ...AudienceCriterion) Audience {
	if len(criteria) == 0 {
		return Audience{Kind: AudienceAny}
	}
	a := Audience{Kind: AudienceCriteria, Criteria: criteria}
	for _, c := range criteria {
		if !knownAudienceKeys[c.Key] {
			a.Kind = AudienceOpaque
			break
		}
	}
	return a
}

// Criterion is a convenience for building an AudienceCriterion from a Go value.
func Criterion(key string, value any) AudienceCriterion {
	b, err := json.Marshal(value)
	if err != nil {
		b = []byte("null")
	}
	return AudienceCriterion{Key: key, Value: b}
}

func (a *Audience) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = Audience{Kind: AudienceUnset}
		return nil
	}
	if trimmed[0] != '{' {
		*a = Audience{Kind: AudienceOpaque, raw: append(json.RawMessage(nil), trimmed...)}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("decode target_audience: %w", err)
	}
	var criteria []AudienceCriterion
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("decode target_audience key: %w", err)
		}
		key, _ := tok.(string)
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("decode target_audience[%s]: %w", key, err)
		}
		criteria = append(criteria, AudienceCriterion{Key: key, Value: value})
	}
	*a = NewAudience(criteria...)
	return nil
}

func (a Audience) MarshalJSON() ([]byte, error) {
	switch {
	case a.Kind == AudienceUnset:
		return []byte("null"), nil
	case a.raw != nil:
		return a.raw, nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range a.Criteria {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(c.Key)
		buf.Write(key)
		buf.WriteByte(':')
		if len(c.Value) == 0 {
			buf.WriteString("null")
		} else {
			buf.Write(c.Value)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Display renders the audience for the campaigns table.
func (a Audience) Display() string {
	switch {
	case a.Kind == AudienceUnset:
		return "Não definido"
	case a.Kind == AudienceAny:
		return "Critérios específicos"
	case a.raw != nil:
		return compactJSON(a.raw)
	}
	parts := make([]string, 0, len(a.Criteria))
	for _, c := range a.Criteria {
		parts = append(parts, fmt.Sprintf("%s: %s", c.Key, compactJSON(c.Value)))
	}
	return strings.Join(parts, ", ")
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
