package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAudience(t *testing.T, raw string) domain.Audience {
	t.Helper()
	var c struct {
		TargetAudience domain.Audience `json:"target_audience"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"target_audience":`+raw+`}`), &c))
	return c.TargetAudience
}

func TestAudience_Variants(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		kind    domain.AudienceKind
		display string
	}{
		{"null", `null`, domain.AudienceUnset, "Não definido"},
		{"empty object", `{}`, domain.AudienceAny, "Critérios específicos"},
		{"single tag", `{"tag":"vip"}`, domain.AudienceCriteria, `tag: "vip"`},
		{"keeps key order", `{"status":"ativo","inactive_days":30}`, domain.AudienceCriteria, `status: "ativo", inactive_days: 30`},
		{"unknown key", `{"region":["sul","sudeste"]}`, domain.AudienceOpaque, `region: ["sul","sudeste"]`},
		{"not an object", `["a","b"]`, domain.AudienceOpaque, `["a","b"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := decodeAudience(t, tt.raw)
			assert.Equal(t, tt.kind, a.Kind)
			assert.Equal(t, tt.display, a.Display())
		})
	}
}

func TestAudience_MissingFieldIsUnset(t *testing.T) {
	var c domain.Campaign
	require.NoError(t, json.Unmarshal([]byte(`{"id":"c1"}`), &c))
	assert.Equal(t, domain.AudienceUnset, c.TargetAudience.Kind)
	assert.Equal(t, "Não definido", c.TargetAudience.Display())
}

func TestAudience_MarshalPreservesOrder(t *testing.T) {
	a := decodeAudience(t, `{ "tags": ["a"], "profile_type": "vip" }`)

	out, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `{"tags":["a"],"profile_type":"vip"}`, string(out))

	assert.Equal(t, "null", mustMarshal(t, domain.Audience{}))
	assert.Equal(t, "{}", mustMarshal(t, domain.NewAudience()))
}

func TestNewAudience_FromCriteria(t *testing.T) {
	a := domain.NewAudience(domain.Criterion("tag", "vip"))
	assert.Equal(t, domain.AudienceCriteria, a.Kind)
	assert.Equal(t, `tag: "vip"`, a.Display())

	b := domain.NewAudience(domain.Criterion("city", "Recife"))
	assert.Equal(t, domain.AudienceOpaque, b.Kind)
}

func mustMarshal(t *testing.T, v any) string {
	t.Helper()
	out, err := json.Marshal(v)
	require.NoError(t, err)
	return string(out)
}
