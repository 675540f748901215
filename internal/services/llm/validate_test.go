package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSONResponse(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare json untouched", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"uppercase fence", "```JSON\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n[1,2]\n```", `[1,2]`},
		{"surrounding whitespace", "  \n{\"a\":1}\n  ", `{"a":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanJSONResponse(tc.in))
		})
	}
}

func testSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []string{"role_title", "required_skills"},
		"properties": map[string]interface{}{
			"role_title": map[string]interface{}{"type": "string"},
			"required_skills": map[string]interface{}{
				"type":  "array",
				"items": map[string]interface{}{"type": "string"},
			},
			"years": map[string]interface{}{"type": "number"},
		},
	}
}

func TestValidateAgainstSchema(t *testing.T) {
	t.Run("conforming payload", func(t *testing.T) {
		raw := []byte(`{"role_title":"Engineer","required_skills":["Go"],"years":5}`)
		assert.NoError(t, ValidateAgainstSchema("parse_jd", testSchema(), raw))
	})

	t.Run("invalid json is a schema violation", func(t *testing.T) {
		err := ValidateAgainstSchema("parse_jd", testSchema(), []byte(`{"role_title":`))
		require.Error(t, err)
		assert.Equal(t, KindSchemaViolation, KindOf(err))
		assert.False(t, Retryable(err))
	})

	t.Run("missing required property", func(t *testing.T) {
		err := ValidateAgainstSchema("parse_jd", testSchema(), []byte(`{"role_title":"Engineer"}`))
		require.Error(t, err)
		assert.Equal(t, KindSchemaViolation, KindOf(err))
		assert.ErrorContains(t, err, "required_skills")
	})

	t.Run("wrong element type in array", func(t *testing.T) {
		raw := []byte(`{"role_title":"Engineer","required_skills":["Go",42]}`)
		err := ValidateAgainstSchema("parse_jd", testSchema(), raw)
		require.Error(t, err)
		assert.ErrorContains(t, err, "required_skills[1]")
	})

	t.Run("wrong top-level type", func(t *testing.T) {
		err := ValidateAgainstSchema("parse_jd", testSchema(), []byte(`[1,2,3]`))
		require.Error(t, err)
		assert.ErrorContains(t, err, "expected object")
	})

	t.Run("unknown extra properties pass", func(t *testing.T) {
		raw := []byte(`{"role_title":"Engineer","required_skills":[],"surprise":true}`)
		assert.NoError(t, ValidateAgainstSchema("parse_jd", testSchema(), raw))
	})
}

func TestValidateRerankSchema(t *testing.T) {
	raw := []byte(`{"candidates":[{"candidate_id":"res_1","llm_rerank_score":0.8,"meets_requirements":true}]}`)
	assert.NoError(t, ValidateAgainstSchema(SchemaNameRerank, RerankSchema(), raw))

	missing := []byte(`{"candidates":[{"candidate_id":"res_1"}]}`)
	assert.Error(t, ValidateAgainstSchema(SchemaNameRerank, RerankSchema(), missing))
}
