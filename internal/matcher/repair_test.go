package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/grant-matcher/internal/orchestrator"
)

func TestDecodeModelJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "strict json",
			input: `{"checklist_items": ["a", "b"]}`,
			want:  []string{"a", "b"},
		},
		{
			name:  "json wrapped in prose",
			input: "Here is the checklist:\n```json\n{\"checklist_items\": [\"a\"]}\n```\nLet me know.",
			want:  []string{"a"},
		},
		{
			name:  "truncated object",
			input: `{"checklist_items": ["a", "b"`,
			want:  []string{"a", "b"},
		},
		{
			name:  "truncated mid string",
			input: `{"checklist_items": ["a", "partial ite`,
			want:  []string{"a", "partial ite"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var parsed checklistResponse
			require.NoError(t, decodeModelJSON(tt.input, &parsed))
			assert.Equal(t, tt.want, parsed.Items)
		})
	}
}

func TestDecodeModelJSON_StructuralFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"no json at all", "I cannot produce a checklist for this grant."},
		{"mismatched closers", `{"checklist_items": ["a"]]`},
		{"empty reply", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var parsed checklistResponse
			err := decodeModelJSON(tt.input, &parsed)
			require.Error(t, err)
			assert.True(t, orchestrator.IsStructural(err), "repair failure must not be retried")
		})
	}
}

func TestDecodeModelJSON_DepthBound(t *testing.T) {
	t.Parallel()

	deep := ""
	for range [12]int{} {
		deep += `{"a": [`
	}

	var out map[string]any
	err := decodeModelJSON(deep, &out)
	require.Error(t, err)
	assert.True(t, orchestrator.IsStructural(err))
}
