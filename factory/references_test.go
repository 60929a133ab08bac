package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlaceholder(t *testing.T) {
	t.Parallel()
	cases := []struct {
		inner string
		want  Reference
	}{
		{"question", Reference{Type: RefVariable, Name: "question"}},
		{"[[My Note]]", Reference{Type: RefNote, Name: "My Note"}},
		{"[template]", Reference{Type: RefFloating, Name: "template"}},
		{"@noteVar", Reference{Type: RefDynamic, Name: "noteVar"}},
		{"+@newNote", Reference{Type: RefCreateNote, Name: "newNote"}},
		{"NOTE", Reference{Type: RefNoteName, Name: "NOTE"}},
		{"SELECTION", Reference{Type: RefSelection, Name: "SELECTION"}},
		{"#", Reference{Type: RefLoopIndex, Depth: 1}},
		{"###", Reference{Type: RefLoopIndex, Depth: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.inner, func(t *testing.T) {
			t.Parallel()
			ref, ok := ParsePlaceholder(tc.inner)
			require.True(t, ok)
			assert.Equal(t, tc.want, ref)
		})
	}

	for _, bad := range []string{"", "  ", "[[]]", "[]", "@", "+@"} {
		_, ok := ParsePlaceholder(bad)
		assert.False(t, ok, "placeholder %q should not parse", bad)
	}
}

func TestParseReferencesInOrder(t *testing.T) {
	t.Parallel()
	refs := ParseReferences("Read {{[[Note]]}} then answer {{question}} on loop {{#}}")
	require.Len(t, refs, 3)
	assert.Equal(t, RefNote, refs[0].Type)
	assert.Equal(t, RefVariable, refs[1].Type)
	assert.Equal(t, RefLoopIndex, refs[2].Type)
}

func TestSubstituteReferencesLeavesUnresolvedLiteral(t *testing.T) {
	t.Parallel()
	got := SubstituteReferences("{{known}} and {{unknown}}", func(ref Reference) (string, bool) {
		if ref.Name == "known" {
			return "value", true
		}
		return "", false
	})
	assert.Equal(t, "value and {{unknown}}", got)
}

func TestIsSoleReference(t *testing.T) {
	t.Parallel()
	ref, ok := IsSoleReference("  {{[[Target]]}}  ")
	require.True(t, ok)
	assert.Equal(t, RefNote, ref.Type)
	assert.Equal(t, "Target", ref.Name)

	_, ok = IsSoleReference("{{a}} {{b}}")
	assert.False(t, ok)

	_, ok = IsSoleReference("prefix {{a}}")
	assert.False(t, ok)

	_, ok = IsSoleReference("{{a}}\nmore")
	assert.False(t, ok)
}
