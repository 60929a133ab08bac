package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/DeabLabs/cannoli-sub001/factory"
)

func versionedEdge(index int, header, content string, mod factory.EdgeModifier) *liveEdge {
	e := &liveEdge{
		spec:    &factory.Edge{Modifier: mod},
		status:  StatusComplete,
		content: &content,
	}
	h := header
	e.versions = []factory.Version{{Index: index, Header: &h}}
	return e
}

func TestMergeRenderTable(t *testing.T) {
	t.Parallel()
	r := &Run{}
	edges := []*liveEdge{
		versionedEdge(2, "second", "line one\nline two", factory.ModifierTable),
		versionedEdge(1, "first", "alpha", factory.ModifierTable),
	}

	got := r.mergeRender("col", edges)
	want := "| | col |\n" +
		"| --- | --- |\n" +
		"| first | alpha |\n" +
		"| second | line one<br>line two |"
	assert.Equal(t, want, got)
}

func TestMergeRenderHeadings(t *testing.T) {
	t.Parallel()
	r := &Run{}
	edges := []*liveEdge{
		versionedEdge(1, "Intro", "first body", factory.ModifierHeaders),
		versionedEdge(2, "Outro", "second body", factory.ModifierHeaders),
	}

	got := r.mergeRender("x", edges)
	assert.Equal(t, "# Intro\n\nfirst body\n\n# Outro\n\nsecond body", got)
}

func TestMergeRenderList(t *testing.T) {
	t.Parallel()
	r := &Run{}
	edges := []*liveEdge{
		versionedEdge(1, "a", "one", factory.ModifierList),
		versionedEdge(2, "b", "two", factory.ModifierList),
	}

	got := r.mergeRender("x", edges)
	assert.Equal(t, "- a\n    - one\n- b\n    - two", got)
}

func TestMergeRenderDefaultParagraphs(t *testing.T) {
	t.Parallel()
	r := &Run{}
	edges := []*liveEdge{
		versionedEdge(2, "", "beta", factory.ModifierNone),
		versionedEdge(1, "", "alpha", factory.ModifierNone),
	}

	assert.Equal(t, "alpha\n\nbeta", r.mergeRender("x", edges))
}

func TestMergeRenderSkipsUnloadedPeers(t *testing.T) {
	t.Parallel()
	r := &Run{}
	dead := versionedEdge(1, "a", "gone", factory.ModifierNone)
	dead.status = StatusRejected
	edges := []*liveEdge{
		dead,
		versionedEdge(2, "b", "kept", factory.ModifierNone),
	}

	assert.Equal(t, "kept", r.mergeRender("x", edges))
}

func TestSplitListItems(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"bullets", "- a\n- b\n- c", []string{"a", "b", "c"}},
		{"stars", "* a\n* b", []string{"a", "b"}},
		{"numbered", "1. one\n2. two", []string{"one", "two"}},
		{"plain lines", "x\ny", []string{"x", "y"}},
		{"blank lines skipped", "- a\n\n- b", []string{"a", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, splitListItems(tc.in))
		})
	}
}

func TestPickListItemOutOfRange(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "b", pickListItem("- a\n- b", 2))
	assert.Equal(t, "", pickListItem("- a\n- b", 3))
	assert.Equal(t, "", pickListItem("- a\n- b", 0))
}

func TestDepSlotLabeledPeers(t *testing.T) {
	t.Parallel()
	grouped := depSlot{grouped: true, statuses: []Status{StatusRejected, StatusComplete}}
	assert.True(t, grouped.satisfied())
	assert.False(t, grouped.dead())

	allDead := depSlot{grouped: true, statuses: []Status{StatusRejected, StatusError}}
	assert.False(t, allDead.satisfied())
	assert.True(t, allDead.dead())
}

func TestDepSlotVersionedJoin(t *testing.T) {
	t.Parallel()
	waiting := depSlot{grouped: true, versioned: true,
		statuses: []Status{StatusComplete, StatusPending}}
	assert.False(t, waiting.satisfied())

	settled := depSlot{grouped: true, versioned: true,
		statuses: []Status{StatusComplete, StatusRejected}}
	assert.True(t, settled.satisfied())

	warningCounts := depSlot{grouped: false, statuses: []Status{StatusWarning}}
	assert.True(t, warningCounts.satisfied())
}
