package viz

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeabLabs/cannoli-sub001/factory"
)

func testGraph() *factory.Graph {
	return &factory.Graph{
		Nodes: map[string]*factory.Node{
			"in":    {ID: "in", Kind: factory.KindContent, Type: factory.NodeInput, Name: "question"},
			"call":  {ID: "call", Kind: factory.KindCall, Type: factory.NodeCall, Text: "{{question}}", Groups: []string{"g"}},
			"out":   {ID: "out", Kind: factory.KindContent, Type: factory.NodeOutput, Name: "answer"},
			"float": {ID: "float", Kind: factory.KindFloating, Type: factory.NodeVariable, Name: "tmpl"},
		},
		Edges: map[string]*factory.Edge{
			"e1": {ID: "e1", Type: factory.EdgeVariable, Source: "in", Target: "call", Name: "question"},
			"e2": {ID: "e2", Type: factory.EdgeWrite, Source: "call", Target: "out"},
			"e3": {ID: "e3", Type: factory.EdgeConfig, Source: "in", Target: "call", Name: "model"},
		},
		Groups: map[string]*factory.Group{
			"g": {ID: "g", Type: factory.GroupRepeat, Label: "3", Members: []string{"call"}},
		},
	}
}

func TestMermaidStructure(t *testing.T) {
	t.Parallel()
	out := Mermaid(testGraph())

	assert.Contains(t, out, "flowchart TD\n")
	assert.Contains(t, out, `subgraph g["3"]`)
	assert.Contains(t, out, `call(["{{question}}"])`)
	assert.Contains(t, out, `in["question"]`)
	assert.Contains(t, out, `float[/"tmpl"/]`)
	assert.Contains(t, out, `in -->|"question"| call`)
	assert.Contains(t, out, "call --> out")
	assert.Contains(t, out, `in -.->|"model"| call`)
	assert.Contains(t, out, "style float stroke-dasharray: 5 5")

	// The grouped node renders inside the subgraph block.
	assert.Less(t, indexOf(out, "subgraph g"), indexOf(out, `call([`))
	assert.Less(t, indexOf(out, `call([`), indexOf(out, "end\n"))
}

func TestMermaidDirectionOption(t *testing.T) {
	t.Parallel()
	out := MermaidWithOptions(testGraph(), MermaidOptions{Direction: "LR"})
	assert.Contains(t, out, "flowchart LR\n")
}

func TestMermaidEscapesLabels(t *testing.T) {
	t.Parallel()
	g := &factory.Graph{
		Nodes: map[string]*factory.Node{
			"a-b": {ID: "a-b", Kind: factory.KindContent, Type: factory.NodeContent, Text: "say \"hi\"\nsecond line"},
		},
		Edges:  map[string]*factory.Edge{},
		Groups: map[string]*factory.Group{},
	}
	out := Mermaid(g)
	assert.Contains(t, out, `a_b["say &quot;hi&quot;"]`)
	assert.NotContains(t, out, "second line")
}

func TestProgressPrintsTransitions(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	p := NewProgress(&buf)
	ctx := context.Background()

	require.NoError(t, p.Start(ctx, testGraph()))
	require.NoError(t, p.EditNode(ctx, "call", "pending"))
	require.NoError(t, p.EditNode(ctx, "call", "complete"))
	require.NoError(t, p.EditEdge(ctx, "e1", "complete"))
	require.NoError(t, p.AddWarning(ctx, "out", "note missing"))
	require.NoError(t, p.EditParallelGroupLabel(ctx, "g", "2/3"))

	out := buf.String()
	// Pending transitions and edges stay silent.
	assert.NotContains(t, out, "pending")
	assert.NotContains(t, out, "e1")
	assert.Contains(t, out, "{{question}}")
	assert.Contains(t, out, "note missing")
	assert.Contains(t, out, "2/3")
}

func indexOf(s, sub string) int {
	return bytes.Index([]byte(s), []byte(sub))
}
