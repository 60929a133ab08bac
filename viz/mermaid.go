// Package viz renders compiled graphs for humans: Mermaid flowchart export
// and a colored terminal progress printer.
package viz

import (
	"fmt"
	"strings"

	"github.com/DeabLabs/cannoli-sub001/factory"
)

// MermaidOptions configures diagram generation.
type MermaidOptions struct {
	// Direction of the flowchart, e.g. "TD" or "LR". Defaults to "TD".
	Direction string
}

// Mermaid renders the graph as a top-down Mermaid flowchart.
func Mermaid(g *factory.Graph) string {
	return MermaidWithOptions(g, MermaidOptions{Direction: "TD"})
}

// MermaidWithOptions renders the graph as a Mermaid flowchart. Groups become
// subgraphs, nested the way they nest on the canvas; edges carry their
// variable name as a label and config/logging edges are drawn dotted.
func MermaidWithOptions(g *factory.Graph, opts MermaidOptions) string {
	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}

	var sb strings.Builder
	sb.WriteString("flowchart " + direction + "\n")

	// Top-level groups first, members nested inside them.
	for _, id := range g.SortedGroupIDs() {
		grp := g.Groups[id]
		if len(grp.Groups) == 0 {
			writeSubgraph(&sb, g, grp, 1)
		}
	}

	// Nodes not enclosed by any group.
	for _, id := range g.SortedNodeIDs() {
		n := g.Nodes[id]
		if len(n.Groups) == 0 {
			writeNode(&sb, n, 1)
		}
	}

	for _, id := range g.SortedEdgeIDs() {
		writeEdge(&sb, g.Edges[id])
	}

	// Dim floating nodes; they never execute.
	for _, id := range g.SortedNodeIDs() {
		if g.Nodes[id].Kind == factory.KindFloating {
			fmt.Fprintf(&sb, "    style %s stroke-dasharray: 5 5\n", mermaidID(id))
		}
	}

	return sb.String()
}

func writeSubgraph(sb *strings.Builder, g *factory.Graph, grp *factory.Group, depth int) {
	indent := strings.Repeat("    ", depth)
	title := grp.Label
	if title == "" {
		title = grp.ID
	}
	fmt.Fprintf(sb, "%ssubgraph %s[\"%s\"]\n", indent, mermaidID(grp.ID), escapeLabel(title))

	for _, id := range g.SortedGroupIDs() {
		child := g.Groups[id]
		if immediateParent(child.Groups) == grp.ID {
			writeSubgraph(sb, g, child, depth+1)
		}
	}
	for _, id := range g.SortedNodeIDs() {
		n := g.Nodes[id]
		if immediateParent(n.Groups) == grp.ID {
			writeNode(sb, n, depth+1)
		}
	}

	sb.WriteString(indent + "end\n")
}

func writeNode(sb *strings.Builder, n *factory.Node, depth int) {
	indent := strings.Repeat("    ", depth)
	label := escapeLabel(nodeLabel(n))
	id := mermaidID(n.ID)
	switch n.Kind {
	case factory.KindCall:
		fmt.Fprintf(sb, "%s%s([\"%s\"])\n", indent, id, label)
	case factory.KindFloating:
		fmt.Fprintf(sb, "%s%s[/\"%s\"/]\n", indent, id, label)
	default:
		fmt.Fprintf(sb, "%s%s[\"%s\"]\n", indent, id, label)
	}
}

func writeEdge(sb *strings.Builder, e *factory.Edge) {
	from, to := mermaidID(e.Source), mermaidID(e.Target)
	arrow := "-->"
	if e.Type == factory.EdgeConfig || e.Type == factory.EdgeLogging {
		arrow = "-.->"
	}
	if e.Name != "" {
		fmt.Fprintf(sb, "    %s %s|\"%s\"| %s\n", from, arrow, escapeLabel(e.Name), to)
		return
	}
	fmt.Fprintf(sb, "    %s %s %s\n", from, arrow, to)
}

// nodeLabel picks a short display label: the parsed name when the node has
// one, otherwise the first line of its text.
func nodeLabel(n *factory.Node) string {
	if n.Name != "" {
		return n.Name
	}
	line := n.Text
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return string(n.Type)
	}
	const max = 40
	if len(line) > max {
		line = line[:max] + "…"
	}
	return line
}

func immediateParent(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	return groups[0]
}

// mermaidID makes a canvas object ID safe for use as a Mermaid identifier.
func mermaidID(id string) string {
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
