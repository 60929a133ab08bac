package factory

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DeabLabs/cannoli-sub001/canvas"
)

// ErrEmptyCanvas is returned when the canvas holds nothing to compile.
var ErrEmptyCanvas = errors.New("factory: canvas has no nodes")

// Compile transforms a canvas into a verified graph. Per-object problems
// (overlap, bad loop labels, illegal topology) are recorded as compile
// errors on the offending objects; only a structurally unusable canvas
// returns an error.
func Compile(c *canvas.Data, opts Options) (*Graph, error) {
	if c == nil || len(c.Nodes) == 0 {
		return nil, ErrEmptyCanvas
	}

	g := &Graph{
		Nodes:  make(map[string]*Node),
		Edges:  make(map[string]*Edge),
		Groups: make(map[string]*Group),
		Canvas: c,
	}

	rawEdges := expandMultiLabelEdges(c.Edges)
	incident := incidentCounts(rawEdges)

	// Groups first so vertex classification can see them.
	for _, n := range c.Nodes {
		if n.Type != canvas.NodeTypeGroup {
			continue
		}
		groupType, maxLoops, ok := ParseGroupLabel(n.Label)
		grp := &Group{
			ID:       n.ID,
			Type:     groupType,
			Label:    n.Label,
			MaxLoops: maxLoops,
			Rect:     n.Rect(),
		}
		if !ok {
			grp.CompileError = fmt.Sprintf("invalid loop label %q", n.Label)
			grp.Type = GroupBasic
		}
		g.Groups[n.ID] = grp
	}

	// Indicated node kinds drive edge heuristics; final subtypes need the
	// classified edges, so nodes are finished in a second pass.
	kinds := make(map[string]NodeKind)
	for _, n := range c.Nodes {
		if n.Type == canvas.NodeTypeGroup {
			continue
		}
		kinds[n.ID] = indicatedKind(n, incident[n.ID], opts)
	}

	classifyEdges(g, rawEdges, kinds)
	classifyNodes(g, c, incident, kinds)

	computeMembership(g)
	validateTopology(g)
	expandForEachGroups(g)
	computeCrossings(g)
	computeDependencies(g)
	validateAcyclic(g)

	return g, nil
}

// expandMultiLabelEdges is step A: an edge labeled with several lines
// becomes one edge per line.
func expandMultiLabelEdges(edges []*canvas.Edge) []*canvas.Edge {
	var out []*canvas.Edge
	for _, e := range edges {
		if !strings.Contains(e.Label, "\n") {
			out = append(out, e)
			continue
		}
		for _, line := range strings.Split(e.Label, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			dup := *e
			dup.ID = fmt.Sprintf("%s-%s", e.ID, line)
			dup.Label = line
			out = append(out, &dup)
		}
	}
	return out
}

func incidentCounts(edges []*canvas.Edge) map[string]int {
	counts := make(map[string]int)
	for _, e := range edges {
		counts[e.FromNode]++
		counts[e.ToNode]++
	}
	return counts
}

// indicatedKind is the coarse call/content/floating classification used
// before edges are typed.
func indicatedKind(n *canvas.Node, incidentEdges int, opts Options) NodeKind {
	if incidentEdges == 0 {
		if _, _, ok := ParseNodeName(n.Text); ok {
			return KindFloating
		}
	}
	if n.Type == canvas.NodeTypeFile || n.Type == canvas.NodeTypeLink {
		return KindContent
	}
	if isFormatterText(n.Text) {
		return KindContent
	}
	if _, ok := IsSoleReference(n.Text); ok {
		return KindContent
	}
	if n.Color == nodeColorHTTP || n.Color == nodeColorSearch {
		return KindContent
	}
	return nodeKindFromColor(n.Color, opts.ContentIsColorless)
}

// nodeColorSearch marks a text node as a search node.
const nodeColorSearch = "3"

func isFormatterText(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, `""`) && strings.HasSuffix(trimmed, `""`) &&
		len(trimmed) > 4
}

// classifyEdges is step C.
func classifyEdges(g *Graph, rawEdges []*canvas.Edge, kinds map[string]NodeKind) {
	for _, e := range rawEdges {
		edge := &Edge{
			ID:     e.ID,
			Source: e.FromNode,
			Target: e.ToNode,
		}
		parsed := ParseEdgeLabel(e.Label)
		edge.Name = parsed.Name
		edge.Modifier = parsed.Modifier

		switch {
		case colorType(e.Color, edge):
		case parsed.Type != "":
			edge.Type = parsed.Type
		case parsed.Name != "":
			edge.Type = EdgeVariable
		default:
			edge.Type = heuristicType(g, e, kinds)
		}

		// A transcript edge pointed at content renders the stream instead of
		// converting it.
		if edge.Type == EdgeChatConverter && kinds[e.ToNode] == KindContent {
			edge.Type = EdgeChatResponse
		}
		// A config edge with nothing to configure collects the run log.
		if edge.Type == EdgeConfig && edge.Name == "" {
			edge.Type = EdgeLogging
		}

		edge.AddMessages = defaultAddMessages(edge.Type)
		if parsed.AddMessages != nil {
			edge.AddMessages = *parsed.AddMessages
		}
		g.Edges[edge.ID] = edge
	}
}

func colorType(color string, edge *Edge) bool {
	t, ok := edgeTypeFromColor(color)
	if ok {
		edge.Type = t
	}
	return ok
}

func heuristicType(g *Graph, e *canvas.Edge, kinds map[string]NodeKind) EdgeType {
	_, fromGroup := g.Groups[e.FromNode]
	_, toGroup := g.Groups[e.ToNode]
	if fromGroup || toGroup {
		return EdgeChat
	}
	from, to := kinds[e.FromNode], kinds[e.ToNode]
	switch {
	case from == KindContent && to == KindContent:
		return EdgeWrite
	case from == KindContent && to == KindCall:
		return EdgeSystemMessage
	case from == KindCall && to == KindContent:
		return EdgeWrite
	default:
		return EdgeChat
	}
}

func defaultAddMessages(t EdgeType) bool {
	switch t {
	case EdgeChat, EdgeChatConverter, EdgeChatResponse, EdgeSystemMessage:
		return true
	default:
		return false
	}
}

// classifyNodes is step B, finished after edges exist.
func classifyNodes(g *Graph, c *canvas.Data, incident map[string]int, kinds map[string]NodeKind) {
	for _, n := range c.Nodes {
		if n.Type == canvas.NodeTypeGroup {
			continue
		}
		node := &Node{
			ID:   n.ID,
			Kind: kinds[n.ID],
			Text: n.Text,
			Rect: n.Rect(),
		}

		switch node.Kind {
		case KindFloating:
			name, rest, _ := ParseNodeName(n.Text)
			node.Type = NodeVariable
			node.Name = name
			node.Text = rest
		case KindContent:
			node.Type = contentType(g, n, incident)
			if node.Type == NodeInput || node.Type == NodeOutput {
				if name, rest, ok := ParseNodeName(n.Text); ok {
					if IsReservedName(name) {
						node.CompileError = fmt.Sprintf("reserved name %q", name)
					}
					node.Name = name
					node.Text = rest
				}
			}
			if node.Type == NodeFormatter {
				node.Text = stripFormatterMarkers(n.Text)
			}
			if n.Type == canvas.NodeTypeFile {
				node.Text = n.File
			}
			if n.Type == canvas.NodeTypeLink {
				node.Text = n.URL
			}
		case KindCall:
			node.Type = callType(g, n.ID)
		}

		node.References = ParseReferences(node.Text)
		g.Nodes[node.ID] = node
	}
}

func contentType(g *Graph, n *canvas.Node, incident map[string]int) NodeType {
	if n.Type == canvas.NodeTypeFile || n.Type == canvas.NodeTypeLink {
		if strings.HasSuffix(n.File, ".canvas") || strings.HasSuffix(n.URL, ".canvas") {
			return NodeSubCannoli
		}
		return NodeReference
	}
	if n.Color == nodeColorHTTP {
		return NodeHTTP
	}
	if n.Color == nodeColorSearch {
		return NodeSearch
	}
	if isFormatterText(n.Text) {
		return NodeFormatter
	}
	if ref, ok := IsSoleReference(n.Text); ok {
		if ref.Type == RefNote && strings.HasSuffix(ref.Name, ".canvas") {
			return NodeSubCannoli
		}
		return NodeReference
	}
	incoming, outgoing := 0, 0
	for _, e := range g.Edges {
		if e.Target == n.ID {
			incoming++
		}
		if e.Source == n.ID {
			outgoing++
		}
	}
	switch {
	case incoming == 0:
		return NodeInput
	case outgoing == 0:
		return NodeOutput
	default:
		return NodeContent
	}
}

// callType is computed from the outgoing edge majority: field edges make a
// form node, otherwise choice edges make a choose node.
func callType(g *Graph, id string) NodeType {
	hasChoice := false
	for _, e := range g.Edges {
		if e.Source != id {
			continue
		}
		switch e.Type {
		case EdgeField:
			return NodeForm
		case EdgeChoice:
			hasChoice = true
		}
	}
	if hasChoice {
		return NodeChoose
	}
	return NodeCall
}

func stripFormatterMarkers(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, `""`)
	trimmed = strings.TrimSuffix(trimmed, `""`)
	return strings.TrimSpace(trimmed)
}

// computeMembership is step D: geometric group containment.
func computeMembership(g *Graph) {
	type vertex struct {
		id   string
		rect canvas.Rect
	}
	var vertices []vertex
	for _, id := range g.SortedNodeIDs() {
		vertices = append(vertices, vertex{id, g.Nodes[id].Rect})
	}
	for _, id := range g.SortedGroupIDs() {
		vertices = append(vertices, vertex{id, g.Groups[id].Rect})
	}

	for _, v := range vertices {
		var enclosing []string
		for _, gid := range g.SortedGroupIDs() {
			grp := g.Groups[gid]
			if gid == v.id {
				continue
			}
			if grp.Rect.Encloses(v.rect) {
				enclosing = append(enclosing, gid)
			}
		}
		// Immediate parent first.
		sort.Slice(enclosing, func(i, j int) bool {
			return g.Groups[enclosing[i]].Rect.Area() < g.Groups[enclosing[j]].Rect.Area()
		})
		if n, ok := g.Nodes[v.id]; ok {
			n.Groups = enclosing
		} else {
			g.Groups[v.id].Groups = enclosing
		}
		for _, gid := range enclosing {
			g.Groups[gid].Members = append(g.Groups[gid].Members, v.id)
		}
	}
	for _, gid := range g.SortedGroupIDs() {
		sort.Strings(g.Groups[gid].Members)
	}
}

// computeCrossings is step E: for each edge, the ordered group sets it
// leaves and enters when walked source to target.
func computeCrossings(g *Graph) {
	for _, eid := range g.SortedEdgeIDs() {
		e := g.Edges[eid]
		sourceGroups := g.EnclosingGroups(e.Source)
		targetGroups := g.EnclosingGroups(e.Target)

		shared := -1
		sharedTarget := -1
		for i, sg := range sourceGroups {
			for j, tg := range targetGroups {
				if sg == tg {
					shared, sharedTarget = i, j
					break
				}
			}
			if shared >= 0 {
				break
			}
		}

		var crossingOut, crossingIn []string
		if shared >= 0 {
			crossingOut = append(crossingOut, sourceGroups[:shared]...)
			crossingIn = reversed(targetGroups[:sharedTarget])
		} else {
			crossingOut = append(crossingOut, sourceGroups...)
			crossingIn = reversed(targetGroups)
		}

		// A group edge to or from its own member starts or ends on the
		// boundary: the group itself is not crossed.
		if _, ok := g.Groups[e.Source]; ok && contains(g.EnclosingGroups(e.Target), e.Source) {
			e.IsReflexive = true
			crossingIn = without(crossingIn, e.Source)
		}
		if _, ok := g.Groups[e.Target]; ok && contains(g.EnclosingGroups(e.Source), e.Target) {
			e.IsReflexive = true
			crossingOut = without(crossingOut, e.Target)
		}

		e.CrossingOut = crossingOut
		e.CrossingIn = crossingIn
	}
}

func reversed(s []string) []string {
	out := make([]string, 0, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		out = append(out, s[i])
	}
	return out
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// without removes v from s, preserving order.
func without(s []string, v string) []string {
	var out []string
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

// computeDependencies is step G.
func computeDependencies(g *Graph) {
	for _, eid := range g.SortedEdgeIDs() {
		e := g.Edges[eid]
		e.Dependencies = append([]string{e.Source}, e.CrossingOut...)
	}

	vertexDeps := func(id string, groups []string) []string {
		var deps []string
		for _, in := range g.IncomingEdges(id) {
			// Reflexive edges carry loop feedback; gating on them would
			// deadlock the body they feed.
			if in.IsReflexive {
				continue
			}
			deps = append(deps, in.ID)
		}
		for _, gid := range groups {
			for _, in := range g.IncomingEdges(gid) {
				// A group's own reflexive edges would deadlock its body.
				if in.IsReflexive {
					continue
				}
				deps = append(deps, in.ID)
			}
		}
		return deps
	}

	for _, nid := range g.SortedNodeIDs() {
		n := g.Nodes[nid]
		if n.Kind == KindFloating {
			continue
		}
		n.Dependencies = vertexDeps(nid, n.Groups)
	}
	for _, gid := range g.SortedGroupIDs() {
		grp := g.Groups[gid]
		grp.Dependencies = vertexDeps(gid, grp.Groups)
		// Completion of the body is detected through member dependencies.
		grp.Dependencies = append(grp.Dependencies, grp.Members...)
	}
}
