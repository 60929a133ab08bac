// Package factory compiles a raw 2-D canvas into a verified, typed
// dependency graph. Compilation is a one-shot pure transformation: it infers
// node, edge and group kinds from colors, labels and prefixes, computes
// geometric group membership and per-edge crossing sets, expands for-each
// groups into indexed copies, and populates dependency sets. Invalid objects
// are kept in the graph carrying a compile error rather than failing the
// whole canvas.
package factory

import (
	"sort"

	"github.com/DeabLabs/cannoli-sub001/canvas"
)

// NodeKind is the coarse class of a node.
type NodeKind string

const (
	KindCall     NodeKind = "call"
	KindContent  NodeKind = "content"
	KindFloating NodeKind = "floating"
)

// NodeType is the fine-grained node subtype.
type NodeType string

const (
	// Call subtypes.
	NodeCall   NodeType = "call"
	NodeChoose NodeType = "choose"
	NodeForm   NodeType = "form"

	// Content subtypes.
	NodeContent    NodeType = "content"
	NodeInput      NodeType = "input"
	NodeOutput     NodeType = "output"
	NodeReference  NodeType = "reference"
	NodeFormatter  NodeType = "formatter"
	NodeHTTP       NodeType = "http"
	NodeSearch     NodeType = "search"
	NodeSubCannoli NodeType = "subcannoli"

	// Floating subtype.
	NodeVariable NodeType = "variable"
)

// EdgeType classifies an edge's loading behavior.
type EdgeType string

const (
	EdgeChat          EdgeType = "chat"
	EdgeChatConverter EdgeType = "chat-converter"
	EdgeChatResponse  EdgeType = "chat-response"
	EdgeSystemMessage EdgeType = "system-message"
	EdgeWrite         EdgeType = "write"
	EdgeVariable      EdgeType = "variable"
	EdgeField         EdgeType = "field"
	EdgeList          EdgeType = "list"
	EdgeItem          EdgeType = "item"
	EdgeChoice        EdgeType = "choice"
	EdgeConfig        EdgeType = "config"
	EdgeLogging       EdgeType = "logging"
)

// GroupType classifies a group's iteration semantics.
type GroupType string

const (
	GroupBasic GroupType = "basic"
	GroupRepeat GroupType = "repeat"
	// GroupForEach marks a group signified for for-each expansion. None
	// survive compilation; expansion replaces them with indexed basic groups.
	GroupForEach GroupType = "forEach"
)

// EdgeModifier refines how an edge's value is produced or rendered.
type EdgeModifier string

const (
	ModifierNone     EdgeModifier = ""
	ModifierNote     EdgeModifier = "note"
	ModifierFolder   EdgeModifier = "folder"
	ModifierProperty EdgeModifier = "property"
	ModifierList     EdgeModifier = "list"
	ModifierHeaders  EdgeModifier = "headers"
	ModifierTable    EdgeModifier = "table"
)

// Version tags an edge copy produced by for-each expansion, outermost group
// first. Headers are filled at load time from the iteration's item value.
type Version struct {
	Index     int
	Header    *string
	SubHeader *string
}

// Node is a compiled node.
type Node struct {
	ID   string
	Kind NodeKind
	Type NodeType
	Text string
	// Name is the parsed [name] of an input, output or floating node.
	Name       string
	References []Reference
	// Groups lists enclosing group IDs, immediate parent first.
	Groups       []string
	Dependencies []string
	Rect         canvas.Rect
	CompileError string
}

// Edge is a compiled edge.
type Edge struct {
	ID     string
	Type   EdgeType
	Source string
	Target string
	// Name is the cleaned label: prefix and suffix markers stripped.
	Name        string
	CrossingIn  []string
	CrossingOut []string
	AddMessages bool
	IsReflexive bool
	Modifier    EdgeModifier
	// Versions is non-nil only on edges duplicated out of a for-each group.
	Versions     []Version
	Dependencies []string
	CompileError string
}

// Group is a compiled group.
type Group struct {
	ID    string
	Type  GroupType
	Label string
	// Members lists directly and transitively enclosed vertex IDs.
	Members  []string
	MaxLoops int
	// CurrentLoop is the starting iteration: 0 for repeat groups, the copy
	// index for groups produced by for-each expansion.
	CurrentLoop int
	FromForEach bool
	// OriginalObject is the for-each group this copy came from.
	OriginalObject string
	Groups         []string
	Dependencies   []string
	Rect           canvas.Rect
	CompileError   string
}

// Graph is the verified output of Compile.
type Graph struct {
	Nodes  map[string]*Node
	Edges  map[string]*Edge
	Groups map[string]*Group

	// Canvas is the snapshot compilation ran against; the persistor mirrors
	// statuses back onto it.
	Canvas *canvas.Data
}

// SortedNodeIDs returns node IDs in deterministic order.
func (g *Graph) SortedNodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortedEdgeIDs returns edge IDs in deterministic order.
func (g *Graph) SortedEdgeIDs() []string {
	ids := make([]string, 0, len(g.Edges))
	for id := range g.Edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SortedGroupIDs returns group IDs in deterministic order.
func (g *Graph) SortedGroupIDs() []string {
	ids := make([]string, 0, len(g.Groups))
	for id := range g.Groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IncomingEdges returns the edges targeting the given vertex.
func (g *Graph) IncomingEdges(id string) []*Edge {
	var out []*Edge
	for _, eid := range g.SortedEdgeIDs() {
		if e := g.Edges[eid]; e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

// OutgoingEdges returns the edges originating at the given vertex.
func (g *Graph) OutgoingEdges(id string) []*Edge {
	var out []*Edge
	for _, eid := range g.SortedEdgeIDs() {
		if e := g.Edges[eid]; e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// EnclosingGroups returns the group list (immediate-first) of a vertex, be
// it node or group.
func (g *Graph) EnclosingGroups(id string) []string {
	if n, ok := g.Nodes[id]; ok {
		return n.Groups
	}
	if grp, ok := g.Groups[id]; ok {
		return grp.Groups
	}
	return nil
}

// Options tunes compilation.
type Options struct {
	// ContentIsColorless flips the default kind of uncolored text nodes from
	// call to content.
	ContentIsColorless bool
}
