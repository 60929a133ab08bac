// Package canvas defines the JSON Canvas schema that cannoli flows are
// authored in. The engine reads geometry, color, type, text and edge
// endpoints; every other key is preserved verbatim so a canvas can round-trip
// through a run without losing host-application data.
package canvas

import (
	"encoding/json"
	"fmt"
)

// NodeType is the canvas-level type of a node.
type NodeType string

const (
	NodeTypeText  NodeType = "text"
	NodeTypeFile  NodeType = "file"
	NodeTypeLink  NodeType = "link"
	NodeTypeGroup NodeType = "group"
)

// EdgeEnd describes the arrow style of an edge endpoint.
type EdgeEnd string

const (
	EdgeEndNone  EdgeEnd = "none"
	EdgeEndArrow EdgeEnd = "arrow"
)

// Node is a raw canvas node. Exactly one of Text, File, URL or Label is
// meaningful depending on Type.
type Node struct {
	ID     string   `json:"id"`
	Type   NodeType `json:"type"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
	Color  string   `json:"color,omitempty"`
	Text   string   `json:"text,omitempty"`
	File   string   `json:"file,omitempty"`
	URL    string   `json:"url,omitempty"`
	Label  string   `json:"label,omitempty"`

	extra map[string]json.RawMessage
}

// Edge is a raw canvas edge between two nodes.
type Edge struct {
	ID       string  `json:"id"`
	FromNode string  `json:"fromNode"`
	FromSide string  `json:"fromSide,omitempty"`
	FromEnd  EdgeEnd `json:"fromEnd,omitempty"`
	ToNode   string  `json:"toNode"`
	ToSide   string  `json:"toSide,omitempty"`
	ToEnd    EdgeEnd `json:"toEnd,omitempty"`
	Color    string  `json:"color,omitempty"`
	Label    string  `json:"label,omitempty"`

	extra map[string]json.RawMessage
}

// Data is a full canvas: the node and edge lists plus cannoli metadata.
// Settings and Args are written by the authoring tool and consulted by the
// run entry point.
type Data struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`

	Settings map[string]any    `json:"settings,omitempty"`
	Args     map[string]string `json:"args,omitempty"`

	extra map[string]json.RawMessage
}

// Parse decodes canvas JSON. Unknown keys on the canvas, its nodes and its
// edges survive a later Marshal.
func Parse(data []byte) (*Data, error) {
	var c Data
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("canvas: invalid JSON: %w", err)
	}
	return &c, nil
}

// Marshal encodes the canvas back to JSON, restoring preserved unknown keys.
func (c *Data) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Node returns the node with the given id, or nil.
func (c *Data) Node(id string) *Node {
	for _, n := range c.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Edge returns the edge with the given id, or nil.
func (c *Data) Edge(id string) *Edge {
	for _, e := range c.Edges {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Rect is an axis-aligned rectangle in canvas coordinates.
type Rect struct {
	X, Y, W, H float64
}

// Rect returns the node's rectangle.
func (n *Node) Rect() Rect {
	return Rect{X: n.X, Y: n.Y, W: n.Width, H: n.Height}
}

// Encloses reports whether r strictly encloses other: every point of other
// lies inside r and the rectangles are not identical.
func (r Rect) Encloses(other Rect) bool {
	if r == other {
		return false
	}
	return r.X <= other.X && r.Y <= other.Y &&
		r.X+r.W >= other.X+other.W && r.Y+r.H >= other.Y+other.H
}

// Overlaps reports whether r and other share area without one enclosing the
// other. Partial overlap is a compile error for groups.
func (r Rect) Overlaps(other Rect) bool {
	if r.Encloses(other) || other.Encloses(r) || r == other {
		return false
	}
	return r.X < other.X+other.W && other.X < r.X+r.W &&
		r.Y < other.Y+other.H && other.Y < r.Y+r.H
}

// Area returns the rectangle's area.
func (r Rect) Area() float64 {
	return r.W * r.H
}
