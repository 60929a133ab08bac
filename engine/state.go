package engine

import (
	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/providers"
)

// liveNode is a node's runtime state. The compiled spec stays read-only; the
// run mutex guards every mutable field.
type liveNode struct {
	spec   *factory.Node
	status Status

	// text is the working text: the authored text with the [name] line
	// stripped, overridden by a run argument for input nodes.
	text string

	// result is the content the node produced, recorded on completion.
	result string

	// receiveInfo holds the first-phase response of a two-phase action.
	receiveInfo    string
	hasReceiveInfo bool

	// executions counts execute invocations across loop iterations.
	executions int
}

// liveEdge is an edge's runtime state. Content and messages are written by
// the source's completion before the status flips to complete, under the same
// lock, so readers of a complete edge always see its value.
type liveEdge struct {
	spec   *factory.Edge
	status Status

	// content is nil until the source loads a value.
	content  *string
	messages []providers.Message

	// versions carries the for-each iteration tags with headers filled in
	// from the iteration's item value at load time.
	versions []factory.Version

	// streamed marks a chat-response edge that received live chunks, so a
	// later load does not overwrite the formatted transcript.
	streamed bool
}

// liveGroup is a group's runtime state.
type liveGroup struct {
	spec   *factory.Group
	status Status

	// currentLoop counts finished iterations of a repeat group, or holds the
	// copy index of a group produced by for-each expansion.
	currentLoop int

	// itemValue is the list item delivered to a for-each copy.
	itemValue string
	hasItem   bool

	// looping guards the reset goroutine of a repeat group.
	looping bool
}

func (e *liveEdge) loaded() bool {
	return e.content != nil
}

func (e *liveEdge) value() string {
	if e.content == nil {
		return ""
	}
	return *e.content
}
