package engine

import (
	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/providers"
)

// nodeOutput is what one execute produced, applied to the graph under the
// lock by commit.
type nodeOutput struct {
	content  string
	messages []providers.Message

	// routed overrides content per outgoing-edge label (form fields, routed
	// action results, sub-cannoli results).
	routed map[string]string

	// perEdge overrides content per outgoing-edge ID (reference nodes emit
	// names, paths or property values depending on the edge's modifier).
	perEdge map[string]string

	// rejectChoices lists choice-edge labels a choose node did not select.
	rejectChoices map[string]bool

	// warning makes the node terminal in warning instead of complete.
	warning string

	cost float64
}

// executeNode runs one node's behavior. It is the only engine code that runs
// on its own goroutine; everything it touches is either snapshotted under the
// lock or external I/O.
func (r *Run) executeNode(id string) {
	defer r.finishExecution()

	r.mu.Lock()
	n := r.nodes[id]
	if n == nil || n.status != StatusExecuting || r.finished || r.stopped {
		r.mu.Unlock()
		return
	}
	n.executions++
	r.mu.Unlock()

	var out nodeOutput
	var err error
	if n.spec.Kind == factory.KindCall {
		out, err = r.executeCall(n)
	} else {
		switch n.spec.Type {
		case factory.NodeFormatter:
			out, err = r.executeFormatter(n)
		case factory.NodeReference:
			out, err = r.executeReference(n)
		case factory.NodeHTTP:
			out, err = r.executeHTTP(n)
		case factory.NodeSearch:
			out, err = r.executeSearch(n)
		case factory.NodeSubCannoli:
			out, err = r.executeSubCannoli(n)
		default:
			out, err = r.executeContent(n)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished || r.stopped || n.status != StatusExecuting {
		return
	}
	if err != nil {
		r.reportError(id, err.Error())
		r.setNodeStatus(n, StatusError)
		return
	}
	r.commit(n, out)
}

// commit publishes a node's output: every outgoing edge is loaded before the
// node's status flips, so dependents that become ready always see the values.
// Must be called with the lock held.
func (r *Run) commit(n *liveNode, out nodeOutput) {
	n.result = out.content
	r.cost += out.cost

	for _, spec := range r.graph.OutgoingEdges(n.spec.ID) {
		e := r.edges[spec.ID]
		if spec.Type == factory.EdgeChoice && out.rejectChoices != nil && out.rejectChoices[spec.Name] {
			r.setEdgeStatus(e, StatusRejected)
			continue
		}
		if spec.Type == factory.EdgeLogging {
			r.loadEdge(e, r.loggingRecord(n, out.messages, out.content), nil)
			continue
		}
		content := out.content
		if v, ok := out.routed[spec.Name]; ok {
			content = v
		}
		if v, ok := out.perEdge[spec.ID]; ok {
			content = v
		}
		r.loadEdge(e, content, out.messages)
	}

	st := StatusComplete
	if out.warning != "" {
		r.warn(n.spec.ID, out.warning)
		st = StatusWarning
	}
	r.setNodeStatus(n, st)
}
