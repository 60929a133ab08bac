package engine

import (
	"encoding/json"
	"strconv"

	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/providers"
)

// Variable resolution and config overlay. Every helper here requires the run
// lock: values are read off completed edges, which only mutate under it.

// valueEdges returns the edges a node can read variables from: its own
// incoming edges plus each enclosing group's, nearer scopes first, minus
// logging, write and config edges.
func (r *Run) valueEdges(n *liveNode) []*liveEdge {
	var out []*liveEdge
	appendFrom := func(id string) {
		for _, spec := range r.graph.IncomingEdges(id) {
			switch spec.Type {
			case factory.EdgeLogging, factory.EdgeWrite, factory.EdgeConfig, factory.EdgeList:
				continue
			}
			out = append(out, r.edges[spec.ID])
		}
	}
	appendFrom(n.spec.ID)
	for _, gid := range n.spec.Groups {
		appendFrom(gid)
	}
	return out
}

// lookupVariable resolves a {{name}} against available value edges. When
// several edges share the name, reflexive edges win: they carry loop
// feedback, which shadows the value that entered the group.
func (r *Run) lookupVariable(n *liveNode, name string) (string, bool) {
	var reflexive, plain []*liveEdge
	for _, e := range r.valueEdges(n) {
		if e.spec.Name != name || !e.status.Satisfied() || !e.loaded() {
			continue
		}
		if e.spec.IsReflexive {
			reflexive = append(reflexive, e)
		} else {
			plain = append(plain, e)
		}
	}
	for _, e := range reflexive {
		if e.value() != "" {
			return e.value(), true
		}
	}
	if len(reflexive) > 0 {
		return reflexive[0].value(), true
	}
	if len(plain) > 0 {
		return plain[0].value(), true
	}
	return "", false
}

// loopIndex resolves {{#}}, {{##}}, ...: depth 1 is the innermost enclosing
// repeat or for-each scope, deeper markers walk outward.
func (r *Run) loopIndex(n *liveNode, depth int) (int, bool) {
	var loops []*liveGroup
	for _, gid := range n.spec.Groups {
		g, ok := r.groups[gid]
		if !ok {
			continue
		}
		if g.spec.FromForEach || g.spec.Type == factory.GroupRepeat {
			loops = append(loops, g)
		}
	}
	if depth < 1 || depth > len(loops) {
		return 0, false
	}
	g := loops[depth-1]
	if g.spec.FromForEach {
		return g.spec.CurrentLoop, true
	}
	return g.currentLoop + 1, true
}

// resolveReference resolves one placeholder for a node.
func (r *Run) resolveReference(n *liveNode, ref factory.Reference) (string, bool) {
	switch ref.Type {
	case factory.RefVariable:
		return r.lookupVariable(n, ref.Name)

	case factory.RefLoopIndex:
		idx, ok := r.loopIndex(n, ref.Depth)
		if !ok {
			return "", false
		}
		return itoa(idx), true

	case factory.RefNote:
		return r.readNote(n.spec.ID, ref.Name)

	case factory.RefFloating:
		if f, ok := r.floating[ref.Name]; ok {
			return f.text, true
		}
		r.warn(n.spec.ID, "floating node not found: "+ref.Name)
		return "", false

	case factory.RefDynamic:
		name, ok := r.lookupVariable(n, ref.Name)
		if !ok {
			r.warn(n.spec.ID, "variable not found: "+ref.Name)
			return "", false
		}
		return r.readNote(n.spec.ID, name)

	case factory.RefCreateNote:
		name, ok := r.lookupVariable(n, ref.Name)
		if !ok {
			name = ref.Name
		}
		if r.files == nil {
			r.warn(n.spec.ID, "no file interface for note creation")
			return "", false
		}
		if _, err := r.files.CreateNote(r.ctx, name, "", ""); err != nil {
			r.warn(n.spec.ID, "creating note "+name+": "+err.Error())
			return "", false
		}
		return name, true

	case factory.RefSelection:
		if r.files == nil {
			return "", false
		}
		content, found, err := r.files.GetSelection(r.ctx)
		if err != nil || !found {
			r.warn(n.spec.ID, "no selection available")
			return "", false
		}
		return content, true

	case factory.RefNoteName:
		if r.params.CurrentNote == "" {
			return "", false
		}
		return r.params.CurrentNote, true
	}
	return "", false
}

func (r *Run) readNote(nodeID, name string) (string, bool) {
	if r.files == nil {
		r.warn(nodeID, "no file interface for note: "+name)
		return "", false
	}
	content, found, err := r.files.GetNote(r.ctx, name)
	if err != nil {
		r.warn(nodeID, "reading note "+name+": "+err.Error())
		return "", false
	}
	if !found {
		r.warn(nodeID, "note not found: "+name)
		return "", false
	}
	return content, true
}

// substitute renders a node's text, leaving unresolved placeholders literal.
func (r *Run) substitute(n *liveNode) string {
	return factory.SubstituteReferences(n.text, func(ref factory.Reference) (string, bool) {
		return r.resolveReference(n, ref)
	})
}

// resolveConfig overlays config sources nearest-last: run defaults, then each
// enclosing group's config edges outermost first, then the node's own.
func (r *Run) resolveConfig(n *liveNode) map[string]string {
	cfg := make(map[string]string, len(r.params.Config))
	for k, v := range r.params.Config {
		cfg[k] = v
	}
	apply := func(id string) {
		for _, spec := range r.graph.IncomingEdges(id) {
			if spec.Type != factory.EdgeConfig {
				continue
			}
			e := r.edges[spec.ID]
			if !e.status.Satisfied() || !e.loaded() {
				continue
			}
			if spec.Name != "" {
				cfg[spec.Name] = e.value()
				continue
			}
			var obj map[string]any
			if err := json.Unmarshal([]byte(e.value()), &obj); err == nil {
				for k, v := range obj {
					cfg[k] = stringifyConfig(v)
				}
			}
		}
	}
	for i := len(n.spec.Groups) - 1; i >= 0; i-- {
		apply(n.spec.Groups[i])
	}
	apply(n.spec.ID)
	return cfg
}

func stringifyConfig(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// gatherMessages collects the chat history a call node prepends: message
// edges arriving at the node itself, falling back to the enclosing groups'
// when none arrive directly. System messages come first, deduplicated.
func (r *Run) gatherMessages(n *liveNode) []providers.Message {
	collect := func(id string) []providers.Message {
		var msgs []providers.Message
		for _, spec := range r.graph.IncomingEdges(id) {
			e := r.edges[spec.ID]
			if !e.status.Satisfied() || len(e.messages) == 0 {
				continue
			}
			msgs = append(msgs, e.messages...)
		}
		return msgs
	}
	msgs := collect(n.spec.ID)
	if len(msgs) == 0 {
		for _, gid := range n.spec.Groups {
			if msgs = collect(gid); len(msgs) > 0 {
				break
			}
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return append(providers.SystemMessages(msgs), providers.NonSystemMessages(msgs)...)
}

// variableValues snapshots every resolvable named value for a node, used by
// action dispatch and sub-cannoli argument maps.
func (r *Run) variableValues(n *liveNode) map[string]string {
	values := make(map[string]string)
	for _, e := range r.valueEdges(n) {
		name := e.spec.Name
		if name == "" || !e.status.Satisfied() || !e.loaded() {
			continue
		}
		if _, exists := values[name]; exists {
			continue
		}
		if v, ok := r.lookupVariable(n, name); ok {
			values[name] = v
		}
	}
	return values
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
