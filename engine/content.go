package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/vault"
)

// executeContent runs standard, input and output content nodes. Content is
// picked by priority: logging aggregation, a single incoming value edge, a
// variable fan-in, then the node's own text.
func (r *Run) executeContent(n *liveNode) (nodeOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out nodeOutput
	out.messages = r.gatherMessages(n)

	if content, ok := r.aggregateLogging(n); ok {
		out.content = content
		return out, nil
	}
	if e := r.singleValueEdge(n); e != nil {
		out.content = e.value()
		return out, nil
	}
	if content, ok := r.variableFanIn(n); ok {
		out.content = content
		return out, nil
	}
	out.content = r.substitute(n)
	return out, nil
}

// aggregateLogging concatenates completed incoming logging edges in source
// order, so a chained logging node appends to the prior record.
func (r *Run) aggregateLogging(n *liveNode) (string, bool) {
	var parts []string
	for _, spec := range r.graph.IncomingEdges(n.spec.ID) {
		if spec.Type != factory.EdgeLogging {
			continue
		}
		e := r.edges[spec.ID]
		if e.status.Satisfied() && e.loaded() {
			parts = append(parts, e.value())
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n\n"), true
}

// singleValueEdge finds the one incoming edge whose value becomes the node's
// content: write, logging, chat-response or unlabeled, excluding folder and
// property modified edges.
func (r *Run) singleValueEdge(n *liveNode) *liveEdge {
	for _, spec := range r.graph.IncomingEdges(n.spec.ID) {
		switch spec.Modifier {
		case factory.ModifierFolder, factory.ModifierProperty:
			continue
		}
		carrier := false
		switch spec.Type {
		case factory.EdgeWrite, factory.EdgeLogging, factory.EdgeChatResponse:
			carrier = true
		case factory.EdgeVariable, factory.EdgeChat:
			carrier = spec.Name == ""
		}
		if !carrier {
			continue
		}
		e := r.edges[spec.ID]
		if e.status.Satisfied() && e.loaded() {
			return e
		}
	}
	return nil
}

// variableFanIn renders named incoming values. Versioned peers (for-each
// fan-in) merge-render by the edges' modifier; a single named value is used
// directly.
func (r *Run) variableFanIn(n *liveNode) (string, bool) {
	byName := make(map[string][]*liveEdge)
	var names []string
	for _, spec := range r.graph.IncomingEdges(n.spec.ID) {
		switch spec.Type {
		case factory.EdgeLogging, factory.EdgeConfig, factory.EdgeWrite, factory.EdgeList:
			continue
		}
		if spec.Name == "" {
			continue
		}
		e := r.edges[spec.ID]
		if !e.status.Satisfied() || !e.loaded() {
			continue
		}
		if _, seen := byName[spec.Name]; !seen {
			names = append(names, spec.Name)
		}
		byName[spec.Name] = append(byName[spec.Name], e)
	}
	if len(names) == 0 {
		return "", false
	}

	var sections []string
	for _, name := range names {
		edges := byName[name]
		versioned := false
		for _, e := range edges {
			if e.versions != nil {
				versioned = true
				break
			}
		}
		if versioned {
			sections = append(sections, r.mergeRender(name, edges))
			continue
		}
		if v, ok := r.lookupVariable(n, name); ok {
			sections = append(sections, v)
		}
	}
	return strings.Join(sections, "\n\n"), true
}

// executeFormatter strips the outer "" markers and substitutes references.
func (r *Run) executeFormatter(n *liveNode) (nodeOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	text := strings.TrimSpace(n.text)
	text = strings.TrimPrefix(text, `""`)
	text = strings.TrimSuffix(text, `""`)
	n.text = strings.TrimSpace(text)

	var out nodeOutput
	out.content = r.substitute(n)
	out.messages = r.gatherMessages(n)
	return out, nil
}

// executeReference reads or writes the node's target through the file
// interface: write when an incoming value arrived, read otherwise. A
// chat-response value appends instead of overwriting.
func (r *Run) executeReference(n *liveNode) (nodeOutput, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ref, ok := factory.IsSoleReference(n.text)
	if !ok {
		refs := n.spec.References
		if len(refs) == 0 {
			return nodeOutput{}, fmt.Errorf("reference node has no parseable target")
		}
		ref = refs[0]
	}

	var out nodeOutput
	valueEdge := r.singleValueEdge(n)

	if valueEdge != nil {
		value := valueEdge.value()
		appendValue := valueEdge.spec.Type == factory.EdgeChatResponse
		if warn, err := r.writeReference(n, ref, value, appendValue); err != nil {
			return nodeOutput{}, err
		} else if warn != "" {
			out.warning = warn
		}
		out.content = value
	} else {
		content, warn := r.readReference(n, ref)
		out.content = content
		out.warning = warn
	}

	out.perEdge = r.referenceEmissions(n, ref)
	return out, nil
}

func (r *Run) writeReference(n *liveNode, ref factory.Reference, value string, appendValue bool) (string, error) {
	switch ref.Type {
	case factory.RefNote:
		if r.files == nil {
			return "no file interface configured", nil
		}
		found, err := r.files.EditNote(r.ctx, ref.Name, value, appendValue)
		if err != nil {
			return "", fmt.Errorf("editing note %s: %w", ref.Name, err)
		}
		if !found {
			return "note not found: " + ref.Name, nil
		}
		return "", nil

	case factory.RefFloating:
		f, ok := r.floating[ref.Name]
		if !ok {
			return "floating node not found: " + ref.Name, nil
		}
		f.text = value
		return "", nil

	case factory.RefSelection:
		if r.files == nil {
			return "no file interface configured", nil
		}
		if err := r.files.EditSelection(r.ctx, value); err != nil {
			return "", fmt.Errorf("editing selection: %w", err)
		}
		return "", nil

	case factory.RefDynamic:
		name, ok := r.lookupVariable(n, ref.Name)
		if !ok {
			return "variable not found: " + ref.Name, nil
		}
		if r.files == nil {
			return "no file interface configured", nil
		}
		found, err := r.files.EditNote(r.ctx, name, value, appendValue)
		if err != nil {
			return "", fmt.Errorf("editing note %s: %w", name, err)
		}
		if !found {
			return "note not found: " + name, nil
		}
		return "", nil

	case factory.RefCreateNote:
		return r.createNote(n, ref, value)

	default:
		// Plain variables and specials just hold the value.
		return "", nil
	}
}

// createNote builds the new note, assembling frontmatter from incoming
// property-modified edges when present.
func (r *Run) createNote(n *liveNode, ref factory.Reference, value string) (string, error) {
	if r.files == nil {
		return "no file interface configured", nil
	}
	name, ok := r.lookupVariable(n, ref.Name)
	if !ok || name == "" {
		name = ref.Name
	}
	folder := ""
	props := make(map[string]string)
	for _, spec := range r.graph.IncomingEdges(n.spec.ID) {
		e := r.edges[spec.ID]
		if !e.status.Satisfied() || !e.loaded() {
			continue
		}
		switch spec.Modifier {
		case factory.ModifierFolder:
			folder = e.value()
		case factory.ModifierProperty:
			if spec.Name != "" {
				props[spec.Name] = e.value()
			}
		}
	}
	content := value
	if len(props) > 0 {
		front, err := vault.RenderFrontmatter(props)
		if err != nil {
			return "", fmt.Errorf("rendering frontmatter: %w", err)
		}
		content = front + value
	}
	if _, err := r.files.CreateNote(r.ctx, name, folder, content); err != nil {
		return "", fmt.Errorf("creating note %s: %w", name, err)
	}
	return "", nil
}

func (r *Run) readReference(n *liveNode, ref factory.Reference) (content, warning string) {
	switch ref.Type {
	case factory.RefNote:
		c, ok := r.readNote(n.spec.ID, ref.Name)
		if !ok {
			return "{{[[" + ref.Name + "]]}}", "note not found: " + ref.Name
		}
		return c, ""

	case factory.RefFloating:
		if f, ok := r.floating[ref.Name]; ok {
			return f.text, ""
		}
		return "", "floating node not found: " + ref.Name

	case factory.RefSelection:
		if v, ok := r.resolveReference(n, ref); ok {
			return v, ""
		}
		return "", "no selection available"

	case factory.RefNoteName:
		return r.params.CurrentNote, ""

	case factory.RefDynamic:
		name, ok := r.lookupVariable(n, ref.Name)
		if !ok {
			return "", "variable not found: " + ref.Name
		}
		c, ok := r.readNote(n.spec.ID, name)
		if !ok {
			return "", "note not found: " + name
		}
		return c, ""

	case factory.RefCreateNote:
		if v, ok := r.resolveReference(n, ref); ok {
			return v, ""
		}
		return "", "could not create note: " + ref.Name

	default:
		if v, ok := r.lookupVariable(n, ref.Name); ok {
			return v, ""
		}
		return "{{" + ref.Name + "}}", "variable not found: " + ref.Name
	}
}

// referenceEmissions computes modifier-specific outgoing values: the note
// name, its path, or one frontmatter property.
func (r *Run) referenceEmissions(n *liveNode, ref factory.Reference) map[string]string {
	perEdge := make(map[string]string)
	noteName := ref.Name
	if ref.Type == factory.RefDynamic || ref.Type == factory.RefCreateNote {
		if v, ok := r.lookupVariable(n, ref.Name); ok {
			noteName = v
		}
	}
	for _, spec := range r.graph.OutgoingEdges(n.spec.ID) {
		switch spec.Modifier {
		case factory.ModifierNote:
			perEdge[spec.ID] = noteName
		case factory.ModifierFolder:
			if r.files != nil {
				if path, found, err := r.files.GetNotePath(r.ctx, noteName); err == nil && found {
					perEdge[spec.ID] = path
				}
			}
		case factory.ModifierProperty:
			if r.files != nil && spec.Name != "" {
				if v, found, err := r.files.GetProperty(r.ctx, noteName, spec.Name); err == nil && found {
					perEdge[spec.ID] = v
				}
			}
		}
	}
	if len(perEdge) == 0 {
		return nil
	}
	return perEdge
}

// executeSearch resolves the query and delegates to the host's searcher.
func (r *Run) executeSearch(n *liveNode) (nodeOutput, error) {
	r.mu.Lock()
	query := r.substitute(n)
	searcher := r.params.Searcher
	r.mu.Unlock()

	if searcher == nil {
		return nodeOutput{content: query, warning: "no searcher configured"}, nil
	}
	result, err := searcher(r.ctx, query)
	if err != nil {
		return nodeOutput{}, fmt.Errorf("search: %w", err)
	}
	return nodeOutput{content: result}, nil
}

// executeSubCannoli fetches the referenced canvas, runs it with the node's
// variables as arguments, and routes each named result to the same-named
// outgoing edge.
func (r *Run) executeSubCannoli(n *liveNode) (nodeOutput, error) {
	r.mu.Lock()
	name := strings.TrimSpace(n.text)
	if ref, ok := factory.IsSoleReference(n.text); ok && ref.Type == factory.RefNote {
		name = ref.Name
	}
	name = strings.TrimSuffix(name, ".canvas")
	args := r.variableValues(n)
	files := r.files
	runner := r.params.SubCannoli
	r.mu.Unlock()

	if files == nil {
		return nodeOutput{warning: "no file interface for sub-cannoli"}, nil
	}
	data, found, err := files.GetCanvas(r.ctx, name)
	if err != nil {
		return nodeOutput{}, fmt.Errorf("loading canvas %s: %w", name, err)
	}
	if !found {
		return nodeOutput{warning: "canvas not found: " + name}, nil
	}

	if runner == nil {
		runner = r.defaultSubCannoli
	}
	results, err := runner(r.ctx, data, args)
	if err != nil {
		return nodeOutput{}, fmt.Errorf("sub-cannoli %s: %w", name, err)
	}

	var out nodeOutput
	out.routed = results
	if b, err := json.Marshal(results); err == nil {
		out.content = string(b)
	}
	return out, nil
}

// defaultSubCannoli recurses with the parent run's collaborators.
func (r *Run) defaultSubCannoli(ctx context.Context, canvasJSON []byte, args map[string]string) (map[string]string, error) {
	params := r.params
	params.CanvasJSON = canvasJSON
	params.Canvas = nil
	params.Args = args
	params.SubCannoli = nil
	st, err := RunCannoli(ctx, params)
	if err != nil {
		return nil, err
	}
	if st.Reason == ReasonError {
		return nil, fmt.Errorf("nested run failed: %s", st.Description)
	}
	return st.Results, nil
}
