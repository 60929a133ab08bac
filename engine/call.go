package engine

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/providers"
)

var (
	embeddedImagePattern = regexp.MustCompile(`!\[\[([^\]]+)\]\]`)
	linkedImagePattern   = regexp.MustCompile(`!\[[^\]]*\]\((https?://[^)]+)\)`)
)

var imageMimeTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// executeCall runs standard, choose and form call nodes.
func (r *Run) executeCall(n *liveNode) (nodeOutput, error) {
	r.mu.Lock()
	cfg := r.resolveConfig(n)
	history := r.gatherMessages(n)
	text := r.substitute(n)
	images := r.extractImages(n.spec.ID, text)

	var choices, fields []string
	var streamEdges []*liveEdge
	seenChoice := make(map[string]bool)
	for _, spec := range r.graph.OutgoingEdges(n.spec.ID) {
		switch spec.Type {
		case factory.EdgeChoice:
			if spec.Name != "" && !seenChoice[spec.Name] {
				seenChoice[spec.Name] = true
				choices = append(choices, spec.Name)
			}
		case factory.EdgeField:
			if spec.Name != "" {
				fields = append(fields, spec.Name)
			}
		case factory.EdgeChatResponse:
			streamEdges = append(streamEdges, r.edges[spec.ID])
		}
	}
	r.mu.Unlock()

	messages := append(append([]providers.Message{}, history...),
		providers.Message{Role: providers.RoleUser, Content: text})
	req := providers.Request{
		Messages:        messages,
		ImageReferences: images,
	}
	applyLLMConfig(&req, cfg)

	switch n.spec.Type {
	case factory.NodeChoose:
		return r.callChoose(n, req, choices)
	case factory.NodeForm:
		return r.callForm(req, fields)
	default:
		if len(streamEdges) > 0 {
			return r.callStreaming(req, streamEdges)
		}
		return r.callOneShot(req)
	}
}

// applyLLMConfig overlays resolved config onto the request.
func applyLLMConfig(req *providers.Request, cfg map[string]string) {
	if model := cfg["model"]; model != "" {
		req.Model = model
	}
	if raw := cfg["temperature"]; raw != "" {
		if t, err := strconv.ParseFloat(raw, 64); err == nil {
			req.Temperature = &t
		}
	}
	if raw := cfg["max_tokens"]; raw != "" {
		if m, err := strconv.Atoi(raw); err == nil {
			req.MaxTokens = &m
		}
	}
}

func (r *Run) callOneShot(req providers.Request) (nodeOutput, error) {
	resp, err := r.llm.GetCompletion(r.ctx, req)
	if err != nil {
		return nodeOutput{}, fmt.Errorf("llm: %w", err)
	}
	return nodeOutput{
		content:  resp.Content,
		messages: append(req.Messages, resp),
	}, nil
}

// callStreaming feeds chunks onto every chat-response edge as they arrive;
// regular edges receive only the concatenated text after the stream ends.
func (r *Run) callStreaming(req providers.Request, streamEdges []*liveEdge) (nodeOutput, error) {
	chunks, errFn, err := r.llm.GetCompletionStream(r.ctx, req)
	if err != nil {
		return nodeOutput{}, fmt.Errorf("llm stream: %w", err)
	}
	var b strings.Builder
	for chunk := range chunks {
		if chunk != providers.EndOfStream {
			b.WriteString(chunk)
		}
		for _, e := range streamEdges {
			r.appendStreamChunk(e, chunk)
		}
	}
	if err := errFn(); err != nil {
		return nodeOutput{}, fmt.Errorf("llm stream: %w", err)
	}
	final := b.String()
	assistant := providers.Message{Role: providers.RoleAssistant, Content: final}
	return nodeOutput{
		content:  final,
		messages: append(req.Messages, assistant),
	}, nil
}

// callChoose forces the choice tool and rejects every unselected branch.
func (r *Run) callChoose(n *liveNode, req providers.Request, choices []string) (nodeOutput, error) {
	if len(choices) == 0 {
		return nodeOutput{}, fmt.Errorf("choose node has no choice labels")
	}
	req.Functions = []providers.Function{providers.ChoiceTool(choices)}
	req.FunctionCall = "choice"

	resp, err := r.llm.GetCompletion(r.ctx, req)
	if err != nil {
		return nodeOutput{}, fmt.Errorf("llm: %w", err)
	}
	args, err := providers.ParseToolArguments(resp.FunctionCall)
	if err != nil {
		return nodeOutput{}, err
	}
	selected := args["choice"]
	valid := false
	for _, c := range choices {
		if c == selected {
			valid = true
			break
		}
	}
	if !valid {
		return nodeOutput{}, fmt.Errorf("model chose %q, not one of the offered branches", selected)
	}

	rejected := make(map[string]bool, len(choices)-1)
	for _, c := range choices {
		if c != selected {
			rejected[c] = true
		}
	}
	return nodeOutput{
		content:       selected,
		messages:      append(req.Messages, resp),
		rejectChoices: rejected,
	}, nil
}

// callForm forces the form tool and routes each returned field to the
// same-named outgoing field edge.
func (r *Run) callForm(req providers.Request, fields []string) (nodeOutput, error) {
	if len(fields) == 0 {
		return nodeOutput{}, fmt.Errorf("form node has no field labels")
	}
	req.Functions = []providers.Function{providers.FormTool(fields)}
	req.FunctionCall = "form"

	resp, err := r.llm.GetCompletion(r.ctx, req)
	if err != nil {
		return nodeOutput{}, fmt.Errorf("llm: %w", err)
	}
	args, err := providers.ParseToolArguments(resp.FunctionCall)
	if err != nil {
		return nodeOutput{}, err
	}
	routed := make(map[string]string, len(fields))
	for _, f := range fields {
		routed[f] = args[f]
	}
	return nodeOutput{
		content:  resp.FunctionCall.Arguments,
		messages: append(req.Messages, resp),
		routed:   routed,
	}, nil
}

// extractImages collects ![[file]] vault embeds (base64-encoded through the
// file interface) and ![](url) links from rendered node text. Must be called
// with the lock held.
func (r *Run) extractImages(nodeID, text string) []providers.ImageReference {
	var refs []providers.ImageReference
	for _, m := range embeddedImagePattern.FindAllStringSubmatch(text, -1) {
		path := strings.TrimSpace(m[1])
		dot := strings.LastIndex(path, ".")
		if dot < 0 {
			continue
		}
		mime, ok := imageMimeTypes[strings.ToLower(path[dot:])]
		if !ok || r.files == nil {
			continue
		}
		data, found, err := r.files.GetFile(r.ctx, path)
		if err != nil || !found {
			r.warn(nodeID, "image not found: "+path)
			continue
		}
		refs = append(refs, providers.ImageReference{
			Base64:   base64.StdEncoding.EncodeToString(data),
			MimeType: mime,
		})
	}
	for _, m := range linkedImagePattern.FindAllStringSubmatch(text, -1) {
		refs = append(refs, providers.ImageReference{URL: m[1]})
	}
	return refs
}
