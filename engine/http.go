package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DeabLabs/cannoli-sub001/actions"
	"github.com/DeabLabs/cannoli-sub001/fetch"
)

const mcpMarker = `"""mcp`

// httpSettings is the resolved request config of an http node: run defaults
// overlaid by enclosing groups' config edges (innermost last) and the node's
// own.
type httpSettings struct {
	url     string
	method  string
	headers map[string]string
	catch   bool
	timeout time.Duration
}

func parseHTTPSettings(cfg map[string]string) httpSettings {
	s := httpSettings{catch: true, timeout: fetch.DefaultTimeout}
	s.url = cfg["url"]
	s.method = cfg["method"]
	if raw := cfg["headers"]; raw != "" {
		var headers map[string]string
		if err := json.Unmarshal([]byte(raw), &headers); err == nil {
			s.headers = headers
		}
	}
	if raw := cfg["catch"]; raw != "" {
		if b, err := strconv.ParseBool(raw); err == nil {
			s.catch = b
		}
	}
	if raw := cfg["timeout"]; raw != "" {
		if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
			s.timeout = time.Duration(ms) * time.Millisecond
		}
	}
	return s
}

// executeHTTP dispatches an http node by its first line: a registered action,
// an mcp block, an inline URL, a JSON request object, or a named template.
func (r *Run) executeHTTP(n *liveNode) (nodeOutput, error) {
	r.mu.Lock()
	cfg := r.resolveConfig(n)
	settings := parseHTTPSettings(cfg)
	text := r.substitute(n)
	values := r.variableValues(n)
	var edgeLabels []string
	for _, spec := range r.graph.OutgoingEdges(n.spec.ID) {
		if spec.Name != "" {
			edgeLabels = append(edgeLabels, spec.Name)
		}
	}
	receiveInfo, hasReceive := n.receiveInfo, n.hasReceiveInfo
	r.mu.Unlock()

	trimmed := strings.TrimSpace(text)
	firstLine, _, _ := strings.Cut(trimmed, "\n")
	firstLine = strings.TrimSpace(firstLine)

	if action, ok := r.registry.Get(firstLine); ok {
		return r.invokeAction(n, action, values, cfg, settings, edgeLabels, receiveInfo, hasReceive)
	}
	if strings.HasPrefix(trimmed, mcpMarker) {
		return r.invokeMCP(trimmed, settings)
	}

	req, err := r.buildHTTPRequest(n, trimmed, firstLine, settings, values)
	if err != nil {
		if settings.catch {
			return nodeOutput{}, err
		}
		return nodeOutput{content: err.Error()}, nil
	}

	if r.fetcher == nil {
		return nodeOutput{}, fmt.Errorf("no fetcher configured")
	}
	resp, err := r.fetcher.Fetch(r.ctx, req)
	if err != nil {
		if settings.catch {
			return nodeOutput{}, fmt.Errorf("http: %w", err)
		}
		return nodeOutput{content: err.Error()}, nil
	}
	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("http %d: %s", resp.StatusCode, resp.Body)
		if settings.catch {
			return nodeOutput{}, fmt.Errorf("%s", msg)
		}
		return nodeOutput{content: msg}, nil
	}
	return nodeOutput{content: resp.Body}, nil
}

func (r *Run) invokeMCP(text string, settings httpSettings) (nodeOutput, error) {
	if r.params.MCP == nil {
		if settings.catch {
			return nodeOutput{}, fmt.Errorf("no mcp handler configured")
		}
		return nodeOutput{content: "no mcp handler configured"}, nil
	}
	body := strings.TrimPrefix(text, mcpMarker)
	body = strings.TrimSuffix(strings.TrimSpace(body), `"""`)
	result, err := r.params.MCP(r.ctx, strings.TrimSpace(body))
	if err != nil {
		if settings.catch {
			return nodeOutput{}, fmt.Errorf("mcp: %w", err)
		}
		return nodeOutput{content: err.Error()}, nil
	}
	return nodeOutput{content: result}, nil
}

// invokeAction dispatches to the registry, handling two-phase receive
// actions: the first execution stores the response, the next passes it back.
func (r *Run) invokeAction(n *liveNode, action *actions.Action, values, cfg map[string]string,
	settings httpSettings, edgeLabels []string, receiveInfo string, hasReceive bool) (nodeOutput, error) {

	env := actions.Env{
		Config:  cfg,
		Secrets: r.params.Secrets,
		Files:   r.files,
		Fetcher: r.fetcher,
		Extra:   r.params.Extra,
	}

	var result any
	var err error
	if action.Receive != nil && hasReceive {
		result, err = action.Receive(r.ctx, receiveInfo)
	} else {
		result, err = actions.Invoke(r.ctx, action, values, env)
	}
	if err != nil {
		if settings.catch {
			return nodeOutput{}, fmt.Errorf("action %s: %w", action.Name, err)
		}
		return nodeOutput{content: err.Error()}, nil
	}

	labels := edgeLabels
	if len(action.ResultKeys) > 0 {
		labels = action.ResultKeys
	}
	content, routed, err := actions.CoerceResponse(result, settings.catch, labels)
	if err != nil {
		return nodeOutput{}, fmt.Errorf("action %s: %w", action.Name, err)
	}

	if action.Receive != nil && !hasReceive {
		r.mu.Lock()
		n.receiveInfo = content
		n.hasReceiveInfo = true
		r.mu.Unlock()
	}
	return nodeOutput{content: content, routed: routed}, nil
}

// buildHTTPRequest resolves modes (c), (d) and (e): inline URL, JSON object,
// or a named template held by a floating node.
func (r *Run) buildHTTPRequest(n *liveNode, text, firstLine string, settings httpSettings, values map[string]string) (fetch.Request, error) {
	req := fetch.Request{
		Method:  settings.method,
		Headers: settings.headers,
		Timeout: settings.timeout,
	}

	switch {
	case strings.HasPrefix(firstLine, "http://") || strings.HasPrefix(firstLine, "https://"):
		req.URL = firstLine
		if _, rest, found := strings.Cut(text, "\n"); found {
			req.Body = strings.TrimSpace(rest)
		}
		return req, nil

	case strings.HasPrefix(strings.TrimSpace(text), "{"):
		return parseRequestJSON(text, req)

	default:
		r.mu.Lock()
		template, ok := r.floating[firstLine]
		r.mu.Unlock()
		if ok {
			body := template.text
			for name, value := range values {
				body = strings.ReplaceAll(body, "{{"+name+"}}", value)
			}
			return parseRequestJSON(body, req)
		}
		if settings.url != "" {
			req.URL = settings.url
			req.Body = text
			return req, nil
		}
		return fetch.Request{}, fmt.Errorf("http node %s: no url, template or action named %q", n.spec.ID, firstLine)
	}
}

func parseRequestJSON(text string, base fetch.Request) (fetch.Request, error) {
	var raw struct {
		URL     string            `json:"url"`
		Method  string            `json:"method"`
		Headers map[string]string `json:"headers"`
		Body    json.RawMessage   `json:"body"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return fetch.Request{}, fmt.Errorf("http request JSON: %w", err)
	}
	req := base
	if raw.URL != "" {
		req.URL = raw.URL
	}
	if raw.Method != "" {
		req.Method = raw.Method
	}
	if len(raw.Headers) > 0 {
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		for k, v := range raw.Headers {
			req.Headers[k] = v
		}
	}
	if len(raw.Body) > 0 {
		var s string
		if err := json.Unmarshal(raw.Body, &s); err == nil {
			req.Body = s
		} else {
			req.Body = string(raw.Body)
		}
	}
	if req.URL == "" {
		return fetch.Request{}, fmt.Errorf("http request JSON: missing url")
	}
	return req, nil
}
