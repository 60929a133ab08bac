package engine

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/DeabLabs/cannoli-sub001/providers"
)

// loggingRecord builds the text a logging edge carries out of a node: loop and
// version headers for every enclosing scope, the interaction transcript, and a
// config dump with secrets removed. Must be called with the lock held.
func (r *Run) loggingRecord(n *liveNode, msgs []providers.Message, content string) string {
	var sections []string

	for i := len(n.spec.Groups) - 1; i >= 0; i-- {
		g, ok := r.groups[n.spec.Groups[i]]
		if !ok {
			continue
		}
		switch {
		case g.spec.FromForEach:
			sections = append(sections, "# Version "+itoa(g.spec.CurrentLoop))
		case g.spec.MaxLoops > 1:
			sections = append(sections, "# Loop "+itoa(g.currentLoop+1))
		}
	}

	if len(msgs) > 0 {
		history := append(providers.SystemMessages(msgs), providers.NonSystemMessages(msgs)...)
		sections = append(sections, r.format.Render(history))
	} else if content != "" {
		sections = append(sections, content)
	}

	if dump := r.configDump(n); dump != "" {
		sections = append(sections, "## Config\n\n```json\n"+dump+"\n```")
	}

	return strings.Join(sections, "\n\n")
}

// configDump serializes the node's resolved config, dropping secret values.
func (r *Run) configDump(n *liveNode) string {
	cfg := r.resolveConfig(n)
	for k := range cfg {
		if r.isSecretKey(k) {
			delete(cfg, k)
		}
	}
	if len(cfg) == 0 {
		return ""
	}
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ordered := make(map[string]string, len(cfg))
	for _, k := range keys {
		ordered[k] = cfg[k]
	}
	b, err := json.MarshalIndent(ordered, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func (r *Run) isSecretKey(key string) bool {
	if _, ok := r.params.Secrets[key]; ok {
		return true
	}
	lower := strings.ToLower(key)
	for _, marker := range []string{"key", "secret", "token", "password"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
