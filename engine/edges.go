package engine

import (
	"strconv"
	"strings"

	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/providers"
)

// loadEdge deposits a completed node's output onto one outgoing edge. The
// edge itself completes later, once every group it crosses out of has
// finished; until then the value sits buffered. Must be called with the lock
// held.
func (r *Run) loadEdge(e *liveEdge, content string, msgs []providers.Message) {
	switch e.spec.Type {
	case factory.EdgeChatConverter:
		parsed, err := r.format.Parse(content)
		if err != nil {
			r.warn(e.spec.ID, "transcript parse: "+err.Error())
		}
		e.messages = truncateConverted(e.spec, parsed)
		e.content = &content

	case factory.EdgeChatResponse:
		if e.streamed {
			// The formatted transcript accumulated chunk by chunk; the
			// concatenated text is already in place.
			return
		}
		e.content = &content
		if e.spec.AddMessages {
			e.messages = msgs
		}

	case factory.EdgeSystemMessage:
		e.messages = []providers.Message{{Role: providers.RoleSystem, Content: content}}
		e.content = &content

	case factory.EdgeItem:
		item := pickListItem(content, r.itemIndex(e))
		e.content = &item

	default:
		e.content = &content
		if e.spec.AddMessages {
			e.messages = msgs
		}
	}
}

// truncateConverted applies the converter label's truncation: a numeric name
// keeps the last N messages, a numeric name behind the # marker keeps a token
// budget.
func truncateConverted(spec *factory.Edge, msgs []providers.Message) []providers.Message {
	n, err := strconv.Atoi(strings.TrimSpace(spec.Name))
	if err != nil || n <= 0 {
		return msgs
	}
	if spec.Modifier == factory.ModifierHeaders {
		return providers.LimitTokens(msgs, n)
	}
	return providers.LimitMessages(msgs, n)
}

// itemIndex is the 1-based iteration the item edge feeds.
func (r *Run) itemIndex(e *liveEdge) int {
	if g, ok := r.groups[e.spec.Target]; ok && g.spec.FromForEach {
		return g.spec.CurrentLoop
	}
	return 1
}

// pickListItem extracts the idx-th (1-based) entry of a textual list:
// Markdown bullets, numbered items, or plain lines.
func pickListItem(content string, idx int) string {
	items := splitListItems(content)
	if idx >= 1 && idx <= len(items) {
		return items[idx-1]
	}
	return ""
}

func splitListItems(content string) []string {
	var items []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch {
		case strings.HasPrefix(line, "- "):
			line = strings.TrimSpace(line[2:])
		case strings.HasPrefix(line, "* "):
			line = strings.TrimSpace(line[2:])
		default:
			if dot := strings.Index(line, ". "); dot > 0 {
				if _, err := strconv.Atoi(line[:dot]); err == nil {
					line = strings.TrimSpace(line[dot+2:])
				}
			}
		}
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

// appendStreamChunk feeds one streaming chunk onto a chat-response edge. The
// first chunk opens an assistant block, EndOfStream closes it with a fresh
// user block so a converter can recover the turn boundary.
func (r *Run) appendStreamChunk(e *liveEdge, chunk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !e.streamed {
		e.streamed = true
		opened := r.format.Header(providers.RoleAssistant)
		e.content = &opened
	}
	if chunk == providers.EndOfStream {
		closed := *e.content + "\n\n" + r.format.Header(providers.RoleUser)
		e.content = &closed
		return
	}
	appended := *e.content + chunk
	e.content = &appended
}

// fillVersionHeaders stamps each version tag with the item value of the
// for-each copy it passed through, pairing versions (outermost first) with
// the crossed copies (also outermost first). Must be called with the lock
// held, before the edge completes.
func (r *Run) fillVersionHeaders(e *liveEdge) {
	if e.spec.Versions == nil {
		return
	}
	e.versions = make([]factory.Version, len(e.spec.Versions))
	copy(e.versions, e.spec.Versions)

	var copies []*liveGroup
	for i := len(e.spec.CrossingOut) - 1; i >= 0; i-- {
		if g, ok := r.groups[e.spec.CrossingOut[i]]; ok && g.spec.FromForEach {
			copies = append(copies, g)
		}
	}
	for i := range e.versions {
		if i < len(copies) && copies[i].hasItem {
			header := copies[i].itemValue
			e.versions[i].Header = &header
		}
	}
}

// deliverItem records a completed item edge's value on its target for-each
// copy, where the body resolves it as a variable and version headers read it
// back out.
func (r *Run) deliverItem(e *liveEdge) {
	if e.spec.Type != factory.EdgeItem {
		return
	}
	if g, ok := r.groups[e.spec.Target]; ok {
		g.itemValue = e.value()
		g.hasItem = true
	}
}
