package providers

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultChatFormat is the template a chat transcript is rendered with, one
// message at a time. {role} and {content} are the only placeholders.
const DefaultChatFormat = "---\n# <u>{role}</u>\n\n{content}"

// ChatFormat renders message histories to Markdown transcripts and parses
// them back. Render and Parse are inverses for any template whose literal
// text does not itself contain a rendered role header.
type ChatFormat struct {
	Template string
}

// NewChatFormat returns a ChatFormat, defaulting the template.
func NewChatFormat(template string) ChatFormat {
	if template == "" {
		template = DefaultChatFormat
	}
	return ChatFormat{Template: template}
}

func roleTitle(r Role) string {
	switch r {
	case RoleSystem:
		return "System"
	case RoleAssistant:
		return "Assistant"
	default:
		return "User"
	}
}

func roleFromTitle(s string) Role {
	switch strings.ToLower(s) {
	case "system":
		return RoleSystem
	case "assistant":
		return RoleAssistant
	default:
		return RoleUser
	}
}

// RenderMessage renders a single message.
func (f ChatFormat) RenderMessage(m Message) string {
	s := strings.ReplaceAll(f.Template, "{role}", roleTitle(m.Role))
	return strings.ReplaceAll(s, "{content}", m.Content)
}

// Render renders a whole history, blank-line separated.
func (f ChatFormat) Render(messages []Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, f.RenderMessage(m))
	}
	return strings.Join(parts, "\n\n")
}

// Header renders the template's header portion (everything before {content})
// for the given role. Streaming consumers open a block with this and append
// raw chunks after it.
func (f ChatFormat) Header(role Role) string {
	idx := strings.Index(f.Template, "{content}")
	if idx < 0 {
		return ""
	}
	return strings.ReplaceAll(f.Template[:idx], "{role}", roleTitle(role))
}

// headerPattern builds a regexp matching a rendered header and capturing the
// role title.
func (f ChatFormat) headerPattern() (*regexp.Regexp, error) {
	idx := strings.Index(f.Template, "{content}")
	if idx < 0 {
		return nil, fmt.Errorf("providers: chat format template missing {content}")
	}
	header := f.Template[:idx]
	quoted := regexp.QuoteMeta(header)
	quoted = strings.Replace(quoted, regexp.QuoteMeta("{role}"), "(System|User|Assistant)", 1)
	return regexp.Compile(quoted)
}

// Parse recovers a message list from a rendered transcript. Text before the
// first header, or a transcript with no headers at all, becomes a single
// user message.
func (f ChatFormat) Parse(text string) ([]Message, error) {
	pattern, err := f.headerPattern()
	if err != nil {
		return nil, err
	}
	locs := pattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, nil
		}
		return []Message{{Role: RoleUser, Content: trimmed}}, nil
	}

	var messages []Message
	if lead := strings.TrimSpace(text[:locs[0][0]]); lead != "" {
		messages = append(messages, Message{Role: RoleUser, Content: lead})
	}
	for i, loc := range locs {
		role := roleFromTitle(text[loc[2]:loc[3]])
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimSpace(text[loc[1]:end])
		messages = append(messages, Message{Role: role, Content: content})
	}
	return messages, nil
}

// LimitMessages keeps the last n non-system messages, preserving every
// system message. n <= 0 keeps everything.
func LimitMessages(messages []Message, n int) []Message {
	if n <= 0 {
		return messages
	}
	nonSystem := 0
	for _, m := range messages {
		if m.Role != RoleSystem {
			nonSystem++
		}
	}
	skip := nonSystem - n
	if skip <= 0 {
		return messages
	}
	var out []Message
	for _, m := range messages {
		if m.Role != RoleSystem && skip > 0 {
			skip--
			continue
		}
		out = append(out, m)
	}
	return out
}

// LimitTokens drops oldest non-system messages until the estimated token
// count fits the budget. The estimate is the usual four-characters-per-token
// heuristic; the budget is advisory, not a hard provider limit.
func LimitTokens(messages []Message, budget int) []Message {
	if budget <= 0 {
		return messages
	}
	estimate := func(ms []Message) int {
		total := 0
		for _, m := range ms {
			total += len(m.Content)/4 + 4
		}
		return total
	}
	out := messages
	for estimate(out) > budget {
		dropped := false
		for i, m := range out {
			if m.Role != RoleSystem {
				out = append(append([]Message{}, out[:i]...), out[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			break
		}
	}
	return out
}
