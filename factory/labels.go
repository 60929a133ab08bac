package factory

import (
	"strconv"
	"strings"
)

// Edge labels follow a small grammar: an optional type prefix, an optional
// modifier marker, the name body, and an optional trailing history marker.
//
//	*config     config edge
//	?choice     choice edge
//	<list       list edge
//	=field      field edge
//	@transcript chat-converter edge
//	[note       variable edge carrying a note (modifier)
//	name|       variable edge that also carries chat history
//	name~       variable edge that explicitly drops chat history

// edgePrefixes maps a leading label character to an edge type.
var edgePrefixes = map[byte]EdgeType{
	'*': EdgeConfig,
	'?': EdgeChoice,
	'<': EdgeList,
	'=': EdgeField,
	'@': EdgeChatConverter,
}

// edgeModifiers maps a leading marker (after any type prefix) to a modifier.
var edgeModifiers = map[byte]EdgeModifier{
	'[': ModifierNote,
	'/': ModifierFolder,
	':': ModifierProperty,
	'-': ModifierList,
	'#': ModifierHeaders,
	'^': ModifierTable,
}

// edgeColors maps canvas colors to edge types, consulted before the label.
var edgeColors = map[string]EdgeType{
	"1": EdgeLogging,
	"2": EdgeChat,
	"3": EdgeChoice,
	"4": EdgeList,
	"5": EdgeField,
	"6": EdgeConfig,
}

// ParsedLabel is the decomposed edge label.
type ParsedLabel struct {
	Type     EdgeType // empty when the label carries no type prefix
	Modifier EdgeModifier
	Name     string
	// AddMessages is nil when the label does not specify it.
	AddMessages *bool
}

// ParseEdgeLabel decomposes one edge label line.
func ParseEdgeLabel(label string) ParsedLabel {
	var parsed ParsedLabel
	rest := strings.TrimSpace(label)

	if rest != "" {
		if t, ok := edgePrefixes[rest[0]]; ok {
			parsed.Type = t
			rest = rest[1:]
		}
	}
	if rest != "" {
		if m, ok := edgeModifiers[rest[0]]; ok {
			parsed.Modifier = m
			rest = rest[1:]
		}
	}
	if rest != "" {
		switch rest[len(rest)-1] {
		case '|':
			yes := true
			parsed.AddMessages = &yes
			rest = rest[:len(rest)-1]
		case '~':
			no := false
			parsed.AddMessages = &no
			rest = rest[:len(rest)-1]
		}
	}
	parsed.Name = strings.TrimSpace(rest)
	return parsed
}

// edgeTypeFromColor returns the color-mapped type of an edge.
func edgeTypeFromColor(color string) (EdgeType, bool) {
	t, ok := edgeColors[color]
	return t, ok
}

// ParseGroupLabel classifies a group by its label. "N" is a repeat group
// running N times; "k/N" is a for-each group expanded into N copies.
// Anything else is a basic group.
func ParseGroupLabel(label string) (GroupType, int, bool) {
	trimmed := strings.TrimSpace(label)
	if trimmed == "" {
		return GroupBasic, 0, true
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		if n < 1 {
			return GroupRepeat, n, false
		}
		return GroupRepeat, n, true
	}
	if before, after, found := strings.Cut(trimmed, "/"); found {
		if _, err := strconv.Atoi(strings.TrimSpace(before)); err == nil {
			if n, err := strconv.Atoi(strings.TrimSpace(after)); err == nil {
				if n < 1 {
					return GroupForEach, n, false
				}
				return GroupForEach, n, true
			}
		}
	}
	return GroupBasic, 0, true
}

// nodeColorHTTP is the canvas color that marks a text node as an http node.
const nodeColorHTTP = "2"

// nodeKindFromColor returns the indicated kind of a text node by color.
// Uncolored nodes default to call unless contentIsColorless is set.
func nodeKindFromColor(color string, contentIsColorless bool) NodeKind {
	switch color {
	case "":
		if contentIsColorless {
			return KindContent
		}
		return KindCall
	case "6":
		return KindCall
	default:
		return KindContent
	}
}

// ParseNodeName extracts a leading [name] line from input, output and
// floating nodes, returning the name and the remaining text.
func ParseNodeName(text string) (name, rest string, ok bool) {
	firstLine, remainder, _ := strings.Cut(text, "\n")
	firstLine = strings.TrimSpace(firstLine)
	if !strings.HasPrefix(firstLine, "[") || !strings.HasSuffix(firstLine, "]") {
		return "", text, false
	}
	name = strings.TrimSpace(firstLine[1 : len(firstLine)-1])
	if name == "" || strings.HasPrefix(name, "[") {
		return "", text, false
	}
	return name, remainder, true
}

// reservedNames may not be used as input or output node names; they collide
// with special variables.
var reservedNames = map[string]bool{
	"NOTE":      true,
	"SELECTION": true,
}

// IsReservedName reports whether a node name collides with a special
// variable.
func IsReservedName(name string) bool {
	return reservedNames[strings.ToUpper(name)]
}
