package factory

import (
	"regexp"
	"strings"
)

// ReferenceType is the kind of placeholder found in node text.
type ReferenceType string

const (
	// RefVariable is a plain {{name}} variable.
	RefVariable ReferenceType = "variable"
	// RefNote is a {{[[Note]]}} link to a vault note.
	RefNote ReferenceType = "note"
	// RefFloating is a {{[name]}} lookup of a floating node.
	RefFloating ReferenceType = "floating"
	// RefDynamic is a {{@var}} note whose name comes from a variable.
	RefDynamic ReferenceType = "dynamic"
	// RefCreateNote is a {{+@var}} dynamically named note to create.
	RefCreateNote ReferenceType = "createNote"
	// RefSelection is the {{SELECTION}} special variable.
	RefSelection ReferenceType = "selection"
	// RefNoteName is the {{NOTE}} special variable.
	RefNoteName ReferenceType = "noteName"
	// RefLoopIndex is {{#}}, {{##}}, ...: the 1-based loop index of the
	// enclosing repeat or for-each group at the marker's depth.
	RefLoopIndex ReferenceType = "loopIndex"
)

// Reference is one parsed placeholder.
type Reference struct {
	Type ReferenceType
	Name string
	// Depth is the number of # markers of a loop-index reference.
	Depth int
}

var placeholderPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// loopIndexOnly matches one or more # characters and nothing else.
var loopIndexOnly = regexp.MustCompile(`^#+$`)

// ParsePlaceholder classifies the inside of one {{...}} placeholder.
func ParsePlaceholder(inner string) (Reference, bool) {
	trimmed := strings.TrimSpace(inner)
	if trimmed == "" {
		return Reference{}, false
	}
	switch {
	case loopIndexOnly.MatchString(trimmed):
		return Reference{Type: RefLoopIndex, Depth: len(trimmed)}, true
	case trimmed == "NOTE":
		return Reference{Type: RefNoteName, Name: "NOTE"}, true
	case trimmed == "SELECTION":
		return Reference{Type: RefSelection, Name: "SELECTION"}, true
	case strings.HasPrefix(trimmed, "[[") && strings.HasSuffix(trimmed, "]]"):
		name := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		if name == "" {
			return Reference{}, false
		}
		return Reference{Type: RefNote, Name: name}, true
	case strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"):
		name := strings.TrimSpace(trimmed[1 : len(trimmed)-1])
		if name == "" {
			return Reference{}, false
		}
		return Reference{Type: RefFloating, Name: name}, true
	case strings.HasPrefix(trimmed, "+@"):
		name := strings.TrimSpace(trimmed[2:])
		if name == "" {
			return Reference{}, false
		}
		return Reference{Type: RefCreateNote, Name: name}, true
	case strings.HasPrefix(trimmed, "@"):
		name := strings.TrimSpace(trimmed[1:])
		if name == "" {
			return Reference{}, false
		}
		return Reference{Type: RefDynamic, Name: name}, true
	default:
		return Reference{Type: RefVariable, Name: trimmed}, true
	}
}

// ParseReferences extracts every placeholder of a node's text, in order of
// appearance.
func ParseReferences(text string) []Reference {
	matches := placeholderPattern.FindAllStringSubmatch(text, -1)
	var refs []Reference
	for _, m := range matches {
		if ref, ok := ParsePlaceholder(m[1]); ok {
			refs = append(refs, ref)
		}
	}
	return refs
}

// SubstituteReferences replaces each placeholder using resolve. When resolve
// reports false the placeholder is left literal, which is how unresolved
// variables degrade into visible {{name}} text.
func SubstituteReferences(text string, resolve func(Reference) (string, bool)) string {
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		inner := match[2 : len(match)-2]
		ref, ok := ParsePlaceholder(inner)
		if !ok {
			return match
		}
		value, ok := resolve(ref)
		if !ok {
			return match
		}
		return value
	})
}

// IsSoleReference reports whether the text is exactly one placeholder on a
// single line, which marks a text node as a reference node.
func IsSoleReference(text string) (Reference, bool) {
	trimmed := strings.TrimSpace(text)
	if strings.Contains(trimmed, "\n") {
		return Reference{}, false
	}
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return Reference{}, false
	}
	inner := trimmed[2 : len(trimmed)-2]
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return Reference{}, false
	}
	ref, ok := ParsePlaceholder(inner)
	if !ok {
		return Reference{}, false
	}
	return ref, true
}
