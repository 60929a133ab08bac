package engine

import (
	"sort"
	"strings"

	"github.com/DeabLabs/cannoli-sub001/factory"
)

// mergeRender flattens a versioned fan-in of same-named edges into one text
// block. Sections are ordered by iteration index and shaped by the edges'
// modifier: a Markdown table, a nested bullet list, hierarchical headings, or
// plain paragraphs.
func (r *Run) mergeRender(name string, edges []*liveEdge) string {
	ordered := make([]*liveEdge, 0, len(edges))
	for _, e := range edges {
		if e.status.Satisfied() && e.loaded() {
			ordered = append(ordered, e)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return versionIndex(ordered[i]) < versionIndex(ordered[j])
	})
	if len(ordered) == 0 {
		return ""
	}

	modifier := factory.ModifierNone
	for _, e := range ordered {
		if e.spec.Modifier != factory.ModifierNone {
			modifier = e.spec.Modifier
			break
		}
	}

	switch modifier {
	case factory.ModifierTable:
		return renderTable(name, ordered)
	case factory.ModifierList:
		return renderList(ordered)
	case factory.ModifierHeaders:
		return renderHeadings(ordered)
	default:
		return renderParagraphs(ordered)
	}
}

func versionIndex(e *liveEdge) int {
	if len(e.versions) == 0 {
		return 0
	}
	return e.versions[0].Index
}

func versionHeaders(e *liveEdge) (header, subHeader string) {
	if len(e.versions) > 0 && e.versions[0].Header != nil {
		header = *e.versions[0].Header
	}
	if len(e.versions) > 1 && e.versions[1].Header != nil {
		subHeader = *e.versions[1].Header
	} else if len(e.versions) > 0 && e.versions[0].SubHeader != nil {
		subHeader = *e.versions[0].SubHeader
	}
	return header, subHeader
}

// renderTable builds a two-column table: iteration headers down the first
// column, the edge label heading the second. Embedded newlines become <br> so
// multi-line values stay inside their cell.
func renderTable(label string, edges []*liveEdge) string {
	var b strings.Builder
	b.WriteString("| | " + tableCell(label) + " |\n")
	b.WriteString("| --- | --- |\n")
	for _, e := range edges {
		header, _ := versionHeaders(e)
		b.WriteString("| " + tableCell(header) + " | " + tableCell(e.value()) + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "\n", "<br>")
	return strings.ReplaceAll(s, "|", "\\|")
}

// renderList nests each section under its iteration headers as bullets.
func renderList(edges []*liveEdge) string {
	var b strings.Builder
	for _, e := range edges {
		header, subHeader := versionHeaders(e)
		indent := ""
		if header != "" {
			b.WriteString("- " + header + "\n")
			indent = "    "
		}
		if subHeader != "" {
			b.WriteString(indent + "- " + subHeader + "\n")
			indent += "    "
		}
		for _, line := range strings.Split(e.value(), "\n") {
			b.WriteString(indent + "- " + line + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderHeadings emits each section under ATX headings for its iteration
// headers, outermost first.
func renderHeadings(edges []*liveEdge) string {
	var sections []string
	for _, e := range edges {
		var b strings.Builder
		header, subHeader := versionHeaders(e)
		if header != "" {
			b.WriteString("# " + header + "\n\n")
		}
		if subHeader != "" {
			b.WriteString("## " + subHeader + "\n\n")
		}
		b.WriteString(e.value())
		sections = append(sections, b.String())
	}
	return strings.Join(sections, "\n\n")
}

func renderParagraphs(edges []*liveEdge) string {
	var sections []string
	for _, e := range edges {
		sections = append(sections, e.value())
	}
	return strings.Join(sections, "\n\n")
}
