package viz

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/persist"
)

var (
	styleExecuting = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleComplete  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleRejected  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleWarning   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleLabel     = lipgloss.NewStyle().Faint(true)
)

// Progress is a Persistor that prints colored status lines as a run
// advances. Node transitions print with the node's display label; edge
// transitions are skipped to keep the output readable.
type Progress struct {
	mu     sync.Mutex
	out    io.Writer
	labels map[string]string
}

var _ persist.Persistor = (*Progress)(nil)

// NewProgress writes progress lines to w.
func NewProgress(w io.Writer) *Progress {
	return &Progress{out: w, labels: map[string]string{}}
}

// Start implements persist.Persistor.
func (p *Progress) Start(_ context.Context, g *factory.Graph) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, n := range g.Nodes {
		p.labels[id] = nodeLabel(n)
	}
	for id, grp := range g.Groups {
		if grp.Label != "" {
			p.labels[id] = grp.Label
		}
	}
	return nil
}

// EditNode implements persist.Persistor.
func (p *Progress) EditNode(_ context.Context, id, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	style, show := statusStyle(status)
	if !show {
		return nil
	}
	_, err := fmt.Fprintf(p.out, "%s %s\n", style.Render(status), p.label(id))
	return err
}

// EditEdge implements persist.Persistor.
func (p *Progress) EditEdge(context.Context, string, string) error {
	return nil
}

// AddError implements persist.Persistor.
func (p *Progress) AddError(_ context.Context, id, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "%s %s: %s\n", styleError.Render("error"), p.label(id), message)
	return err
}

// AddWarning implements persist.Persistor.
func (p *Progress) AddWarning(_ context.Context, id, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "%s %s: %s\n", styleWarning.Render("warning"), p.label(id), message)
	return err
}

// EditParallelGroupLabel implements persist.Persistor.
func (p *Progress) EditParallelGroupLabel(_ context.Context, originalID, label string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "%s %s\n", styleLabel.Render(label), p.label(originalID))
	return err
}

func (p *Progress) label(id string) string {
	if l, ok := p.labels[id]; ok {
		return l
	}
	return id
}

func statusStyle(status string) (lipgloss.Style, bool) {
	switch status {
	case "executing":
		return styleExecuting, true
	case "complete", "version-complete":
		return styleComplete, true
	case "rejected":
		return styleRejected, true
	case "error":
		return styleError, true
	case "warning":
		return styleWarning, true
	default:
		return lipgloss.Style{}, false
	}
}
