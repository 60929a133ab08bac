package persist

import (
	"context"
	"sync"

	"github.com/DeabLabs/cannoli-sub001/canvas"
	"github.com/DeabLabs/cannoli-sub001/factory"
)

// Status colors mirrored onto the canvas while a run is live. Completed and
// rejected objects get their authored color back.
const (
	colorError     = "1"
	colorWarning   = "2"
	colorExecuting = "3"
)

// Canvas mirrors run progress onto the source canvas: executing objects turn
// yellow, errors red, warnings orange, finished objects revert to their
// authored color. If Save is set the updated canvas JSON is written out after
// every change; otherwise callers read the live state via Snapshot.
type Canvas struct {
	// Save writes the updated canvas JSON, typically back to the vault file
	// the canvas was loaded from. Optional.
	Save func(ctx context.Context, data []byte) error

	mu       sync.Mutex
	data     *canvas.Data
	original map[string]string // authored colors, captured at Start
	labels   map[string]string // authored group labels
}

var _ Persistor = (*Canvas)(nil)

// NewCanvas mirrors onto the given canvas data. The data is mutated in place.
func NewCanvas(data *canvas.Data) *Canvas {
	return &Canvas{data: data}
}

// Snapshot returns the current canvas JSON.
func (p *Canvas) Snapshot() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data.Marshal()
}

func (p *Canvas) save(ctx context.Context) error {
	if p.Save == nil {
		return nil
	}
	data, err := p.data.Marshal()
	if err != nil {
		return err
	}
	return p.Save(ctx, data)
}

// Start implements Persistor.
func (p *Canvas) Start(ctx context.Context, g *factory.Graph) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.original = make(map[string]string)
	p.labels = make(map[string]string)
	for _, n := range p.data.Nodes {
		p.original[n.ID] = n.Color
		if n.Type == canvas.NodeTypeGroup {
			p.labels[n.ID] = n.Label
		}
	}
	for _, e := range p.data.Edges {
		p.original[e.ID] = e.Color
	}
	return p.save(ctx)
}

func (p *Canvas) statusColor(id, status string) (string, bool) {
	switch status {
	case "executing":
		return colorExecuting, true
	case "error":
		return colorError, true
	case "warning":
		return colorWarning, true
	case "complete", "rejected", "pending":
		return p.original[id], true
	}
	return "", false
}

// EditNode implements Persistor.
func (p *Canvas) EditNode(ctx context.Context, id, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	color, ok := p.statusColor(id, status)
	if !ok {
		return nil
	}
	if n := p.data.Node(id); n != nil {
		n.Color = color
	}
	return p.save(ctx)
}

// EditEdge implements Persistor.
func (p *Canvas) EditEdge(ctx context.Context, id, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	color, ok := p.statusColor(id, status)
	if !ok {
		return nil
	}
	if e := p.data.Edge(id); e != nil {
		e.Color = color
	}
	return p.save(ctx)
}

// AddError implements Persistor.
func (p *Canvas) AddError(ctx context.Context, id, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.data.Node(id); n != nil {
		n.Color = colorError
	}
	if e := p.data.Edge(id); e != nil {
		e.Color = colorError
	}
	return p.save(ctx)
}

// AddWarning implements Persistor.
func (p *Canvas) AddWarning(ctx context.Context, id, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := p.data.Node(id); n != nil {
		n.Color = colorWarning
	}
	if e := p.data.Edge(id); e != nil {
		e.Color = colorWarning
	}
	return p.save(ctx)
}

// EditParallelGroupLabel implements Persistor. An empty label restores the
// authored one.
func (p *Canvas) EditParallelGroupLabel(ctx context.Context, originalID, label string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.data.Node(originalID)
	if n == nil {
		return nil
	}
	if label == "" {
		n.Label = p.labels[originalID]
	} else {
		n.Label = label
	}
	return p.save(ctx)
}
