// Package persist mirrors live run state to an external surface. The engine
// calls a Persistor on every status transition so the authoring tool can show
// progress; persistence never feeds back into scheduling.
package persist

import (
	"context"

	"github.com/DeabLabs/cannoli-sub001/factory"
)

// Persistor receives run state changes. Statuses arrive as plain strings so
// the package stays decoupled from the engine's status type.
type Persistor interface {
	// Start is called once with the compiled graph before any object runs.
	Start(ctx context.Context, g *factory.Graph) error

	// EditNode reports a node status transition.
	EditNode(ctx context.Context, id, status string) error

	// EditEdge reports an edge status transition.
	EditEdge(ctx context.Context, id, status string) error

	// AddError reports a fatal problem on an object.
	AddError(ctx context.Context, id, message string) error

	// AddWarning reports a recoverable problem on an object.
	AddWarning(ctx context.Context, id, message string) error

	// EditParallelGroupLabel updates the label of the original group that a
	// set of parallel copies was duplicated from, e.g. "2/5".
	EditParallelGroupLabel(ctx context.Context, originalID, label string) error
}

// Noop discards everything.
type Noop struct{}

var _ Persistor = Noop{}

func (Noop) Start(context.Context, *factory.Graph) error               { return nil }
func (Noop) EditNode(context.Context, string, string) error            { return nil }
func (Noop) EditEdge(context.Context, string, string) error            { return nil }
func (Noop) AddError(context.Context, string, string) error            { return nil }
func (Noop) AddWarning(context.Context, string, string) error          { return nil }
func (Noop) EditParallelGroupLabel(context.Context, string, string) error {
	return nil
}

// Multi fans every call out to each persistor in order, stopping on the
// first error.
type Multi []Persistor

var _ Persistor = Multi{}

func (m Multi) Start(ctx context.Context, g *factory.Graph) error {
	for _, p := range m {
		if err := p.Start(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) EditNode(ctx context.Context, id, status string) error {
	for _, p := range m {
		if err := p.EditNode(ctx, id, status); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) EditEdge(ctx context.Context, id, status string) error {
	for _, p := range m {
		if err := p.EditEdge(ctx, id, status); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) AddError(ctx context.Context, id, message string) error {
	for _, p := range m {
		if err := p.AddError(ctx, id, message); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) AddWarning(ctx context.Context, id, message string) error {
	for _, p := range m {
		if err := p.AddWarning(ctx, id, message); err != nil {
			return err
		}
	}
	return nil
}

func (m Multi) EditParallelGroupLabel(ctx context.Context, originalID, label string) error {
	for _, p := range m {
		if err := p.EditParallelGroupLabel(ctx, originalID, label); err != nil {
			return err
		}
	}
	return nil
}
