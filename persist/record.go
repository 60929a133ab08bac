package persist

import (
	"context"

	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/store"
)

// Recorder appends every transition, warning and error of a run to a
// store.Store for later inspection.
type Recorder struct {
	RunID string
	Store store.Store
}

var _ Persistor = (*Recorder)(nil)

// NewRecorder records under the given run ID.
func NewRecorder(runID string, s store.Store) *Recorder {
	return &Recorder{RunID: runID, Store: s}
}

func (r *Recorder) append(ctx context.Context, kind store.RecordKind, objectID, status, content string) error {
	rec := store.NewRecord(r.RunID, kind)
	rec.ObjectID = objectID
	rec.Status = status
	rec.Content = content
	return r.Store.Append(ctx, rec)
}

// Start implements Persistor.
func (r *Recorder) Start(ctx context.Context, _ *factory.Graph) error {
	return r.append(ctx, store.KindTransition, "", "started", "")
}

// EditNode implements Persistor.
func (r *Recorder) EditNode(ctx context.Context, id, status string) error {
	return r.append(ctx, store.KindTransition, id, status, "")
}

// EditEdge implements Persistor.
func (r *Recorder) EditEdge(ctx context.Context, id, status string) error {
	return r.append(ctx, store.KindTransition, id, status, "")
}

// AddError implements Persistor.
func (r *Recorder) AddError(ctx context.Context, id, message string) error {
	return r.append(ctx, store.KindError, id, "", message)
}

// AddWarning implements Persistor.
func (r *Recorder) AddWarning(ctx context.Context, id, message string) error {
	return r.append(ctx, store.KindWarning, id, "", message)
}

// EditParallelGroupLabel implements Persistor. Label updates are progress
// display only and are not recorded.
func (r *Recorder) EditParallelGroupLabel(context.Context, string, string) error {
	return nil
}

// SaveTranscript stores the final Markdown transcript of the run.
func (r *Recorder) SaveTranscript(ctx context.Context, transcript string) error {
	return r.append(ctx, store.KindTranscript, "", "", transcript)
}
