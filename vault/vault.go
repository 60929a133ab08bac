// Package vault abstracts the note store that reference nodes read and write.
// The engine never touches disk directly; hosts provide a FileInterface and
// tests use the in-memory implementation.
package vault

import "context"

// FileInterface is the file backend consumed by reference, content and
// sub-cannoli nodes. Getters return found=false to signal absence; the
// engine surfaces absence as a warning, not an error.
type FileInterface interface {
	// GetNote returns a note's body by name.
	GetNote(ctx context.Context, name string) (content string, found bool, err error)

	// EditNote overwrites or appends to a note's body.
	EditNote(ctx context.Context, name, content string, append bool) (found bool, err error)

	// GetNotePath returns the vault-relative path of a note.
	GetNotePath(ctx context.Context, name string) (path string, found bool, err error)

	// GetSelection returns the host editor's current selection.
	GetSelection(ctx context.Context) (content string, found bool, err error)

	// EditSelection replaces the host editor's current selection.
	EditSelection(ctx context.Context, content string) error

	// GetProperty reads a single frontmatter property of a note.
	GetProperty(ctx context.Context, name, key string) (value string, found bool, err error)

	// GetAllProperties reads every frontmatter property of a note.
	GetAllProperties(ctx context.Context, name string) (props map[string]string, found bool, err error)

	// EditProperty writes a single frontmatter property of a note.
	EditProperty(ctx context.Context, name, key, value string) (found bool, err error)

	// CreateNote creates a note and returns its path. An empty folder means
	// the vault root.
	CreateNote(ctx context.Context, name, folder, content string) (path string, err error)

	// GetCanvas returns the raw JSON of a canvas file, for sub-cannoli nodes.
	GetCanvas(ctx context.Context, name string) (data []byte, found bool, err error)

	// GetFile returns raw file bytes, used for image embeds.
	GetFile(ctx context.Context, path string) (data []byte, found bool, err error)
}
