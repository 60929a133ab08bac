package vault

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Memory is an in-memory FileInterface. It backs tests and mock runs and is
// the reference for how frontmatter properties are interpreted: a leading
// "---\n...\n---\n" block parsed as YAML.
type Memory struct {
	mu sync.Mutex

	notes     map[string]string // name -> body (including frontmatter)
	folders   map[string]string // name -> folder
	canvases  map[string][]byte
	files     map[string][]byte
	selection string
	hasSel    bool
}

var _ FileInterface = (*Memory)(nil)

// NewMemory returns an empty in-memory vault.
func NewMemory() *Memory {
	return &Memory{
		notes:    make(map[string]string),
		folders:  make(map[string]string),
		canvases: make(map[string][]byte),
		files:    make(map[string][]byte),
	}
}

// PutNote seeds a note.
func (v *Memory) PutNote(name, content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.notes[name] = content
}

// PutCanvas seeds a canvas file.
func (v *Memory) PutCanvas(name string, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.canvases[name] = data
}

// PutFile seeds a raw file.
func (v *Memory) PutFile(p string, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files[p] = data
}

// SetSelection seeds the editor selection.
func (v *Memory) SetSelection(content string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection = content
	v.hasSel = true
}

// GetNote implements FileInterface.
func (v *Memory) GetNote(_ context.Context, name string) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	content, ok := v.notes[name]
	return content, ok, nil
}

// EditNote implements FileInterface.
func (v *Memory) EditNote(_ context.Context, name, content string, appendTo bool) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	existing, ok := v.notes[name]
	if !ok {
		return false, nil
	}
	if appendTo {
		v.notes[name] = existing + content
	} else {
		v.notes[name] = content
	}
	return true, nil
}

// GetNotePath implements FileInterface.
func (v *Memory) GetNotePath(_ context.Context, name string) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.notes[name]; !ok {
		return "", false, nil
	}
	return path.Join(v.folders[name], name+".md"), true, nil
}

// GetSelection implements FileInterface.
func (v *Memory) GetSelection(context.Context) (string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selection, v.hasSel, nil
}

// EditSelection implements FileInterface.
func (v *Memory) EditSelection(_ context.Context, content string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selection = content
	v.hasSel = true
	return nil
}

// GetProperty implements FileInterface.
func (v *Memory) GetProperty(ctx context.Context, name, key string) (string, bool, error) {
	props, found, err := v.GetAllProperties(ctx, name)
	if err != nil || !found {
		return "", false, err
	}
	value, ok := props[key]
	return value, ok, nil
}

// GetAllProperties implements FileInterface.
func (v *Memory) GetAllProperties(_ context.Context, name string) (map[string]string, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	content, ok := v.notes[name]
	if !ok {
		return nil, false, nil
	}
	front, _ := splitFrontmatter(content)
	if front == "" {
		return map[string]string{}, true, nil
	}
	parsed := map[string]any{}
	if err := yaml.Unmarshal([]byte(front), &parsed); err != nil {
		return nil, true, fmt.Errorf("vault: bad frontmatter in %q: %w", name, err)
	}
	props := make(map[string]string, len(parsed))
	for k, val := range parsed {
		props[k] = fmt.Sprintf("%v", val)
	}
	return props, true, nil
}

// EditProperty implements FileInterface.
func (v *Memory) EditProperty(_ context.Context, name, key, value string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	content, ok := v.notes[name]
	if !ok {
		return false, nil
	}
	front, body := splitFrontmatter(content)
	parsed := map[string]any{}
	if front != "" {
		if err := yaml.Unmarshal([]byte(front), &parsed); err != nil {
			return true, fmt.Errorf("vault: bad frontmatter in %q: %w", name, err)
		}
	}
	parsed[key] = value
	rendered, err := yaml.Marshal(parsed)
	if err != nil {
		return true, err
	}
	v.notes[name] = "---\n" + string(rendered) + "---\n" + body
	return true, nil
}

// CreateNote implements FileInterface.
func (v *Memory) CreateNote(_ context.Context, name, folder, content string) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.notes[name]; exists {
		return "", fmt.Errorf("vault: note %q already exists", name)
	}
	v.notes[name] = content
	v.folders[name] = folder
	return path.Join(folder, name+".md"), nil
}

// GetCanvas implements FileInterface.
func (v *Memory) GetCanvas(_ context.Context, name string) ([]byte, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	data, ok := v.canvases[name]
	return data, ok, nil
}

// GetFile implements FileInterface.
func (v *Memory) GetFile(_ context.Context, p string) ([]byte, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	data, ok := v.files[p]
	return data, ok, nil
}

// splitFrontmatter splits a note body into its YAML frontmatter (without
// delimiters) and the remaining text.
func splitFrontmatter(content string) (front, body string) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content
	}
	rest := content[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", content
	}
	front = rest[:end+1]
	body = rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return front, body
}

// RenderFrontmatter renders a property map as a YAML frontmatter block.
func RenderFrontmatter(props map[string]string) (string, error) {
	if len(props) == 0 {
		return "", nil
	}
	rendered, err := yaml.Marshal(props)
	if err != nil {
		return "", err
	}
	return "---\n" + string(rendered) + "---\n", nil
}
