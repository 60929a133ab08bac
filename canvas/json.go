package canvas

import "encoding/json"

// The canvas format is produced by host applications that attach their own
// keys (zoom state, styling, plugin metadata). Each struct keeps the keys it
// does not model in an extra map and merges them back on encode.

func decodeWithExtra(data []byte, v any, known map[string]bool) (map[string]json.RawMessage, error) {
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, val := range raw {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = val
	}
	return extra, nil
}

func encodeWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, val := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = val
		}
	}
	return json.Marshal(merged)
}

var nodeKeys = map[string]bool{
	"id": true, "type": true, "x": true, "y": true, "width": true,
	"height": true, "color": true, "text": true, "file": true,
	"url": true, "label": true,
}

type nodeAlias Node

// UnmarshalJSON decodes a node, keeping unknown keys.
func (n *Node) UnmarshalJSON(data []byte) error {
	extra, err := decodeWithExtra(data, (*nodeAlias)(n), nodeKeys)
	if err != nil {
		return err
	}
	n.extra = extra
	return nil
}

// MarshalJSON encodes a node, restoring unknown keys.
func (n *Node) MarshalJSON() ([]byte, error) {
	return encodeWithExtra((*nodeAlias)(n), n.extra)
}

var edgeKeys = map[string]bool{
	"id": true, "fromNode": true, "fromSide": true, "fromEnd": true,
	"toNode": true, "toSide": true, "toEnd": true, "color": true,
	"label": true,
}

type edgeAlias Edge

// UnmarshalJSON decodes an edge, keeping unknown keys.
func (e *Edge) UnmarshalJSON(data []byte) error {
	extra, err := decodeWithExtra(data, (*edgeAlias)(e), edgeKeys)
	if err != nil {
		return err
	}
	e.extra = extra
	return nil
}

// MarshalJSON encodes an edge, restoring unknown keys.
func (e *Edge) MarshalJSON() ([]byte, error) {
	return encodeWithExtra((*edgeAlias)(e), e.extra)
}

var dataKeys = map[string]bool{
	"nodes": true, "edges": true, "settings": true, "args": true,
}

type dataAlias Data

// UnmarshalJSON decodes a canvas, keeping unknown top-level keys.
func (c *Data) UnmarshalJSON(data []byte) error {
	extra, err := decodeWithExtra(data, (*dataAlias)(c), dataKeys)
	if err != nil {
		return err
	}
	c.extra = extra
	return nil
}

// MarshalJSON encodes a canvas, restoring unknown top-level keys.
func (c *Data) MarshalJSON() ([]byte, error) {
	return encodeWithExtra((*dataAlias)(c), c.extra)
}
