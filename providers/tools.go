package providers

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// Built-in tools the engine forces on call-node variants. The schemas match
// what choose, form and note-select nodes expect back.

// ChoiceTool returns the tool a choose node forces, with one enum entry per
// outgoing choice-edge label.
func ChoiceTool(choices []string) Function {
	return Function{
		Name:        "choice",
		Description: "Choose one of the provided options.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"choice": map[string]any{
					"type": "string",
					"enum": choices,
				},
			},
			"required": []string{"choice"},
		},
	}
}

// FormTool returns the tool a form node forces, with one string property per
// outgoing field-edge label.
func FormTool(fields []string) Function {
	props := make(map[string]any, len(fields))
	for _, f := range fields {
		props[f] = map[string]any{"type": "string"}
	}
	return Function{
		Name:        "form",
		Description: "Fill out every field of the form.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   fields,
		},
	}
}

// NoteSelectTool returns the tool used to pick a note name from a list.
func NoteSelectTool(notes []string) Function {
	return Function{
		Name:        "note_select",
		Description: "Select the most relevant note.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"note": map[string]any{
					"type": "string",
					"enum": notes,
				},
			},
			"required": []string{"note"},
		},
	}
}

// ParseToolArguments decodes a tool call's argument JSON into a flat string
// map. Models routinely emit slightly broken JSON (trailing commas, single
// quotes, unescaped newlines), so a failed decode goes through jsonrepair
// before giving up.
func ParseToolArguments(call *FunctionCall) (map[string]string, error) {
	if call == nil {
		return nil, fmt.Errorf("providers: no function call in response")
	}
	raw := map[string]any{}
	if err := json.Unmarshal([]byte(call.Arguments), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(call.Arguments)
		if repairErr != nil {
			return nil, fmt.Errorf("providers: unparseable %s arguments: %w", call.Name, err)
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return nil, fmt.Errorf("providers: unparseable %s arguments after repair: %w", call.Name, err)
		}
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("providers: argument %q: %w", k, err)
			}
			out[k] = string(b)
		}
	}
	return out, nil
}
