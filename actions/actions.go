// Package actions implements the pluggable action registry http nodes
// dispatch to. An action is a plain Go function; the registry reflects over
// its signature and feeds each parameter according to its declared category,
// so action authors never unpack argument maps by hand.
package actions

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/DeabLabs/cannoli-sub001/fetch"
	"github.com/DeabLabs/cannoli-sub001/vault"
)

// Category tells the dispatcher where a parameter's value comes from.
type Category string

const (
	// CategoryArg values come from the node's incoming variables.
	CategoryArg Category = "arg"
	// CategoryConfig values come from the resolved node config.
	CategoryConfig Category = "config"
	// CategorySecret values come from the run's secrets.
	CategorySecret Category = "secret"
	// CategoryFileManager injects the run's vault.FileInterface.
	CategoryFileManager Category = "fileManager"
	// CategoryFetcher injects the run's fetch.Fetcher.
	CategoryFetcher Category = "fetcher"
	// CategoryExtra values come from host-provided extras.
	CategoryExtra Category = "extra"
)

// ArgType is the wire type an arg/config/secret value is coerced to.
type ArgType string

const (
	TypeString      ArgType = "string"
	TypeNumber      ArgType = "number"
	TypeBoolean     ArgType = "boolean"
	TypeStringArray ArgType = "string[]"
)

// ArgSpec describes one parameter of an action function, in declaration
// order (an optional leading context.Context is not listed).
type ArgSpec struct {
	Name     string
	Category Category
	Type     ArgType
	Optional bool
}

// Action is a named operation an http node can invoke.
type Action struct {
	Name string

	// Fn is the action function. Its parameters, after an optional leading
	// context.Context, correspond one-to-one with Args.
	Fn any

	// Receive, when set, makes this a two-phase action: the first execution
	// stores Fn's result as receive info, the next one passes it here.
	Receive func(ctx context.Context, info string) (any, error)

	// Args describe Fn's parameters.
	Args []ArgSpec

	// ResultKeys, when set, name the object keys the action returns; they are
	// matched against outgoing edge labels for routed results.
	ResultKeys []string
}

// Env carries the per-run collaborators injected into action parameters.
type Env struct {
	Config  map[string]string
	Secrets map[string]string
	Files   vault.FileInterface
	Fetcher fetch.Fetcher
	Extra   map[string]string
}

// Registry is a name-indexed action set.
type Registry struct {
	actions map[string]*Action
}

// NewRegistry builds a registry from a list of actions.
func NewRegistry(actions []*Action) *Registry {
	r := &Registry{actions: make(map[string]*Action, len(actions))}
	for _, a := range actions {
		r.actions[a.Name] = a
	}
	return r
}

// Get returns the action with the given name.
func (r *Registry) Get(name string) (*Action, bool) {
	if r == nil {
		return nil, false
	}
	a, ok := r.actions[name]
	return a, ok
}

var (
	ctxType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType     = reflect.TypeOf((*error)(nil)).Elem()
	filesType   = reflect.TypeOf((*vault.FileInterface)(nil)).Elem()
	fetcherType = reflect.TypeOf((*fetch.Fetcher)(nil)).Elem()
)

// Invoke dispatches an action. values holds the node's incoming variables
// keyed by name; env supplies everything else.
func Invoke(ctx context.Context, action *Action, values map[string]string, env Env) (any, error) {
	fn := reflect.ValueOf(action.Fn)
	if fn.Kind() != reflect.Func {
		return nil, fmt.Errorf("actions: %s: Fn is %T, not a function", action.Name, action.Fn)
	}
	ft := fn.Type()

	in := make([]reflect.Value, 0, ft.NumIn())
	param := 0
	if ft.NumIn() > 0 && ft.In(0) == ctxType {
		in = append(in, reflect.ValueOf(ctx))
		param = 1
	}
	if ft.NumIn()-param != len(action.Args) {
		return nil, fmt.Errorf("actions: %s: %d args declared, function takes %d",
			action.Name, len(action.Args), ft.NumIn()-param)
	}

	for i, spec := range action.Args {
		pt := ft.In(param + i)
		val, err := resolveArg(spec, pt, values, env)
		if err != nil {
			return nil, fmt.Errorf("actions: %s: %w", action.Name, err)
		}
		in = append(in, val)
	}

	out := fn.Call(in)
	switch len(out) {
	case 1:
		return unwrapResult(out[0])
	case 2:
		if !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return unwrapResult(out[0])
	default:
		return nil, fmt.Errorf("actions: %s: function must return (T) or (T, error)", action.Name)
	}
}

func unwrapResult(v reflect.Value) (any, error) {
	if v.Kind() == reflect.Interface && v.IsNil() {
		return nil, nil
	}
	return v.Interface(), nil
}

func resolveArg(spec ArgSpec, pt reflect.Type, values map[string]string, env Env) (reflect.Value, error) {
	switch spec.Category {
	case CategoryFileManager:
		if env.Files == nil {
			return reflect.Zero(filesType), nil
		}
		return reflect.ValueOf(env.Files), nil
	case CategoryFetcher:
		if env.Fetcher == nil {
			return reflect.Zero(fetcherType), nil
		}
		return reflect.ValueOf(env.Fetcher), nil
	case CategoryConfig:
		return coerce(spec, env.Config[spec.Name], pt)
	case CategorySecret:
		return coerce(spec, env.Secrets[spec.Name], pt)
	case CategoryExtra:
		return coerce(spec, env.Extra[spec.Name], pt)
	default:
		raw, ok := values[spec.Name]
		if !ok && !spec.Optional {
			return reflect.Value{}, fmt.Errorf("missing argument %q", spec.Name)
		}
		return coerce(spec, raw, pt)
	}
}

func coerce(spec ArgSpec, raw string, pt reflect.Type) (reflect.Value, error) {
	switch spec.Type {
	case TypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil && raw != "" {
			return reflect.Value{}, fmt.Errorf("argument %q: %q is not a number", spec.Name, raw)
		}
		v := reflect.New(pt).Elem()
		switch pt.Kind() {
		case reflect.Float32, reflect.Float64:
			v.SetFloat(f)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			v.SetInt(int64(f))
		default:
			return reflect.Value{}, fmt.Errorf("argument %q: numeric arg needs numeric parameter, got %s", spec.Name, pt)
		}
		return v, nil
	case TypeBoolean:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil && raw != "" {
			return reflect.Value{}, fmt.Errorf("argument %q: %q is not a boolean", spec.Name, raw)
		}
		return reflect.ValueOf(b).Convert(pt), nil
	case TypeStringArray:
		var items []string
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &items); err != nil {
				// Fall back to newline-separated list items.
				for _, line := range strings.Split(raw, "\n") {
					line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
					if line != "" {
						items = append(items, line)
					}
				}
			}
		}
		return reflect.ValueOf(items), nil
	default:
		return reflect.ValueOf(raw).Convert(pt), nil
	}
}

// CoerceResponse turns an action's return value into edge-loadable output.
// When every label in edgeLabels matches a key of an object result, the
// values are routed per-edge; otherwise objects and arrays are JSON-encoded
// into content. Error results are returned as err when catch is true and as
// plain content otherwise.
func CoerceResponse(result any, catch bool, edgeLabels []string) (content string, routed map[string]string, err error) {
	switch v := result.(type) {
	case nil:
		return "", nil, nil
	case error:
		if catch {
			return "", nil, v
		}
		return v.Error(), nil, nil
	case string:
		return v, nil, nil
	case map[string]string:
		anyMap := make(map[string]any, len(v))
		for k, val := range v {
			anyMap[k] = val
		}
		return coerceObject(anyMap, edgeLabels)
	case map[string]any:
		return coerceObject(v, edgeLabels)
	default:
		b, jsonErr := json.Marshal(v)
		if jsonErr != nil {
			return fmt.Sprintf("%v", v), nil, nil
		}
		return string(b), nil, nil
	}
}

func coerceObject(obj map[string]any, edgeLabels []string) (string, map[string]string, error) {
	if len(edgeLabels) > 0 {
		allMatch := true
		for _, label := range edgeLabels {
			if _, ok := obj[label]; !ok {
				allMatch = false
				break
			}
		}
		if allMatch {
			routed := make(map[string]string, len(edgeLabels))
			for _, label := range edgeLabels {
				routed[label] = stringify(obj[label])
			}
			return "", routed, nil
		}
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "", nil, err
	}
	return string(b), nil, nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
