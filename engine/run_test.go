package engine

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeabLabs/cannoli-sub001/actions"
	"github.com/DeabLabs/cannoli-sub001/canvas"
	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/fetch"
	"github.com/DeabLabs/cannoli-sub001/providers"
	"github.com/DeabLabs/cannoli-sub001/vault"
)

func tnode(id, color, text string, x, y float64) *canvas.Node {
	return &canvas.Node{
		ID: id, Type: canvas.NodeTypeText, Color: color, Text: text,
		X: x, Y: y, Width: 220, Height: 120,
	}
}

func gnode(id, label string, x, y, w, h float64) *canvas.Node {
	return &canvas.Node{
		ID: id, Type: canvas.NodeTypeGroup, Label: label,
		X: x, Y: y, Width: w, Height: h,
	}
}

func cedge(id, from, to, label string) *canvas.Edge {
	return &canvas.Edge{ID: id, FromNode: from, ToNode: to, Label: label}
}

// recordingPersistor captures every callback for assertions.
type recordingPersistor struct {
	mu       sync.Mutex
	events   map[string][]string
	labels   []string
	errors   []string
	warnings []string
}

func newRecordingPersistor() *recordingPersistor {
	return &recordingPersistor{events: make(map[string][]string)}
}

func (p *recordingPersistor) Start(context.Context, *factory.Graph) error { return nil }

func (p *recordingPersistor) EditNode(_ context.Context, id, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[id] = append(p.events[id], status)
	return nil
}

func (p *recordingPersistor) EditEdge(_ context.Context, id, status string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[id] = append(p.events[id], status)
	return nil
}

func (p *recordingPersistor) AddError(_ context.Context, id, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, id+": "+message)
	return nil
}

func (p *recordingPersistor) AddWarning(_ context.Context, id, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warnings = append(p.warnings, id+": "+message)
	return nil
}

func (p *recordingPersistor) EditParallelGroupLabel(_ context.Context, _, label string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.labels = append(p.labels, label)
	return nil
}

func (p *recordingPersistor) count(id, status string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.events[id] {
		if s == status {
			n++
		}
	}
	return n
}

func mustRun(t *testing.T, params RunParams) (*Run, Stoppage) {
	t.Helper()
	r, err := NewRun(context.Background(), params)
	require.NoError(t, err)
	r.Start()
	return r, r.Wait()
}

func TestLinearFlow(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("in", "4", "[question]\nWhat is Go?", 0, 0),
			tnode("call", "", "{{question}}", 400, 0),
			tnode("out", "4", "", 800, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "in", "call", "question"),
			cedge("e2", "call", "out", ""),
		},
	}

	_, st := mustRun(t, RunParams{
		Canvas: data,
		IsMock: true,
		LLM:    providers.NewMockScript("Go is a language."),
	})

	require.Equal(t, ReasonDone, st.Reason)
	assert.Equal(t, []string{"question"}, st.ArgNames)
	assert.Equal(t, []string{"output"}, st.ResultNames)
	assert.Equal(t, "Go is a language.", st.Results["output"])
}

func TestArgsOverrideInputText(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("in", "4", "[question]\ndefault question", 0, 0),
			tnode("call", "", "{{question}}", 400, 0),
			tnode("out", "4", "", 800, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "in", "call", "question"),
			cedge("e2", "call", "out", ""),
		},
	}

	// The default mock echoes the last user message, so the result shows
	// exactly what the call node rendered.
	_, st := mustRun(t, RunParams{
		Canvas: data,
		IsMock: true,
		Args:   map[string]string{"question": "What is Rust?"},
	})

	require.Equal(t, ReasonDone, st.Reason)
	assert.Equal(t, "What is Rust?", st.Results["output"])
}

func TestChooseRejectsUnselectedBranches(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("pick", "", "Pick a branch", 0, 0),
			tnode("a", "4", "[resLeft]", 400, 0),
			tnode("b", "4", "[resRight]", 400, 200),
		},
		Edges: []*canvas.Edge{
			cedge("eLeft", "pick", "a", "?left"),
			cedge("eRight", "pick", "b", "?right"),
		},
	}

	llm := providers.NewMock()
	llm.QueueFunctionCall("choice", `{"choice":"left"}`)

	r, st := mustRun(t, RunParams{Canvas: data, IsMock: true, LLM: llm})

	require.Equal(t, ReasonDone, st.Reason)
	assert.Equal(t, StatusComplete, r.nodes["a"].status)
	assert.Equal(t, StatusRejected, r.nodes["b"].status)
	assert.Equal(t, StatusRejected, r.edges["eRight"].status)
	assert.Equal(t, "left", st.Results["resLeft"])
	assert.Empty(t, st.Results["resRight"])
}

func TestRepeatGroupLoops(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			gnode("g", "3", 0, 0, 400, 300),
			tnode("c", "", "Iterate", 50, 50),
			tnode("out", "4", "", 800, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "c", "out", ""),
		},
	}

	rec := newRecordingPersistor()
	r, st := mustRun(t, RunParams{
		Canvas:    data,
		IsMock:    true,
		LLM:       providers.NewMockScript("r1", "r2", "r3"),
		Persistor: rec,
	})

	require.Equal(t, ReasonDone, st.Reason)
	assert.Equal(t, "r3", st.Results["output"])
	assert.Equal(t, 3, r.groups["g"].currentLoop)
	assert.Equal(t, 3, r.nodes["c"].executions)
	assert.Equal(t, 3, rec.count("g", statusVersionComplete))
}

func TestForEachFanInRendersTable(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("src", "4", "- a\n- b\n- c", 0, 0),
			gnode("g", "1/3", 1000, 0, 500, 400),
			tnode("c", "", "{{items}}", 1050, 50),
			tnode("merge", "4", "", 2000, 0),
		},
		Edges: []*canvas.Edge{
			cedge("eList", "src", "g", "<items"),
			cedge("eOut", "c", "merge", "^result"),
		},
	}

	rec := newRecordingPersistor()
	_, st := mustRun(t, RunParams{Canvas: data, IsMock: true, Persistor: rec})

	require.Equal(t, ReasonDone, st.Reason)
	want := strings.Join([]string{
		"| | result |",
		"| --- | --- |",
		"| a | a |",
		"| b | b |",
		"| c | c |",
	}, "\n")
	assert.Equal(t, want, st.Results["output"])

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.labels)
	assert.Equal(t, "3/3", rec.labels[len(rec.labels)-1])
}

func TestHTTPErrorAborts(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("h", "2", "https://api.test/x", 0, 0),
			tnode("out", "4", "", 400, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "h", "out", ""),
		},
	}

	r, st := mustRun(t, RunParams{
		Canvas: data,
		IsMock: true,
		Fetcher: &fetch.Mock{Responses: map[string]fetch.Response{
			"https://api.test/x": {StatusCode: 500, Body: "boom"},
		}},
	})

	require.Equal(t, ReasonError, st.Reason)
	assert.Contains(t, st.Description, "http 500")
	assert.Equal(t, StatusError, r.nodes["h"].status)
	assert.Equal(t, StatusRejected, r.nodes["out"].status)
}

func TestHTTPCatchFalseRoutesErrorText(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("h", "2", "https://api.test/x", 0, 0),
			tnode("out", "4", "", 400, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "h", "out", ""),
		},
	}

	r, st := mustRun(t, RunParams{
		Canvas: data,
		IsMock: true,
		Config: map[string]string{"catch": "false"},
		Fetcher: &fetch.Mock{Responses: map[string]fetch.Response{
			"https://api.test/x": {StatusCode: 500, Body: "boom"},
		}},
	})

	require.Equal(t, ReasonDone, st.Reason)
	assert.Equal(t, StatusComplete, r.nodes["h"].status)
	assert.Equal(t, "http 500: boom", st.Results["output"])
}

func TestStreamingFormatsChatResponseEdge(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("s", "", "Say hi", 0, 0),
			tnode("out", "4", "", 400, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "s", "out", "@"),
		},
	}

	_, st := mustRun(t, RunParams{
		Canvas: data,
		IsMock: true,
		LLM:    providers.NewMockScript("hi there"),
	})

	require.Equal(t, ReasonDone, st.Reason)
	format := providers.NewChatFormat("")
	want := format.Header(providers.RoleAssistant) + "hi there" +
		"\n\n" + format.Header(providers.RoleUser)
	assert.Equal(t, want, st.Results["output"])
}

func TestLoggingRecordTranscript(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("sys", "4", "Be brief", 0, 0),
			tnode("call", "", "Hello", 400, 0),
			tnode("log", "4", "", 800, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "sys", "call", ""),
			cedge("e2", "call", "log", "*"),
		},
	}

	_, st := mustRun(t, RunParams{
		Canvas: data,
		IsMock: true,
		LLM:    providers.NewMockScript("Hi"),
		Config: map[string]string{"model": "gpt-4o", "api_key": "sk-test"},
	})

	require.Equal(t, ReasonDone, st.Reason)
	record := st.Results["output"]
	assert.Equal(t, 1, strings.Count(record, "# <u>System</u>"))
	assert.Contains(t, record, "Be brief")
	assert.Contains(t, record, "# <u>Assistant</u>")
	assert.Contains(t, record, "Hi")
	assert.Contains(t, record, `"model": "gpt-4o"`)
	assert.NotContains(t, record, "sk-test")
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("in", "4", "hello", 0, 0),
			tnode("out", "4", "", 400, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "in", "out", ""),
		},
	}

	r, err := NewRun(context.Background(), RunParams{Canvas: data, IsMock: true})
	require.NoError(t, err)
	r.Stop()
	r.Stop()
	st := r.Wait()
	assert.Equal(t, ReasonStopped, st.Reason)
}

func TestCompileErrorRejectsDependents(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("bad", "4", "[NOTE]\nx", 0, 0),
			tnode("call", "", "{{NOTE}}", 400, 0),
			tnode("out", "4", "", 800, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "bad", "call", "NOTE"),
			cedge("e2", "call", "out", ""),
		},
	}

	r, st := mustRun(t, RunParams{Canvas: data, IsMock: true})

	require.Equal(t, ReasonError, st.Reason)
	assert.Contains(t, st.Description, "reserved name")
	assert.Equal(t, StatusError, r.nodes["bad"].status)
	assert.Equal(t, StatusRejected, r.edges["e1"].status)
	assert.Equal(t, StatusRejected, r.nodes["call"].status)
	assert.Equal(t, StatusRejected, r.nodes["out"].status)
}

func TestMissingNoteWarnsAndPassesLiteral(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("ref", "4", "{{[[Missing]]}}", 0, 0),
			tnode("out", "4", "", 400, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "ref", "out", ""),
		},
	}

	rec := newRecordingPersistor()
	r, st := mustRun(t, RunParams{
		Canvas:    data,
		IsMock:    true,
		Files:     vault.NewMemory(),
		Persistor: rec,
	})

	require.Equal(t, ReasonDone, st.Reason)
	assert.Equal(t, StatusWarning, r.nodes["ref"].status)
	assert.Equal(t, "{{[[Missing]]}}", st.Results["output"])
	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NotEmpty(t, rec.warnings)
	assert.Contains(t, rec.warnings[0], "note not found: Missing")
}

func TestReferenceWriteAndRead(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("in", "4", "fresh content", 0, 0),
			tnode("ref", "4", "{{[[Target]]}}", 400, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "in", "ref", ""),
		},
	}

	files := vault.NewMemory()
	files.PutNote("Target", "old content")

	_, st := mustRun(t, RunParams{Canvas: data, IsMock: true, Files: files})

	require.Equal(t, ReasonDone, st.Reason)
	got, found, err := files.GetNote(context.Background(), "Target")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "fresh content", got)
}

func TestSubCannoliRoutesResults(t *testing.T) {
	t.Parallel()
	child := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("cin", "4", "[x]\nfallback", 0, 0),
			tnode("ccall", "", "{{x}}", 400, 0),
			tnode("cout", "4", "", 800, 0),
		},
		Edges: []*canvas.Edge{
			cedge("ce1", "cin", "ccall", "x"),
			cedge("ce2", "ccall", "cout", ""),
		},
	}
	childJSON, err := child.Marshal()
	require.NoError(t, err)

	files := vault.NewMemory()
	files.PutCanvas("child", childJSON)

	parent := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("pin", "4", "[x]\nhello", 0, 0),
			tnode("sub", "", "{{[[child.canvas]]}}", 400, 0),
			tnode("pout", "4", "", 800, 0),
		},
		Edges: []*canvas.Edge{
			cedge("pe1", "pin", "sub", "x"),
			cedge("pe2", "sub", "pout", "output"),
		},
	}

	_, st := mustRun(t, RunParams{Canvas: parent, IsMock: true, Files: files})

	require.Equal(t, ReasonDone, st.Reason)
	assert.Equal(t, "hello", st.Results["output"])
}

func TestHTTPActionDispatch(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("in", "4", "[name]\nWorld", 0, 0),
			tnode("h", "2", "greet", 400, 0),
			tnode("out", "4", "", 800, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "in", "h", "name"),
			cedge("e2", "h", "out", ""),
		},
	}

	greet := &actions.Action{
		Name: "greet",
		Fn: func(name string) (string, error) {
			return "Hello " + name, nil
		},
		Args: []actions.ArgSpec{
			{Name: "name", Category: actions.CategoryArg, Type: actions.TypeString},
		},
	}

	_, st := mustRun(t, RunParams{
		Canvas:  data,
		IsMock:  true,
		Actions: []*actions.Action{greet},
	})

	require.Equal(t, ReasonDone, st.Reason)
	assert.Equal(t, "Hello World", st.Results["output"])
}

func TestHTTPTemplateRequest(t *testing.T) {
	t.Parallel()
	data := &canvas.Data{
		Nodes: []*canvas.Node{
			tnode("tmpl", "", "[req]\n{\"url\":\"https://api.test/y\",\"method\":\"POST\",\"body\":\"{{q}}\"}", 0, 400),
			tnode("in", "4", "[q]\nhello", 0, 0),
			tnode("h", "2", "req", 400, 0),
			tnode("out", "4", "", 800, 0),
		},
		Edges: []*canvas.Edge{
			cedge("e1", "in", "h", "q"),
			cedge("e2", "h", "out", ""),
		},
	}

	fetcher := &fetch.Mock{Responses: map[string]fetch.Response{
		"https://api.test/y": {StatusCode: 200, Body: "ok"},
	}}
	_, st := mustRun(t, RunParams{Canvas: data, IsMock: true, Fetcher: fetcher})

	require.Equal(t, ReasonDone, st.Reason)
	assert.Equal(t, "ok", st.Results["output"])
	require.Len(t, fetcher.Requests, 1)
	assert.Equal(t, "POST", fetcher.Requests[0].Method)
	assert.Equal(t, "hello", fetcher.Requests[0].Body)
}
