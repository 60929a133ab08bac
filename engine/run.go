// Package engine executes compiled cannoli graphs. A Run hydrates the typed
// graph into live objects, then advances their statuses through dependency
// completion events: sources execute first, completions cascade to dependents,
// and the run ends when every object is terminal, an error surfaces, or the
// caller stops it.
//
// Scheduling is a central loop owned by the Run: all transitions happen under
// one mutex and cascade synchronously to dependents; objects that become
// executable are drained into one goroutine per execute. Blocking work (LLM
// calls, HTTP, vault reads) runs outside the lock.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/DeabLabs/cannoli-sub001/actions"
	"github.com/DeabLabs/cannoli-sub001/canvas"
	"github.com/DeabLabs/cannoli-sub001/factory"
	"github.com/DeabLabs/cannoli-sub001/fetch"
	"github.com/DeabLabs/cannoli-sub001/log"
	"github.com/DeabLabs/cannoli-sub001/persist"
	"github.com/DeabLabs/cannoli-sub001/providers"
	"github.com/DeabLabs/cannoli-sub001/vault"
)

// StopReason is why a run ended.
type StopReason string

const (
	ReasonDone    StopReason = "done"
	ReasonError   StopReason = "error"
	ReasonStopped StopReason = "stopped"
)

// Stoppage is the terminal record of a run.
type Stoppage struct {
	Reason      StopReason
	ArgNames    []string
	ResultNames []string
	Results     map[string]string
	Description string
	Messages    []providers.Message
	TotalCost   float64
}

// SubCannoliFunc runs a nested canvas and returns its named results.
type SubCannoliFunc func(ctx context.Context, canvasJSON []byte, args map[string]string) (map[string]string, error)

// RunParams configures a run. CanvasJSON or Canvas must be set; everything
// else has a usable zero value.
type RunParams struct {
	CanvasJSON []byte
	Canvas     *canvas.Data

	// Args override the text of same-named input nodes.
	Args map[string]string

	// IsMock skips the post-reset repaint pause and, when no LLM is given,
	// installs an echoing mock provider.
	IsMock bool

	Persistor  persist.Persistor
	LLM        providers.LLM
	LLMConfigs []providers.Config
	Files      vault.FileInterface
	Fetcher    fetch.Fetcher
	Actions    []*actions.Action

	// Config seeds the resolved node config; config edges override it.
	Config  map[string]string
	Secrets map[string]string
	Extra   map[string]string

	// Replacers rewrite node text during hydration, before any execution.
	Replacers []func(text string) string

	// ChatFormat is the transcript template; empty means the default.
	ChatFormat string

	// ContentIsColorless flips the default kind of uncolored nodes.
	ContentIsColorless bool

	// CurrentNote resolves the {{NOTE}} special variable.
	CurrentNote string

	// Searcher backs search nodes. A nil Searcher downgrades them to a
	// warning that passes the query through.
	Searcher func(ctx context.Context, query string) (string, error)

	// MCP handles """mcp blocks on http nodes.
	MCP func(ctx context.Context, body string) (string, error)

	// SubCannoli runs nested canvases; nil recurses with these params.
	SubCannoli SubCannoliFunc

	Logger log.Logger
}

// Run is one execution of a compiled graph.
type Run struct {
	ID string

	mu     sync.Mutex
	graph  *factory.Graph
	nodes  map[string]*liveNode
	edges  map[string]*liveEdge
	groups map[string]*liveGroup

	// dependents maps an object to the objects whose dependency sets contain
	// it; the inverse of the compiled Dependencies lists.
	dependents map[string][]string

	// floating indexes floating variable nodes by name.
	floating map[string]*liveNode

	params    RunParams
	llm       providers.LLM
	files     vault.FileInterface
	fetcher   fetch.Fetcher
	registry  *actions.Registry
	persistor persist.Persistor
	logger    log.Logger
	format    providers.ChatFormat

	ctx    context.Context
	cancel context.CancelFunc

	ready    []string
	inflight int
	stopped  bool
	finished bool
	errDesc  string
	cost     float64

	result Stoppage
	doneCh chan struct{}
}

// NewRun compiles the canvas and hydrates live state. It returns an error
// only for malformed JSON or an empty canvas; per-object compile problems
// surface as error statuses once the run starts.
func NewRun(ctx context.Context, params RunParams) (*Run, error) {
	data := params.Canvas
	if data == nil {
		parsed, err := canvas.Parse(params.CanvasJSON)
		if err != nil {
			return nil, err
		}
		data = parsed
	}
	graph, err := factory.Compile(data, factory.Options{ContentIsColorless: params.ContentIsColorless})
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &Run{
		ID:         uuid.New().String(),
		graph:      graph,
		nodes:      make(map[string]*liveNode, len(graph.Nodes)),
		edges:      make(map[string]*liveEdge, len(graph.Edges)),
		groups:     make(map[string]*liveGroup, len(graph.Groups)),
		dependents: make(map[string][]string),
		floating:   make(map[string]*liveNode),
		params:     params,
		llm:        params.LLM,
		files:      params.Files,
		fetcher:    params.Fetcher,
		registry:   actions.NewRegistry(params.Actions),
		persistor:  params.Persistor,
		logger:     params.Logger,
		format:     providers.NewChatFormat(params.ChatFormat),
		ctx:        runCtx,
		cancel:     cancel,
		doneCh:     make(chan struct{}),
	}
	if r.llm == nil {
		if params.IsMock || len(params.LLMConfigs) == 0 {
			r.llm = providers.NewMock()
		} else {
			llm, err := providers.Select(params.LLMConfigs)
			if err != nil {
				cancel()
				return nil, err
			}
			r.llm = llm
		}
	}
	if r.persistor == nil {
		r.persistor = persist.Noop{}
	}
	if r.logger == nil {
		r.logger = log.GetDefaultLogger()
	}
	r.hydrate()
	return r, nil
}

func (r *Run) hydrate() {
	for id, spec := range r.graph.Nodes {
		n := &liveNode{spec: spec, status: StatusPending, text: spec.Text}
		if spec.Name != "" {
			if _, rest, ok := factory.ParseNodeName(spec.Text); ok {
				n.text = rest
			}
		}
		for _, replace := range r.params.Replacers {
			n.text = replace(n.text)
		}
		if spec.Type == factory.NodeInput {
			if value, ok := r.params.Args[r.argName(spec)]; ok {
				n.text = value
			}
		}
		r.nodes[id] = n
		if spec.Kind == factory.KindFloating {
			r.floating[spec.Name] = n
		}
	}
	for id, spec := range r.graph.Edges {
		r.edges[id] = &liveEdge{spec: spec, status: StatusPending}
	}
	for id, spec := range r.graph.Groups {
		r.groups[id] = &liveGroup{spec: spec, status: StatusPending, currentLoop: spec.CurrentLoop}
	}

	appendDeps := func(id string, deps []string) {
		for _, d := range deps {
			r.dependents[d] = append(r.dependents[d], id)
		}
	}
	for id, spec := range r.graph.Nodes {
		appendDeps(id, spec.Dependencies)
	}
	for id, spec := range r.graph.Edges {
		appendDeps(id, spec.Dependencies)
	}
	for id, spec := range r.graph.Groups {
		appendDeps(id, spec.Dependencies)
	}
	for _, deps := range r.dependents {
		sort.Strings(deps)
	}
}

// argName returns the effective name of an input or output node. Unnamed
// inputs and outputs get the conventional defaults so single-input flows can
// be driven without authoring names.
func (r *Run) argName(spec *factory.Node) string {
	if spec.Name != "" {
		return spec.Name
	}
	switch spec.Type {
	case factory.NodeInput:
		return "input"
	case factory.NodeOutput:
		return "output"
	}
	return spec.ID
}

// Start begins execution. It returns immediately; use Wait for the result.
func (r *Run) Start() {
	r.mu.Lock()
	if err := r.persistor.Start(r.ctx, r.graph); err != nil {
		r.logger.Warn("run %s: persistor start: %v", r.ID, err)
	}

	// Compile problems become error statuses before anything runs; their
	// dependents reject through the normal cascade.
	for _, id := range r.graph.SortedNodeIDs() {
		if msg := r.graph.Nodes[id].CompileError; msg != "" {
			r.failLocked(id, msg)
		}
	}
	for _, id := range r.graph.SortedEdgeIDs() {
		if msg := r.graph.Edges[id].CompileError; msg != "" {
			e := r.edges[id]
			if e.status == StatusPending {
				r.reportError(id, msg)
				r.setEdgeStatus(e, StatusError)
			}
		}
	}
	for _, id := range r.graph.SortedGroupIDs() {
		if msg := r.graph.Groups[id].CompileError; msg != "" {
			g := r.groups[id]
			if g.status == StatusPending {
				r.reportError(id, msg)
				r.setGroupStatus(g, StatusError)
			}
		}
	}

	// Floating variables are immutable value sources; they start complete.
	for _, id := range r.graph.SortedNodeIDs() {
		n := r.nodes[id]
		if n.spec.Kind == factory.KindFloating && n.status == StatusPending {
			r.setNodeStatus(n, StatusComplete)
		}
	}

	// Initial cascade: sources with no dependencies become ready.
	for _, id := range r.graph.SortedEdgeIDs() {
		r.evaluate(id)
	}
	for _, id := range r.graph.SortedGroupIDs() {
		r.evaluate(id)
	}
	for _, id := range r.graph.SortedNodeIDs() {
		r.evaluate(id)
	}
	r.mu.Unlock()
	r.dispatch()
}

// Wait blocks until the run ends.
func (r *Run) Wait() Stoppage {
	<-r.doneCh
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result
}

// Stop cancels the run. Safe to call more than once; the second call is a
// no-op.
func (r *Run) Stop() {
	r.mu.Lock()
	if r.stopped || r.finished {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()
	r.cancel()
	r.dispatch()
}

// dispatch drains the ready list, spawning one goroutine per executable
// node, then checks for termination. Must be called without the lock.
func (r *Run) dispatch() {
	r.mu.Lock()
	ready := r.ready
	r.ready = nil
	r.inflight += len(ready)
	r.mu.Unlock()

	for _, id := range ready {
		go r.executeNode(id)
	}
	r.maybeFinish()
}

// finishExecution rebalances bookkeeping after an execute goroutine ends.
func (r *Run) finishExecution() {
	r.mu.Lock()
	r.inflight--
	r.mu.Unlock()
	r.dispatch()
}

// maybeFinish ends the run when no further events are possible.
func (r *Run) maybeFinish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished || r.inflight > 0 || len(r.ready) > 0 {
		return
	}
	if r.stopped {
		r.finishLocked(ReasonStopped)
		return
	}
	settled := true
	for _, n := range r.nodes {
		if !n.status.Terminal() {
			settled = false
			break
		}
	}
	if settled {
		for _, g := range r.groups {
			if !g.status.Terminal() {
				settled = false
				break
			}
		}
	}
	if !settled {
		// No goroutine in flight and nothing ready: state can no longer
		// change, so an unsettled graph is stuck.
		if r.errDesc == "" {
			r.errDesc = "run stalled: unresolved dependencies remain"
		}
		r.finishLocked(ReasonError)
		return
	}
	if r.errDesc != "" {
		r.finishLocked(ReasonError)
		return
	}
	r.finishLocked(ReasonDone)
}

func (r *Run) finishLocked(reason StopReason) {
	if r.finished {
		return
	}
	r.finished = true
	r.result = r.buildStoppage(reason)
	r.cancel()
	close(r.doneCh)
	r.logger.Info("run %s finished: %s", r.ID, reason)
}

func (r *Run) buildStoppage(reason StopReason) Stoppage {
	s := Stoppage{
		Reason:      reason,
		Results:     make(map[string]string),
		Description: r.errDesc,
		TotalCost:   r.cost,
	}
	var messages []providers.Message
	for _, id := range r.graph.SortedNodeIDs() {
		n := r.nodes[id]
		switch n.spec.Type {
		case factory.NodeInput:
			s.ArgNames = append(s.ArgNames, r.argName(n.spec))
		case factory.NodeOutput:
			name := r.argName(n.spec)
			s.ResultNames = append(s.ResultNames, name)
			s.Results[name] = n.result
			for _, e := range r.graph.IncomingEdges(id) {
				le := r.edges[e.ID]
				if len(le.messages) > len(messages) {
					messages = le.messages
				}
			}
		}
	}
	s.Messages = messages
	return s
}

// fail records a fatal node problem and transitions the node to error.
// Must be called with the lock held.
func (r *Run) failLocked(id, msg string) {
	n := r.nodes[id]
	if n == nil || n.status.Terminal() {
		return
	}
	r.reportError(id, msg)
	r.setNodeStatus(n, StatusError)
}

func (r *Run) reportError(id, msg string) {
	if r.errDesc == "" {
		r.errDesc = fmt.Sprintf("%s: %s", id, msg)
	}
	r.logger.Error("object %s: %s", id, msg)
	if err := r.persistor.AddError(r.ctx, id, msg); err != nil {
		r.logger.Warn("persistor error report: %v", err)
	}
}

// warn records a recoverable problem without changing status.
// Must be called with the lock held.
func (r *Run) warn(id, msg string) {
	r.logger.Warn("object %s: %s", id, msg)
	if err := r.persistor.AddWarning(r.ctx, id, msg); err != nil {
		r.logger.Warn("persistor warning report: %v", err)
	}
}

// RunCannoli compiles and executes a canvas, blocking until it ends.
func RunCannoli(ctx context.Context, params RunParams) (Stoppage, error) {
	r, err := NewRun(ctx, params)
	if err != nil {
		return Stoppage{}, err
	}
	r.Start()
	return r.Wait(), nil
}

// RunWithControl starts a run and returns a result channel plus a stop
// handle. The channel delivers exactly one Stoppage.
func RunWithControl(ctx context.Context, params RunParams) (<-chan Stoppage, func(), error) {
	r, err := NewRun(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	out := make(chan Stoppage, 1)
	r.Start()
	go func() {
		out <- r.Wait()
		close(out)
	}()
	return out, r.Stop, nil
}
