package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/DeabLabs/cannoli-sub001/factory"
)

// resetPause is how long a repeat group waits after a body reset so a
// persistor can repaint the canvas. Mock runs skip it.
const resetPause = 20 * time.Millisecond

// Status transitions. All three helpers require the lock and synchronously
// cascade to dependents, so readiness checks always observe a consistent
// snapshot.

func (r *Run) setNodeStatus(n *liveNode, st Status) {
	n.status = st
	r.logger.Debug("node %s -> %s", n.spec.ID, st)
	if err := r.persistor.EditNode(r.ctx, n.spec.ID, string(st)); err != nil {
		r.logger.Warn("persistor: %v", err)
	}
	r.notifyDependents(n.spec.ID)
}

func (r *Run) setEdgeStatus(e *liveEdge, st Status) {
	e.status = st
	r.logger.Debug("edge %s -> %s", e.spec.ID, st)
	if err := r.persistor.EditEdge(r.ctx, e.spec.ID, string(st)); err != nil {
		r.logger.Warn("persistor: %v", err)
	}
	r.notifyDependents(e.spec.ID)
}

func (r *Run) setGroupStatus(g *liveGroup, st Status) {
	g.status = st
	r.logger.Debug("group %s -> %s", g.spec.ID, st)
	// Groups are canvas nodes; they mirror through EditNode.
	if err := r.persistor.EditNode(r.ctx, g.spec.ID, string(st)); err != nil {
		r.logger.Warn("persistor: %v", err)
	}
	r.notifyDependents(g.spec.ID)
	if st == StatusComplete && g.spec.FromForEach {
		r.updateParallelLabel(g.spec.OriginalObject)
	}
}

func (r *Run) notifyDependents(id string) {
	for _, dep := range r.dependents[id] {
		r.evaluate(dep)
	}
}

// evaluate re-tests one object's readiness and rejection predicates. The
// predicates never latch; they are recomputed on every dependency update.
func (r *Run) evaluate(id string) {
	if r.finished || r.stopped {
		return
	}
	if e, ok := r.edges[id]; ok {
		r.evaluateEdge(e)
		return
	}
	if g, ok := r.groups[id]; ok {
		r.evaluateGroup(g)
		return
	}
	if n, ok := r.nodes[id]; ok {
		r.evaluateNode(n)
	}
}

// evaluateEdge completes an edge once its source and every group it leaves
// are done. Edges are value carriers: their content was deposited by the
// source's completion, so "execution" only flips the status.
func (r *Run) evaluateEdge(e *liveEdge) {
	if e.status != StatusPending {
		return
	}
	for _, dep := range e.spec.Dependencies {
		if r.statusOf(dep).Dead() {
			r.setEdgeStatus(e, StatusRejected)
			return
		}
	}
	for _, dep := range e.spec.Dependencies {
		if !r.statusOf(dep).Satisfied() {
			return
		}
	}
	r.fillVersionHeaders(e)
	r.deliverItem(e)
	r.setEdgeStatus(e, StatusComplete)
}

func (r *Run) evaluateNode(n *liveNode) {
	if n.status != StatusPending {
		return
	}
	slots := r.depSlots(n.spec.Dependencies)
	if anySlotDead(slots) {
		r.setNodeStatus(n, StatusRejected)
		return
	}
	if allSlotsSatisfied(slots) {
		r.setNodeStatus(n, StatusExecuting)
		r.ready = append(r.ready, n.spec.ID)
	}
}

// evaluateGroup advances a group. Only its edge dependencies gate readiness
// and rejection; members rejecting inside (a choice branch, say) is a normal
// terminal outcome, not grounds for rejecting the whole group.
func (r *Run) evaluateGroup(g *liveGroup) {
	members := make(map[string]bool, len(g.spec.Members))
	for _, m := range g.spec.Members {
		members[m] = true
	}

	if g.status == StatusPending {
		satisfied := true
		for _, dep := range g.spec.Dependencies {
			if members[dep] {
				continue
			}
			st := r.statusOf(dep)
			if st.Dead() {
				r.setGroupStatus(g, StatusRejected)
				return
			}
			if !st.Satisfied() {
				satisfied = false
			}
		}
		if !satisfied {
			return
		}
		r.setGroupStatus(g, StatusExecuting)
	}

	if g.status != StatusExecuting || g.looping {
		return
	}
	for _, m := range g.spec.Members {
		if !r.statusOf(m).Terminal() {
			return
		}
	}

	if g.spec.Type == factory.GroupRepeat && g.spec.MaxLoops > 0 {
		g.currentLoop++
		if err := r.persistor.EditNode(r.ctx, g.spec.ID, statusVersionComplete); err != nil {
			r.logger.Warn("persistor: %v", err)
		}
		if g.currentLoop < g.spec.MaxLoops {
			g.looping = true
			r.inflight++
			go r.loopGroup(g.spec.ID)
			return
		}
	}
	r.setGroupStatus(g, StatusComplete)
}

// loopGroup resets a repeat group's body for the next iteration. The pause
// lets a persistor render the previous iteration before statuses flip back.
func (r *Run) loopGroup(id string) {
	if !r.params.IsMock {
		select {
		case <-time.After(resetPause):
		case <-r.ctx.Done():
		}
	}

	r.mu.Lock()
	g := r.groups[id]
	g.looping = false
	if !r.finished && !r.stopped {
		members := make(map[string]bool, len(g.spec.Members))
		for _, m := range g.spec.Members {
			members[m] = true
			r.resetObject(m)
		}
		// Edges produced inside the body reset with it, including those that
		// cross out of the group.
		for _, eid := range r.graph.SortedEdgeIDs() {
			if members[r.graph.Edges[eid].Source] {
				r.resetEdge(r.edges[eid])
			}
		}
		for _, m := range g.spec.Members {
			r.evaluate(m)
		}
		for _, eid := range r.graph.SortedEdgeIDs() {
			if members[r.graph.Edges[eid].Source] {
				r.evaluate(eid)
			}
		}
	}
	r.mu.Unlock()
	r.finishExecution()
}

func (r *Run) resetObject(id string) {
	if n, ok := r.nodes[id]; ok {
		if n.spec.Kind == factory.KindFloating {
			return
		}
		n.status = StatusPending
		if err := r.persistor.EditNode(r.ctx, id, string(StatusPending)); err != nil {
			r.logger.Warn("persistor: %v", err)
		}
		return
	}
	if g, ok := r.groups[id]; ok {
		g.status = StatusPending
		g.currentLoop = g.spec.CurrentLoop
		if err := r.persistor.EditNode(r.ctx, id, string(StatusPending)); err != nil {
			r.logger.Warn("persistor: %v", err)
		}
	}
}

func (r *Run) resetEdge(e *liveEdge) {
	e.status = StatusPending
	e.content = nil
	e.messages = nil
	e.versions = nil
	e.streamed = false
	if err := r.persistor.EditEdge(r.ctx, e.spec.ID, string(StatusPending)); err != nil {
		r.logger.Warn("persistor: %v", err)
	}
}

// updateParallelLabel mirrors for-each progress onto the original group's
// label as "completed/total".
func (r *Run) updateParallelLabel(originalID string) {
	if originalID == "" {
		return
	}
	total, done := 0, 0
	for _, g := range r.groups {
		if g.spec.OriginalObject != originalID {
			continue
		}
		total++
		if g.status.Terminal() {
			done++
		}
	}
	if total == 0 {
		return
	}
	label := fmt.Sprintf("%d/%d", done, total)
	if err := r.persistor.EditParallelGroupLabel(r.ctx, originalID, label); err != nil {
		r.logger.Warn("persistor: %v", err)
	}
}

func (r *Run) statusOf(id string) Status {
	if n, ok := r.nodes[id]; ok {
		return n.status
	}
	if e, ok := r.edges[id]; ok {
		return e.status
	}
	if g, ok := r.groups[id]; ok {
		return g.status
	}
	return StatusComplete
}

// depSlot groups dependencies that can substitute for one another. Labeled
// value edges sharing a name and type are redundant across for-each fan-in:
// one complete peer satisfies the slot. Versioned peers form a join: the
// slot waits for every peer to settle and needs at least one completion.
type depSlot struct {
	statuses  []Status
	grouped   bool
	versioned bool
}

func (r *Run) depSlots(deps []string) []depSlot {
	keyed := make(map[string]*depSlot)
	var order []string
	var singles []depSlot

	for _, dep := range deps {
		e, ok := r.edges[dep]
		if !ok || e.spec.Name == "" || e.spec.Type == factory.EdgeLogging {
			singles = append(singles, depSlot{statuses: []Status{r.statusOf(dep)}})
			continue
		}
		key := e.spec.Name + "\x00" + string(e.spec.Type)
		slot, exists := keyed[key]
		if !exists {
			slot = &depSlot{grouped: true}
			keyed[key] = slot
			order = append(order, key)
		}
		slot.statuses = append(slot.statuses, e.status)
		if e.spec.Versions != nil {
			slot.versioned = true
		}
	}

	sort.Strings(order)
	out := singles
	for _, key := range order {
		slot := keyed[key]
		slot.grouped = len(slot.statuses) > 1
		out = append(out, *slot)
	}
	return out
}

func (s depSlot) satisfied() bool {
	if !s.grouped {
		return s.statuses[0].Satisfied()
	}
	if s.versioned {
		any := false
		for _, st := range s.statuses {
			if !st.Terminal() {
				return false
			}
			if st.Satisfied() {
				any = true
			}
		}
		return any
	}
	for _, st := range s.statuses {
		if st.Satisfied() {
			return true
		}
	}
	return false
}

func (s depSlot) dead() bool {
	for _, st := range s.statuses {
		if !st.Dead() {
			return false
		}
	}
	return true
}

func allSlotsSatisfied(slots []depSlot) bool {
	for _, s := range slots {
		if !s.satisfied() {
			return false
		}
	}
	return true
}

func anySlotDead(slots []depSlot) bool {
	for _, s := range slots {
		if s.dead() {
			return true
		}
	}
	return false
}
