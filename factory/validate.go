package factory

import "fmt"

// validateTopology runs the pre-expansion checks. Problems are recorded on
// the offending object; compilation continues for the valid subset, and
// for-each groups carrying an error are not expanded.
func validateTopology(g *Graph) {
	checkOverlap(g)

	for _, eid := range g.SortedEdgeIDs() {
		e := g.Edges[eid]
		if e.Type != EdgeList && e.Type != EdgeItem {
			continue
		}
		if _, ok := g.Groups[e.Target]; !ok {
			e.CompileError = "list edge must target a group"
			continue
		}
		srcForEach := innermostForEach(g, e.Source)
		tgtForEach := innermostForEach(g, e.Target)
		if srcForEach != "" && tgtForEach != "" && srcForEach != tgtForEach {
			e.CompileError = "list edge crosses between parallel groups"
		}
	}

	for _, gid := range g.SortedGroupIDs() {
		grp := g.Groups[gid]
		switch grp.Type {
		case GroupForEach:
			lists := 0
			for _, in := range g.IncomingEdges(gid) {
				if in.Type == EdgeList || in.Type == EdgeItem {
					lists++
				}
			}
			if lists != 1 {
				grp.CompileError = fmt.Sprintf("parallel group needs exactly one incoming list edge, has %d", lists)
			}
		case GroupRepeat:
			if outs := g.OutgoingEdges(gid); len(outs) > 0 {
				grp.CompileError = "repeat group may not have outgoing edges"
				continue
			}
			for _, in := range g.IncomingEdges(gid) {
				if in.Type == EdgeList || in.Type == EdgeItem {
					grp.CompileError = "repeat group may not receive a list edge"
					break
				}
			}
		}
	}

	for _, nid := range g.SortedNodeIDs() {
		n := g.Nodes[nid]
		if n.Type == NodeChoose && !hasOutgoingOfType(g, nid, EdgeChoice) {
			n.CompileError = "choose node has no outgoing choice edge"
		}
		if n.Type == NodeOutput && n.Name != "" && innermostForEach(g, nid) != "" {
			n.CompileError = fmt.Sprintf("named output %q cannot live inside a parallel group", n.Name)
		}
	}
}

func hasOutgoingOfType(g *Graph, id string, t EdgeType) bool {
	for _, e := range g.OutgoingEdges(id) {
		if e.Type == t {
			return true
		}
	}
	return false
}

// innermostForEach returns the nearest enclosing for-each group of a vertex,
// counting the vertex itself.
func innermostForEach(g *Graph, id string) string {
	if grp, ok := g.Groups[id]; ok && grp.Type == GroupForEach {
		return id
	}
	for _, gid := range g.EnclosingGroups(id) {
		if g.Groups[gid].Type == GroupForEach {
			return gid
		}
	}
	return ""
}

// checkOverlap flags groups that share area with another vertex without
// enclosing it; partial overlap makes membership ambiguous.
func checkOverlap(g *Graph) {
	rects := make(map[string]bool)
	for _, gid := range g.SortedGroupIDs() {
		grp := g.Groups[gid]
		for _, nid := range g.SortedNodeIDs() {
			if grp.Rect.Overlaps(g.Nodes[nid].Rect) {
				grp.CompileError = fmt.Sprintf("group overlaps node %s without enclosing it", nid)
			}
		}
		for _, other := range g.SortedGroupIDs() {
			if other == gid || rects[gid+other] {
				continue
			}
			rects[other+gid] = true
			if grp.Rect.Overlaps(g.Groups[other].Rect) {
				grp.CompileError = fmt.Sprintf("group overlaps group %s without enclosing it", other)
			}
		}
	}
}

// validateAcyclic runs after dependency computation: a dependency cycle
// means a path leaves and re-enters a group, which would deadlock the
// scheduler.
func validateAcyclic(g *Graph) {
	deps := make(map[string][]string)
	for _, nid := range g.SortedNodeIDs() {
		deps[nid] = g.Nodes[nid].Dependencies
	}
	for _, eid := range g.SortedEdgeIDs() {
		deps[eid] = g.Edges[eid].Dependencies
	}
	for _, gid := range g.SortedGroupIDs() {
		deps[gid] = g.Groups[gid].Dependencies
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(deps))
	var stack []string

	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case done:
			return false
		case visiting:
			markCycle(g, stack, id)
			return true
		}
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range deps[id] {
			if visit(dep) {
				break
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for id := range deps {
		visit(id)
	}
}

// markCycle records a deadlock error on every object in the detected cycle.
func markCycle(g *Graph, stack []string, entry string) {
	start := 0
	for i, id := range stack {
		if id == entry {
			start = i
			break
		}
	}
	for _, id := range stack[start:] {
		msg := "dependency cycle: a path leaves and re-enters the same group"
		if n, ok := g.Nodes[id]; ok {
			n.CompileError = msg
		}
		if e, ok := g.Edges[id]; ok {
			e.CompileError = msg
		}
		if grp, ok := g.Groups[id]; ok {
			grp.CompileError = msg
		}
	}
}
