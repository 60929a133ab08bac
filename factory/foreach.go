package factory

import (
	"fmt"
	"sort"
)

// expandForEachGroups is step F: every for-each group is replaced by
// MaxLoops indexed basic copies of itself, its members and its boundary
// edges. Deepest groups expand first so nested for-each groups are already
// concrete when their parents are copied.
func expandForEachGroups(g *Graph) {
	var forEach []*Group
	for _, gid := range g.SortedGroupIDs() {
		grp := g.Groups[gid]
		if grp.Type == GroupForEach && grp.CompileError == "" {
			forEach = append(forEach, grp)
		}
	}
	sort.Slice(forEach, func(i, j int) bool {
		if len(forEach[i].Groups) != len(forEach[j].Groups) {
			return len(forEach[i].Groups) > len(forEach[j].Groups)
		}
		return forEach[i].ID < forEach[j].ID
	})

	for _, grp := range forEach {
		expandOne(g, grp)
	}
}

func expandOne(g *Graph, grp *Group) {
	members := make(map[string]bool, len(grp.Members))
	for _, m := range grp.Members {
		members[m] = true
	}
	inside := func(id string) bool { return id == grp.ID || members[id] }

	for i := 1; i <= grp.MaxLoops; i++ {
		suffix := func(id string) string {
			if inside(id) {
				return fmt.Sprintf("%s-%d", id, i)
			}
			return id
		}

		// The group copy.
		copyGroup := *grp
		copyGroup.ID = suffix(grp.ID)
		copyGroup.Type = GroupBasic
		copyGroup.FromForEach = true
		copyGroup.CurrentLoop = i
		copyGroup.MaxLoops = 0
		copyGroup.OriginalObject = grp.ID
		copyGroup.Members = mapIDs(grp.Members, suffix)
		copyGroup.Groups = mapIDs(grp.Groups, suffix)
		g.Groups[copyGroup.ID] = &copyGroup

		// Member copies.
		for _, mid := range grp.Members {
			if n, ok := g.Nodes[mid]; ok {
				copyNode := *n
				copyNode.ID = suffix(mid)
				copyNode.Groups = mapIDs(n.Groups, suffix)
				g.Nodes[copyNode.ID] = &copyNode
			}
			if nested, ok := g.Groups[mid]; ok {
				copyNested := *nested
				copyNested.ID = suffix(mid)
				copyNested.Members = mapIDs(nested.Members, suffix)
				copyNested.Groups = mapIDs(nested.Groups, suffix)
				g.Groups[copyNested.ID] = &copyNested
			}
		}

		// Edge copies: internal edges and both boundary directions.
		for _, eid := range g.SortedEdgeIDs() {
			e := g.Edges[eid]
			srcIn, tgtIn := inside(e.Source), inside(e.Target)
			if !srcIn && !tgtIn {
				continue
			}
			copyEdge := *e
			copyEdge.ID = fmt.Sprintf("%s-%d", e.ID, i)
			copyEdge.Source = suffix(e.Source)
			copyEdge.Target = suffix(e.Target)
			copyEdge.Versions = append([]Version(nil), e.Versions...)

			if !srcIn && tgtIn && e.Type == EdgeList {
				// One item edge per iteration.
				copyEdge.Type = EdgeItem
			}
			if srcIn && !tgtIn {
				// Outgoing copies carry the iteration tag, outermost
				// expansion first.
				copyEdge.Versions = append([]Version{{Index: i}}, copyEdge.Versions...)
			}
			g.Edges[copyEdge.ID] = &copyEdge
		}
	}

	// Remove the original group, members and incident edges.
	for _, eid := range g.SortedEdgeIDs() {
		e := g.Edges[eid]
		if inside(e.Source) || inside(e.Target) {
			delete(g.Edges, eid)
		}
	}
	for _, mid := range grp.Members {
		delete(g.Nodes, mid)
		delete(g.Groups, mid)
	}
	delete(g.Groups, grp.ID)

	// Parents listed the original members; rewrite to the copies.
	for _, parent := range grp.Groups {
		p, ok := g.Groups[parent]
		if !ok {
			continue
		}
		var rebuilt []string
		for _, m := range p.Members {
			if m == grp.ID || members[m] {
				continue
			}
			rebuilt = append(rebuilt, m)
		}
		for i := 1; i <= grp.MaxLoops; i++ {
			rebuilt = append(rebuilt, fmt.Sprintf("%s-%d", grp.ID, i))
			for _, m := range grp.Members {
				rebuilt = append(rebuilt, fmt.Sprintf("%s-%d", m, i))
			}
		}
		sort.Strings(rebuilt)
		p.Members = rebuilt
	}
}

func mapIDs(ids []string, f func(string) string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, f(id))
	}
	return out
}
