/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package epicgraph answers blocking questions over the epic dependency graph. The graph
// may contain cycles; every traversal keeps a visited set.
package epicgraph

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/GojoViv/ai.service.suvi.main/internal/domain"
)

// Graph has an edge u -> v when epic u is blocked by epic v.
type Graph struct {
	g        *simple.DirectedGraph
	idToNode map[string]int64
	nodeToID map[int64]string
	epics    map[string]domain.Epic
}

func New(epics []domain.Epic) *Graph {
	gr := &Graph{
		g:        simple.NewDirectedGraph(),
		idToNode: make(map[string]int64, len(epics)),
		nodeToID: make(map[int64]string, len(epics)),
		epics:    make(map[string]domain.Epic, len(epics)),
	}
	for _, e := range epics {
		gr.epics[e.EpicID] = e
		gr.node(e.EpicID)
	}
	for _, e := range epics {
		for _, b := range e.BlockedBy {
			gr.edge(e.EpicID, b)
		}
		for _, d := range e.IsBlocking {
			gr.edge(d, e.EpicID)
		}
	}
	return gr
}

// node returns the node id for an epic, adding it on first use. Referenced epics that
// are not on the board still get a node.
func (gr *Graph) node(id string) int64 {
	if n, ok := gr.idToNode[id]; ok {
		return n
	}
	n := gr.g.NewNode()
	gr.g.AddNode(n)
	gr.idToNode[id] = n.ID()
	gr.nodeToID[n.ID()] = id
	return n.ID()
}

func (gr *Graph) edge(blocked, blocker string) {
	if blocked == "" || blocker == "" || blocked == blocker {
		return
	}
	u, v := gr.node(blocked), gr.node(blocker)
	gr.g.SetEdge(gr.g.NewEdge(gr.g.Node(u), gr.g.Node(v)))
}

func (gr *Graph) Epic(id string) (domain.Epic, bool) {
	e, ok := gr.epics[id]
	return e, ok
}

func (gr *Graph) Has(id string) bool {
	_, ok := gr.idToNode[id]
	return ok
}

// walk does a breadth-first traversal from id using next, excluding id itself.
func (gr *Graph) walk(id string, next func(int64) graph.Nodes) []string {
	start, ok := gr.idToNode[id]
	if !ok {
		return nil
	}
	seen := map[int64]bool{start: true}
	queue := []int64{start}
	var out []string
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		var ids []int64
		it := next(n)
		for it.Next() {
			ids = append(ids, it.Node().ID())
		}
		// node iteration order is unspecified
		sort.Slice(ids, func(i, j int) bool { return gr.nodeToID[ids[i]] < gr.nodeToID[ids[j]] })
		for _, m := range ids {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, gr.nodeToID[m])
			queue = append(queue, m)
		}
	}
	return out
}

// Blockers returns every epic that directly or transitively blocks id, nearest first.
func (gr *Graph) Blockers(id string) []string { return gr.walk(id, gr.g.From) }

// Dependents returns every epic that id directly or transitively blocks.
func (gr *Graph) Dependents(id string) []string { return gr.walk(id, gr.g.To) }

// Cycles returns the strongly connected groups of two or more epics, each sorted.
func (gr *Graph) Cycles() [][]string {
	var out [][]string
	for _, scc := range topo.TarjanSCC(gr.g) {
		if len(scc) < 2 {
			continue
		}
		ids := make([]string, 0, len(scc))
		for _, n := range scc {
			ids = append(ids, gr.nodeToID[n.ID()])
		}
		sort.Strings(ids)
		out = append(out, ids)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
