// Package topo implements spec §4.4's "topological sort": build a graph
// chunk -> chunks it references by resolved relation, tie-break by
// SourceId, standalone root scripts last, and never abort on a cycle
// (mutual recursion is legal — forward declaration handles it).
//
// Grounded on the teacher's nearest DFS-with-cycle-detection idiom
// (internal/link/topo.go in the sunholo-data-ailang example, which this
// core's corpus otherwise doesn't touch), adapted so a detected cycle
// falls back to input order instead of erroring.
package topo

import (
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/relations"
)

// Edges returns, for each SourceId, the SourceIds it references via a
// Resolved relation originating at that environment (spec §4.4: "chunk ->
// chunks it references by resolved relation").
func Edges(eng *engine.Engine, rel *relations.Table) map[engine.SourceId][]engine.SourceId {
	edges := make(map[engine.SourceId][]engine.SourceId)
	for _, r := range rel.All() {
		if r.State != relations.Resolved {
			continue
		}
		if r.Resolved.Reef != eng.Reef().ID {
			continue // cross-reef callees are already-typed; no ordering dependency
		}
		if r.Resolved.Source == r.Origin {
			continue // self-reference
		}
		edges[r.Origin] = append(edges[r.Origin], r.Resolved.Source)
	}
	return edges
}

// Sort returns every SourceId in eng in an order where a chunk's callees
// (by resolved relation) precede it whenever the graph is acyclic along
// that path, standalone root scripts sorted last, ties broken by
// ascending SourceId (spec §4.4, §5 "stable DFS with SourceId as
// tie-breaker").
func Sort(eng *engine.Engine, rel *relations.Table) []engine.SourceId {
	edges := Edges(eng, rel)
	isRoot := make(map[engine.SourceId]bool)
	for _, r := range eng.Roots() {
		isRoot[r] = true
	}

	visited := make(map[engine.SourceId]bool)
	inStack := make(map[engine.SourceId]bool)
	var order []engine.SourceId

	all := eng.All()

	var visit func(id engine.SourceId)
	visit = func(id engine.SourceId) {
		if visited[id] || inStack[id] {
			return // already ordered, or a cycle — forward declaration covers the latter
		}
		inStack[id] = true
		deps := append([]engine.SourceId(nil), edges[id]...)
		sortAscending(deps)
		for _, d := range deps {
			visit(d)
		}
		inStack[id] = false
		visited[id] = true
		order = append(order, id)
	}

	// Functions/lambdas first (in ascending SourceId order for
	// determinism), so the root script — which always runs last — sees
	// every function of its own module already queued ahead of it (spec
	// §4.4: "the standalone root script is sorted last").
	for _, id := range all {
		if !isRoot[id] {
			visit(id)
		}
	}
	for _, id := range all {
		if isRoot[id] {
			visit(id)
		}
	}
	return order
}

func sortAscending(ids []engine.SourceId) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
