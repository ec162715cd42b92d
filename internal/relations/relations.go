// Package relations implements spec §3 "Relations": the append-only table
// of external references a SymbolCollector discovers, each resolved (or
// marked dead) by a SymbolResolver.
//
// Every cross-chunk reference is stored as an integer id here rather than
// a direct pointer, the way the teacher stores AST/typesystem links by
// name + lookup instead of embedding pointers across module boundaries —
// spec §9 calls this out explicitly ("store every reference as a relation
// by integer id, never as a back-pointer") as the mechanism that makes
// cyclic symbol graphs (mutual recursion, cross-module references)
// representable without an ownership cycle.
package relations

import (
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/reef"
)

// Registry distinguishes the variable-space from the type-space (spec §3).
type Registry int

const (
	VariableSpace Registry = iota
	TypeSpace
)

// State is a Relation's resolution state (spec §3). Once Dead, a relation
// stays dead; Unresolved -> Resolved and Unresolved -> Dead are the only
// legal transitions.
type State int

const (
	Unresolved State = iota
	Resolved
	Dead
)

// Resolution is the payload of a Resolved relation.
type Resolution struct {
	Reef   reef.ID
	Source engine.SourceId
	Local  engine.LocalId
}

// Relation is one unresolved-or-resolved external reference.
type Relation struct {
	ID       engine.RelationId
	Origin   engine.SourceId // the Environment where this reference was encountered
	Name     string          // the name being referenced, as written at the origin
	Registry Registry
	State    State
	Resolved Resolution // valid only when State == Resolved

	// FromDeadImport remembers whether this relation's root name came from
	// an import that itself failed to resolve — the resolver consults this
	// to decide between UnknownSymbol and the "dead import" diagnostic
	// variant (spec §4.2).
	FromDeadImport bool
}

// Table is the per-reef store of every Relation ever recorded.
type Table struct {
	rows []Relation
}

// NewTable returns an empty relations table.
func NewTable() *Table {
	return &Table{}
}

// Record appends a new Unresolved relation and returns its id.
func (t *Table) Record(origin engine.SourceId, name string, registry Registry) engine.RelationId {
	id := engine.RelationId(len(t.rows))
	t.rows = append(t.rows, Relation{
		ID: id, Origin: origin, Name: name, Registry: registry, State: Unresolved,
	})
	return id
}

// Get returns a copy of the relation tracked under id.
func (t *Table) Get(id engine.RelationId) Relation {
	return t.rows[id]
}

// MarkResolved transitions a relation from Unresolved to Resolved. A no-op
// (the monotonicity invariant) if the relation is already Dead or Resolved.
func (t *Table) MarkResolved(id engine.RelationId, resolution Resolution) {
	r := &t.rows[id]
	if r.State != Unresolved {
		return
	}
	r.State = Resolved
	r.Resolved = resolution
}

// MarkDead transitions a relation from Unresolved to Dead.
func (t *Table) MarkDead(id engine.RelationId, fromDeadImport bool) {
	r := &t.rows[id]
	if r.State == Resolved {
		return
	}
	r.State = Dead
	r.FromDeadImport = fromDeadImport
}

// Unresolved returns the ids of every relation still Unresolved, in
// ascending id order (deterministic per spec §5).
func (t *Table) Unresolved() []engine.RelationId {
	var ids []engine.RelationId
	for _, r := range t.rows {
		if r.State == Unresolved {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// All returns every relation, in id order.
func (t *Table) All() []Relation {
	return t.rows
}

// Len returns the number of recorded relations.
func (t *Table) Len() int {
	return len(t.rows)
}
