// Package engine implements spec §3 "Environments and engine": the
// process-local, append-only table of Environments keyed by SourceId, plus
// the per-environment scoped symbol table the teacher calls a
// SymbolTable (internal/symbols/symbol_table_core.go) — here adapted to
// track LocalIds and nested lexical scopes instead of a global name table.
package engine

import "github.com/modernsh/moshell/internal/reef"

// SourceId identifies one Environment within one reef's Engine. Dense,
// monotonically increasing (spec §3 invariants).
type SourceId int

// ContentId identifies the original file that produced an AST, supplied by
// the Importer (spec §6). Backed by a content hash so two imports of the
// same physical content agree without coordination — see
// engine.NewContentID.
type ContentId string

// LocalId identifies a symbol within one Environment (spec §3).
type LocalId int

// RelationId identifies an unresolved-or-resolved external reference
// within a reef's Relations table (spec §3). Defined here (not in the
// relations package) because Environment.Annotations stores RelationIds
// directly and both packages would otherwise import each other.
type RelationId int

// SymbolRefKind distinguishes a resolved annotation's shape.
type SymbolRefKind int

const (
	RefLocal SymbolRefKind = iota
	RefExternal
)

// SymbolRef is what an AST node gets annotated with once the collector has
// seen it (spec §4.1): either a local in the current Environment, or an
// external relation to be resolved later.
type SymbolRef struct {
	Kind     SymbolRefKind
	Local    LocalId    // valid when Kind == RefLocal
	Relation RelationId // valid when Kind == RefExternal
}

// VariableKind distinguishes `val` (immutable) from `var` (assignable)
// bindings (spec §4.3 TypeContext: push_local(kind)).
type VariableKind int

const (
	Val VariableKind = iota
	Var
)

// ReefMeta names the reef that owns an Engine, for diagnostics that need a
// reef-qualified observation (spec §6).
type ReefMeta struct {
	ID   reef.ID
	Name string
}
