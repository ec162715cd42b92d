// Package imports implements spec §3 "Imports": the per-module table of
// `use` directives recorded by the collector and consumed by the resolver.
package imports

import (
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/token"
)

// Kind distinguishes the import directive shapes (spec §3).
type Kind int

const (
	Symbol Kind = iota // a specific qualified name, with optional alias
	AllIn              // the contents of a module
	Environment        // an external environment variable (unsupported, spec §9)
	List               // nested imports under a common prefix (flattened before reaching the resolver)
)

// Entry is one unresolved import directive.
type Entry struct {
	Kind     Kind
	Target   reef.SymbolLocation // the normalized InclusionPath (Symbol/AllIn)
	Alias    string              // optional (Symbol only)
	EnvVar   string              // Environment only
	Span     token.Span
	Resolved bool // set by the resolver once the target module/symbol is found
}

// key is what makes two import directives target "the same thing" for the
// one-entry-per-target rule (spec §3: "up to one entry per distinct
// target").
func (e Entry) key() string {
	switch e.Kind {
	case Environment:
		return "env:" + e.EnvVar
	default:
		return "sym:" + e.Target.Name.FullyQualified()
	}
}

// Table is one module's UnresolvedImports, keyed by target so a duplicate
// import of the same target overwrites (and reports) rather than
// accumulating (spec §3: "Duplicate imports are reported (the later one is
// kept) and do not cause resolution failure").
type Table struct {
	bySource map[engine.SourceId][]*Entry
	index    map[engine.SourceId]map[string]int // target key -> index into bySource[source]
}

// NewTable returns an empty import table.
func NewTable() *Table {
	return &Table{
		bySource: make(map[engine.SourceId][]*Entry),
		index:    make(map[engine.SourceId]map[string]int),
	}
}

// Add records an import directive for source. Returns the previous entry
// for the same target if this is a duplicate (caller reports
// ShadowedImport), or nil otherwise.
func (t *Table) Add(source engine.SourceId, e *Entry) *Entry {
	idx, ok := t.index[source]
	if !ok {
		idx = make(map[string]int)
		t.index[source] = idx
	}
	key := e.key()
	if pos, exists := idx[key]; exists {
		prev := t.bySource[source][pos]
		t.bySource[source][pos] = e
		return prev
	}
	idx[key] = len(t.bySource[source])
	t.bySource[source] = append(t.bySource[source], e)
	return nil
}

// For returns the import directives declared by source, in declaration
// order (spec §4.2: "in declaration order").
func (t *Table) For(source engine.SourceId) []*Entry {
	return t.bySource[source]
}

// AllSources returns every SourceId that declared at least one import, in
// ascending order.
func (t *Table) AllSources() []engine.SourceId {
	var out []engine.SourceId
	for src := range t.bySource {
		out = append(out, src)
	}
	// simple insertion sort; import-bearing module counts are small and this
	// keeps the package dependency-free of "sort" ordering surprises.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
