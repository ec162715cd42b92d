// Package resolver implements spec §4.2 "Symbol Resolver": the two-phase
// fixed-point pass that turns every Unresolved relation into Resolved or
// Dead.
//
// Capture resolution (the third mechanism spec §4.2 describes) already
// runs inline inside the collector, immediately after each function body
// is traversed (internal/collector.resolveCaptures) — this package only
// implements the two passes that need the whole program assembled:
// import resolution and reference resolution.
package resolver

import (
	"github.com/modernsh/moshell/internal/diagnostics"
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/imports"
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/relations"
	"github.com/modernsh/moshell/internal/token"
)

// Resolver resolves one reef's imports and relations against its own
// engine plus a set of previously-built reefs it may import from.
type Resolver struct {
	ReefID    reef.ID
	Engine    *engine.Engine
	Imports   *imports.Table
	Relations *relations.Table
	Diags     *diagnostics.Bag

	// External reefs this reef may `use` from (e.g. the lang reef, or
	// the in-memory Engines of previously-built reefs). Keyed by FQN of
	// their root modules.
	externalModules map[string]externalModule
}

type externalModule struct {
	reefID reef.ID
	eng    *engine.Engine
	source engine.SourceId
}

// New returns a Resolver for one reef. externals lists every other
// reef's Engine this reef may reference (spec §2: "user reefs reference
// lang plus previously-built reefs").
func New(reefID reef.ID, eng *engine.Engine, imp *imports.Table, rel *relations.Table, diags *diagnostics.Bag, externals ...*engine.Engine) *Resolver {
	r := &Resolver{
		ReefID: reefID, Engine: eng, Imports: imp, Relations: rel, Diags: diags,
		externalModules: make(map[string]externalModule),
	}
	for _, ext := range externals {
		meta := ext.Reef()
		for _, sid := range ext.Roots() {
			r.externalModules[ext.Get(sid).FQN.FullyQualified()] = externalModule{reefID: meta.ID, eng: ext, source: sid}
		}
	}
	return r
}

// moduleByFQN looks up a module root, first within this reef, then in
// known external reefs (spec §4.2: "in the current reef and, failing
// that, in known external reefs").
func (r *Resolver) moduleByFQN(fqn string) (eng *engine.Engine, reefID reef.ID, source engine.SourceId, ok bool) {
	for _, sid := range r.Engine.Roots() {
		if r.Engine.Get(sid).FQN.FullyQualified() == fqn {
			return r.Engine, r.ReefID, sid, true
		}
	}
	if ext, found := r.externalModules[fqn]; found {
		return ext.eng, ext.reefID, ext.source, true
	}
	return nil, 0, 0, false
}

// Run drives both phases to a fixed point (spec §4.2: "each iteration
// either resolves at least one relation or completes").
func (r *Resolver) Run() {
	for {
		progress := r.resolveImports()
		progress = r.resolveReferences() || progress
		if !progress {
			break
		}
	}
	r.finalizeUnresolved()
}

// finalizeUnresolved marks every relation still Unresolved once the fixed
// point is reached as Dead, reporting UnknownSymbol — the default failure
// case (spec §4.2 "errors reported") for a reference that traces to
// neither a local, an import, nor a dead import.
func (r *Resolver) finalizeUnresolved() {
	for _, id := range r.Relations.Unresolved() {
		rel := r.Relations.Get(id)
		if rel.Registry != relations.VariableSpace {
			continue
		}
		r.Relations.MarkDead(id, false)
		r.Diags.Add(diagnostics.New(diagnostics.UnknownSymbol, "cannot find %s in this scope", rel.Name).At("", int(rel.Origin), token.Span{}, "unresolved reference"))
	}
}

// resolveImports is phase 1 (spec §4.2).
func (r *Resolver) resolveImports() bool {
	progress := false
	for _, source := range r.Imports.AllSources() {
		for _, entry := range r.Imports.For(source) {
			if entry.Resolved {
				continue
			}
			if entry.Kind == imports.Environment {
				entry.Resolved = true // already diagnosed by the collector
				continue
			}
			moduleFQN := entry.Target.Name
			leaf := ""
			searchFQN := moduleFQN
			if entry.Kind == imports.Symbol {
				if parent, ok := moduleFQN.Parent(); ok {
					searchFQN = parent
					leaf = moduleFQN.Tail()
				} else {
					leaf = moduleFQN.Tail()
					searchFQN = moduleFQN // single-segment symbol import: module == own reef root is unusual; treat as direct lookup below
				}
			}

			_, _, modSource, found := r.moduleByFQN(searchFQN.FullyQualified())
			if !found {
				r.Diags.Add(diagnostics.New(diagnostics.ImportResolution, "cannot resolve module %s", searchFQN.FullyQualified()).At("", int(source), entry.Span, "unresolved import"))
				entry.Resolved = true // terminal: stop retrying, but taint dependents
				progress = true
				continue
			}
			if entry.Kind == imports.Symbol && leaf != "" {
				modEng, _, _, _ := r.resolveModuleEngine(searchFQN.FullyQualified())
				if modEng != nil {
					if _, ok := modEng.Get(modSource).Lookup(leaf); !ok {
						r.Diags.Add(diagnostics.New(diagnostics.ImportResolution, "module %s has no exported symbol %s", searchFQN.FullyQualified(), leaf).At("", int(source), entry.Span, "unresolved symbol import"))
					}
				}
			}
			entry.Resolved = true
			progress = true
		}
	}
	return progress
}

func (r *Resolver) resolveModuleEngine(fqn string) (*engine.Engine, reef.ID, engine.SourceId, bool) {
	eng, reefID, source, ok := r.moduleByFQN(fqn)
	return eng, reefID, source, ok
}

// resolveReferences is phase 2 (spec §4.2).
func (r *Resolver) resolveReferences() bool {
	progress := false
	for _, id := range r.Relations.Unresolved() {
		rel := r.Relations.Get(id)
		if rel.Registry != relations.VariableSpace {
			// User-defined nominal types aren't part of this core's closed
			// type hierarchy (spec §3), so the collector never emits
			// TypeSpace relations; nothing to resolve here.
			continue
		}

		if rel.FromDeadImport {
			r.Relations.MarkDead(id, true)
			progress = true
			continue
		}

		if r.resolveViaImport(rel) || r.resolveViaKnownModule(rel) {
			progress = true
			continue
		}

		// Determine whether this relation's failure traces back to a dead
		// import of the same root name (spec §4.2: "diagnose_invalid_symbol_from_dead_import").
		if r.rootImportFailed(rel.Origin, rel.Name) {
			r.Relations.MarkDead(id, true)
			r.Diags.Add(diagnostics.New(diagnostics.InvalidSymbol, "%s comes from an import that failed to resolve", rel.Name).At("", int(rel.Origin), token.Span{}, "invalid symbol"))
			progress = true
		}
	}
	return progress
}

func (r *Resolver) rootImportFailed(source engine.SourceId, name string) bool {
	for _, entry := range r.Imports.For(source) {
		if entry.Alias == name || entry.Target.Name.Tail() == name {
			return entry.Resolved && !r.importSucceeded(entry)
		}
	}
	return false
}

func (r *Resolver) importSucceeded(entry *imports.Entry) bool {
	fqn := entry.Target.Name
	if entry.Kind == imports.Symbol {
		if parent, ok := fqn.Parent(); ok {
			fqn = parent
		}
	}
	_, _, _, ok := r.moduleByFQN(fqn.FullyQualified())
	return ok
}

// resolveViaImport tries spec §4.2(a): "an imported binding".
func (r *Resolver) resolveViaImport(rel relations.Relation) bool {
	for _, entry := range r.Imports.For(rel.Origin) {
		if entry.Kind != imports.Symbol {
			continue
		}
		name := entry.Alias
		if name == "" {
			name = entry.Target.Name.Tail()
		}
		if name != rel.Name {
			continue
		}
		moduleFQN := entry.Target.Name
		leafName := entry.Target.Name.Tail()
		if parent, ok := moduleFQN.Parent(); ok {
			moduleFQN = parent
		}
		eng, reefID, source, ok := r.moduleByFQN(moduleFQN.FullyQualified())
		if !ok {
			continue
		}
		local, ok := eng.Get(source).Lookup(leafName)
		if !ok {
			continue
		}
		r.Relations.MarkResolved(rel.ID, relations.Resolution{Reef: reefID, Source: source, Local: local})
		return true
	}
	return false
}

// resolveViaKnownModule tries spec §4.2(b): "a symbol of the same root in
// a known module" — the module the relation's own origin environment
// belongs to, and any `AllIn`-imported module.
func (r *Resolver) resolveViaKnownModule(rel relations.Relation) bool {
	if local, ok := r.Engine.Get(rel.Origin).Lookup(rel.Name); ok {
		r.Relations.MarkResolved(rel.ID, relations.Resolution{Reef: r.ReefID, Source: rel.Origin, Local: local})
		return true
	}
	for _, entry := range r.Imports.For(rel.Origin) {
		if entry.Kind != imports.AllIn {
			continue
		}
		eng, reefID, source, ok := r.moduleByFQN(entry.Target.Name.FullyQualified())
		if !ok {
			continue
		}
		if local, ok := eng.Get(source).Lookup(rel.Name); ok {
			r.Relations.MarkResolved(rel.ID, relations.Resolution{Reef: reefID, Source: source, Local: local})
			return true
		}
	}
	return false
}
