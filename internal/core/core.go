// Package core wires the one-directional pipeline spec §2 describes:
//
//	AST (per module) -> SymbolCollector -> Engine + Relations + Imports
//	                                              |
//	                                              v
//	                                     SymbolResolver (fixed point)
//	                                              |
//	                                              v
//	                          Topological sort by inter-module use
//	                                              |
//	                                              v
//	                                Type Ascription -> TypedEngine (HIR)
//	                                              |
//	                                              v
//	                                Bytecode Emitter -> bytes + constant pool
//
// Grounded on the teacher's analyzer.Analyze entry point (internal/analyzer),
// which drives its own collect/resolve/typecheck stages from one function —
// here split so every stage is a named, independently testable step.
package core

import (
	"fmt"

	"github.com/modernsh/moshell/internal/ascribe"
	"github.com/modernsh/moshell/internal/collector"
	"github.com/modernsh/moshell/internal/diagnostics"
	"github.com/modernsh/moshell/internal/emit"
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/hir"
	"github.com/modernsh/moshell/internal/imports"
	"github.com/modernsh/moshell/internal/native"
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/reefstore"
	"github.com/modernsh/moshell/internal/relations"
	"github.com/modernsh/moshell/internal/resolver"
	"github.com/modernsh/moshell/internal/topo"
	"github.com/modernsh/moshell/internal/typesystem"
)

// Lang is the predefined lang reef (spec §2: "one reef (lang) is
// predefined and contains primitive types and native methods"), built once
// and shared read-only across every Compile call in a process.
type Lang struct {
	Engine  *engine.Engine
	Typing  *typesystem.Typing
	Catalog *native.Catalog
}

// NewLang builds the lang reef: its Engine carries no user-authored
// Environments, only the reef identity the Typing table's TypeRefs point
// back to (spec §4.5).
func NewLang() (*Lang, error) {
	eng := native.NewLangEngine()
	typ := typesystem.NewTyping(reef.LangID)
	cat, err := native.Build(typ)
	if err != nil {
		return nil, fmt.Errorf("core: building lang reef: %w", err)
	}
	return &Lang{Engine: eng, Typing: typ, Catalog: cat}, nil
}

// Result is everything one Compile call produces: the bundle ready for
// spec §6's wire format, plus every diagnostic raised along the way
// (spec §7: "the core always produces a complete diagnostic list, even
// on failure — there is no early abort").
type Result struct {
	ReefID      reef.ID
	Engine      *engine.Engine
	Relations   *relations.Table
	Imports     *imports.Table
	Typing      *typesystem.Typing
	Typed       *hir.TypedEngine
	Bundle      *emit.Bundle
	Diagnostics *diagnostics.Bag
}

// Compile runs the full pipeline for one user reef: collection, resolution,
// topological ordering, ascription, and — only if no diagnostic was raised
// (spec §7: "bytecode emission never runs over a reef with any recorded
// diagnostic") — emission. It threads the shared Lang reef (primitives and
// native catalog, see NewLang) into both ascription and emission, and
// persists the result to store under reefName once compilation succeeds
// (spec §2: "User reefs may reference the lang reef and previously built
// reefs"). store may be nil to skip persistence (e.g. in tests).
//
// others lists every previously built user reef this one may additionally
// `use` from; importer supplies module ASTs for entryName and everything it
// transitively `use`s (spec §6 Importer).
func Compile(reefID reef.ID, reefName string, entryName reef.Name, importer collector.Importer, lang *Lang, others []*engine.Engine, store *reefstore.Store) (*Result, error) {
	eng := engine.New(engine.ReefMeta{ID: reefID})
	rel := relations.NewTable()
	imp := imports.NewTable()
	diags := diagnostics.NewBag()

	externals := append([]*engine.Engine{lang.Engine}, others...)

	col := collector.New(reefID, eng, rel, imp, diags, importer)
	col.Collect(entryName)

	res := resolver.New(reefID, eng, imp, rel, diags, externals...)
	res.Run()

	order := topo.Sort(eng, rel)

	asc := ascribe.New(reefID, eng, rel, lang.Typing, lang.Catalog, diags)
	asc.Run(order, col.RootModules())

	var bundle *emit.Bundle
	if diags.Empty() {
		em := emit.New(lang.Typing, lang.Catalog, asc.Typed, eng, nil)
		bundle = em.Run(order)

		if store != nil {
			if err := persist(store, reefName, eng, bundle); err != nil {
				return nil, err
			}
		}
	}

	return &Result{
		ReefID: reefID, Engine: eng, Relations: rel, Imports: imp,
		Typing: lang.Typing, Typed: asc.Typed, Bundle: bundle, Diagnostics: diags,
	}, nil
}

// persist records a successfully compiled reef's exported shape to store
// (SPEC_FULL.md domain stack), together with the content hash of its first
// root. The store is only written here: Compile never reads it back, so
// every Compile call runs the whole pipeline.
func persist(store *reefstore.Store, reefName string, eng *engine.Engine, bundle *emit.Bundle) error {
	var contentID string
	if roots := eng.Roots(); len(roots) > 0 {
		contentID = string(eng.ContentOf(roots[0]))
	}
	exports := make([]reefstore.ExportedSymbol, 0, len(bundle.ExportedSymbols))
	for _, sym := range bundle.ExportedSymbols {
		exports = append(exports, reefstore.ExportedSymbol{
			Name:  sym.Name,
			Local: int(sym.LocalOffset),
		})
	}
	if err := store.Save(reefName, contentID, exports); err != nil {
		return fmt.Errorf("core: persisting reef %s: %w", reefName, err)
	}
	return nil
}
