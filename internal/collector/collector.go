// Package collector implements spec §4.1 "Symbol Collector": the
// depth-first traversal that populates an Engine with Environments,
// records local declarations, and emits unresolved external references
// into the Relations table.
//
// The traversal itself follows the teacher's analyzer.walker shape (a
// struct holding accumulating tables, dispatching over node kinds with a
// type switch, never failing fast) adapted from AST-node visits to the
// collect/inject operations spec §4.1 names.
package collector

import (
	"fmt"

	"github.com/modernsh/moshell/internal/ast"
	"github.com/modernsh/moshell/internal/diagnostics"
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/imports"
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/relations"
)

// frame is one open chunk environment on the collector's traversal stack
// (spec §4.1: "the collector maintains a stack of currently-open
// environment ids"). Block/Subshell/Substitution/branch scopes nest
// inside a frame's Environment via PushScope/PopScope rather than opening
// a new frame — only a function/lambda body forks a new chunk.
type frame struct {
	sourceID engine.SourceId
	env      *engine.Environment
	// pending indexes, by name, the relation recorded for a reference that
	// is still Unresolved and originated in this frame — lets "two
	// references to the same name in the same environment share one
	// relation" (spec §4.1) and lets resolveCaptures walk ancestors once
	// the frame's body is fully traversed.
	pending map[string]engine.RelationId
	// acceptImports is true only while the frame is still looking at
	// leading `use` statements of a module root (spec §4.1).
	acceptImports bool
}

// Collector drives one reef's collection pass.
type Collector struct {
	ReefID    reef.ID
	Engine    *engine.Engine
	Relations *relations.Table
	Imports   *imports.Table
	Diags     *diagnostics.Bag

	importer    Importer
	stack       []*frame
	seen        map[string]bool // module names already requested of the importer
	roots       []engine.SourceId
	rootModules map[engine.SourceId]*ast.Module // kept for the ascription pass, which needs each root's statement list
	lambdaSeq   int                             // numbers synthesized lambda@<id> names in declaration order
}

// New returns a Collector wired to record into the given tables.
func New(reefID reef.ID, eng *engine.Engine, rel *relations.Table, imp *imports.Table, diags *diagnostics.Bag, importer Importer) *Collector {
	return &Collector{
		ReefID: reefID, Engine: eng, Relations: rel, Imports: imp, Diags: diags,
		importer: importer, seen: make(map[string]bool), rootModules: make(map[engine.SourceId]*ast.Module),
	}
}

// RootModules returns the AST of every root environment Collect attached,
// keyed by the SourceId it was tracked under — the ascription pass needs
// a root's statement list to type its script body.
func (c *Collector) RootModules() map[engine.SourceId]*ast.Module {
	return c.rootModules
}

// Collect drives collection from entryName outward (spec §4.1: "collect").
// It returns the SourceIds of every root environment it attached, in the
// order the worklist discovered them.
func (c *Collector) Collect(entryName reef.Name) []engine.SourceId {
	worklist := []reef.Name{entryName}
	for len(worklist) > 0 {
		name := worklist[0]
		worklist = worklist[1:]
		more := c.collectOne(name)
		worklist = append(worklist, more...)
	}
	c.checkSymbolClashes()
	return c.roots
}

// collectOne imports one module name, attaching a root environment on
// success, and returns the names its `use` directives mention so the
// caller can enqueue them.
func (c *Collector) collectOne(name reef.Name) []reef.Name {
	key := name.FullyQualified()
	if c.seen[key] {
		return nil
	}
	c.seen[key] = true

	result := c.importer.Import(name)
	switch result.Status {
	case ImportNotFound:
		// spec §4.1: "NotFound triggers fallback by stripping the trailing
		// segment and retrying".
		if parent, ok := name.Parent(); ok {
			return c.collectOne(parent)
		}
		return nil
	case ImportFailure:
		return nil
	}

	cid := contentID(result.Content)
	sourceID := c.inject(result.Module, nil, name, cid)
	c.roots = append(c.roots, sourceID)
	c.rootModules[sourceID] = result.Module

	var next []reef.Name
	for _, use := range result.Module.Uses {
		next = append(next, c.recordImport(sourceID, use)...)
	}
	return next
}

// Inject implements spec §4.1 "inject": traverse mod directly, optionally
// nested under parent (the REPL threading-scope-across-prompts case).
// The new environment's FQN is mod.Name whether or not parent is set.
func (c *Collector) Inject(mod *ast.Module, parent *engine.SourceId, content []byte) engine.SourceId {
	name := reef.NewName(mod.Name)
	return c.inject(mod, parent, name, contentID(content))
}

func (c *Collector) inject(mod *ast.Module, parent *engine.SourceId, fqn reef.Name, cid engine.ContentId) engine.SourceId {
	env := engine.NewEnvironment(fqn, parent)
	sourceID := c.Engine.Track(env, cid)
	f := &frame{sourceID: sourceID, env: env, pending: make(map[string]engine.RelationId), acceptImports: true}
	c.stack = append(c.stack, f)

	for _, n := range mod.Body {
		if use, ok := n.(*ast.Use); ok {
			if !f.acceptImports {
				c.Diags.Add(diagnostics.New(diagnostics.UseBetweenExprs, "use directive after the start of the module body").At("", int(sourceID), use.Span(), "misplaced use"))
				continue
			}
			continue // top-level uses are recorded by the caller via Module.Uses; nested injects have none
		}
		f.acceptImports = false
		c.traverse(f, n)
	}

	c.stack = c.stack[:len(c.stack)-1]
	return sourceID
}

// recordImport normalizes one `use` directive's path and records it in
// the imports table, returning any module names (AllIn/Symbol parents)
// that should be enqueued for collection.
func (c *Collector) recordImport(source engine.SourceId, use *ast.Use) []reef.Name {
	switch use.Kind {
	case ast.UseList:
		var out []reef.Name
		for _, nested := range use.Nested {
			out = append(out, c.recordImport(source, nested)...)
		}
		return out
	case ast.UseEnvironment:
		c.Diags.Add(diagnostics.New(diagnostics.UnsupportedFeature, "environment imports are not supported").At("", int(source), use.Span(), "unsupported `use env`"))
		c.Imports.Add(source, &imports.Entry{Kind: imports.Environment, EnvVar: use.EnvVar, Span: use.Span()})
		return nil
	default:
		loc, ok := use.Path.Normalize()
		if !ok {
			c.Diags.Add(diagnostics.New(diagnostics.InvalidSymbolPath, "invalid import path").At("", int(source), use.Span(), "malformed path"))
			return nil
		}
		kind := imports.Symbol
		target := loc.Name
		if use.Kind == ast.UseAllIn {
			kind = imports.AllIn
		}
		entry := &imports.Entry{Kind: kind, Target: loc, Alias: use.Alias, Span: use.Span()}
		if prev := c.Imports.Add(source, entry); prev != nil {
			c.Diags.Add(diagnostics.New(diagnostics.ShadowedImport, "duplicate import of %s", target.FullyQualified()).At("", int(source), use.Span(), "shadows earlier import"))
		}
		if kind == imports.Symbol {
			if parent, ok := target.Parent(); ok {
				return []reef.Name{parent}
			}
			return nil
		}
		return []reef.Name{target}
	}
}

// traverse dispatches one body node (spec §4.1 traversal rules). f is the
// enclosing chunk frame.
func (c *Collector) traverse(f *frame, n ast.Node) {
	switch node := n.(type) {
	case *ast.Use:
		c.Diags.Add(diagnostics.New(diagnostics.UseBetweenExprs, "use directive after the start of the module body").At("", int(f.sourceID), node.Span(), "misplaced use"))

	case *ast.Literal, *ast.Continue, *ast.Break:
		// no symbol-table effect

	case *ast.TemplateString:
		for _, p := range node.Parts {
			c.traverse(f, p)
		}

	case *ast.Reference:
		c.resolveReference(f, node)

	case *ast.Block:
		f.env.PushScope()
		for _, e := range node.Exprs {
			c.traverse(f, e)
		}
		f.env.PopScope()

	case *ast.Subshell:
		f.env.PushScope()
		for _, e := range node.Body {
			c.traverse(f, e)
		}
		f.env.PopScope()

	case *ast.Substitution:
		f.env.PushScope()
		for _, e := range node.Commands {
			c.traverse(f, e)
		}
		f.env.PopScope()

	case *ast.VarDeclaration:
		if node.Init != nil {
			c.traverse(f, node.Init)
		}
		kind := engine.Val
		if node.Kind == ast.DeclVar {
			kind = engine.Var
		}
		id := f.env.Declare(node.Name, kind, node)
		f.env.Annotate(node, engine.SymbolRef{Kind: engine.RefLocal, Local: id})

	case *ast.Assign:
		c.traverse(f, node.Target)
		c.traverse(f, node.Value)

	case *ast.Read:
		for _, name := range node.Names {
			id := f.env.Declare(name, engine.Var, node)
			f.env.Annotate(node, engine.SymbolRef{Kind: engine.RefLocal, Local: id})
		}

	case *ast.Conditional:
		c.traverse(f, node.Cond)
		f.env.PushScope()
		c.traverse(f, node.Then)
		f.env.PopScope()
		if node.Otherwise != nil {
			f.env.PushScope()
			c.traverse(f, node.Otherwise)
			f.env.PopScope()
		}

	case *ast.ConditionalLoop:
		if node.Cond != nil {
			c.traverse(f, node.Cond)
		}
		f.env.PushScope()
		c.traverse(f, node.Body)
		f.env.PopScope()

	case *ast.ForIn:
		c.traverse(f, node.Iterable)
		f.env.PushScope()
		f.env.Declare(node.Var, engine.Val, node)
		c.traverse(f, node.Body)
		f.env.PopScope()

	case *ast.Match:
		c.traverse(f, node.Subject)
		for _, arm := range node.Arms {
			f.env.PushScope()
			if ref, ok := arm.Pattern.(*ast.Reference); ok && len(ref.Path.Items) == 1 {
				f.env.Declare(ref.Path.Items[0].Segment, engine.Val, ref)
			} else if arm.Pattern != nil {
				c.traverse(f, arm.Pattern)
			}
			c.traverse(f, arm.Body)
			f.env.PopScope()
		}

	case *ast.Return:
		if node.Value != nil {
			c.traverse(f, node.Value)
		}

	case *ast.Call:
		for _, a := range node.Args {
			c.traverse(f, a)
		}

	case *ast.Pipeline:
		for _, cmd := range node.Commands {
			c.traverse(f, cmd)
		}

	case *ast.Redirect:
		c.traverse(f, node.Inner)
		for _, r := range node.Redirs {
			c.traverse(f, r.Operand)
		}

	case *ast.Capture:
		f.env.PushScope()
		for _, cmd := range node.Commands {
			c.traverse(f, cmd)
		}
		f.env.PopScope()

	case *ast.Cast:
		c.traverse(f, node.Expr)

	case *ast.BinaryOp:
		c.traverse(f, node.Left)
		c.traverse(f, node.Right)

	case *ast.UnaryOp:
		c.traverse(f, node.Operand)

	case *ast.FunctionCall:
		c.traverse(f, node.Callee)
		for _, a := range node.Args {
			c.traverse(f, a)
		}

	case *ast.MethodCall:
		c.traverse(f, node.Receiver)
		for _, a := range node.Args {
			c.traverse(f, a)
		}

	case *ast.FunctionDeclaration:
		id := f.env.Declare(node.Name, engine.Val, node)
		f.env.Annotate(node, engine.SymbolRef{Kind: engine.RefLocal, Local: id})
		c.collectChunk(f, node, node.Params, node.Body)

	case *ast.Lambda:
		// spec §4.4: a lambda is ascribed like a named function
		// declaration, synthesizing a name "lambda@<id>" — so, like
		// FunctionDeclaration above, it needs a local of its own for the
		// ascription pass to bind a Function-typed reference to.
		c.lambdaSeq++
		name := fmt.Sprintf("lambda@%d", c.lambdaSeq)
		id := f.env.Declare(name, engine.Val, node)
		f.env.Annotate(node, engine.SymbolRef{Kind: engine.RefLocal, Local: id})
		c.collectChunk(f, node, node.Params, node.Body)

	default:
		panic(fmt.Sprintf("collector: unhandled AST node %T", n))
	}
}

// resolveReference looks up a (possibly qualified) reference, preferring
// a local binding in the current frame, falling back to a relation
// (spec §4.1).
func (c *Collector) resolveReference(f *frame, ref *ast.Reference) {
	if len(ref.Path.Items) == 0 {
		return
	}
	root := ref.Path.Items[0].Segment
	qualified := len(ref.Path.Items) > 1

	if id, ok := f.env.Lookup(root); ok {
		if qualified {
			// spec §4.1: "a reference that is qualified but the root
			// matches a local symbol is a declared-kind error; the
			// relation is created and immediately marked Dead."
			relID := c.Relations.Record(f.sourceID, root, relations.VariableSpace)
			c.Relations.MarkDead(relID, false)
			f.env.Annotate(ref, engine.SymbolRef{Kind: engine.RefExternal, Relation: relID})
			c.Diags.Add(diagnostics.New(diagnostics.InvalidSymbol, "%s is a local variable, not a module", root).At("", int(f.sourceID), ref.Span(), "qualified reference to a local"))
			return
		}
		f.env.Annotate(ref, engine.SymbolRef{Kind: engine.RefLocal, Local: id})
		return
	}

	if relID, ok := f.pending[root]; ok {
		f.env.Annotate(ref, engine.SymbolRef{Kind: engine.RefExternal, Relation: relID})
		return
	}
	relID := c.Relations.Record(f.sourceID, root, relations.VariableSpace)
	f.pending[root] = relID
	f.env.Annotate(ref, engine.SymbolRef{Kind: engine.RefExternal, Relation: relID})
}

// collectChunk forks a new chunk environment for a function/lambda body,
// declares its parameters, traverses the body, then runs capture
// resolution against the ancestor stack (spec §4.1, §4.2).
func (c *Collector) collectChunk(f *frame, declNode ast.Node, params []ast.Param, body ast.Node) {
	child := engine.NewEnvironment(f.env.FQN, &f.sourceID)
	child.ChunkDecl = declNode
	childID := c.Engine.Track(child, c.Engine.ContentOf(f.sourceID))
	f.env.RecordInnerEnvironment(declNode.Span(), childID)

	cf := &frame{sourceID: childID, env: child, pending: make(map[string]engine.RelationId)}
	for _, p := range params {
		child.Declare(p.Name, engine.Val, declNode)
	}
	c.stack = append(c.stack, cf)
	c.traverse(cf, body)
	c.resolveCaptures(cf)
	c.stack = c.stack[:len(c.stack)-1]
}

// resolveCaptures implements spec §4.2's capture resolution: for each
// still-pending relation recorded in fn's frame, search ancestor frames
// innermost-first for a local the same name resolves to.
func (c *Collector) resolveCaptures(fn *frame) {
	ancestors := c.stack[:len(c.stack)-1] // excludes fn itself, which is the last pushed frame
	for name, relID := range fn.pending {
		for i := len(ancestors) - 1; i >= 0; i-- {
			anc := ancestors[i]
			if id, ok := anc.env.Lookup(name); ok {
				c.Relations.MarkResolved(relID, relations.Resolution{Reef: c.ReefID, Source: anc.sourceID, Local: id})
				break
			}
		}
	}
}

// checkSymbolClashes implements spec §4.1's post-collection check: a
// declared symbol whose FQN coincides with another module in the reef.
func (c *Collector) checkSymbolClashes() {
	moduleNames := make(map[string]bool, len(c.roots))
	for _, sid := range c.roots {
		moduleNames[c.Engine.Get(sid).FQN.FullyQualified()] = true
	}
	for _, sid := range c.roots {
		env := c.Engine.Get(sid)
		for _, sym := range env.Locals() {
			fqn := env.FQN.Append(sym.Name).FullyQualified()
			if moduleNames[fqn] {
				c.Diags.Add(diagnostics.New(diagnostics.SymbolConflictsWithMod, "%s conflicts with a module of the same name", fqn).At("", int(sid), sym.DeclNode.Span(), "conflicting declaration"))
			}
		}
	}
}
