// Package ascribe implements spec §4.4 "Type Ascription (HIR Builder)":
// transforms each chunk's AST into a fully typed HIR, in topological
// order over the inter-chunk reference graph, inserting Convert nodes
// for numeric widening and condition casts, and reporting diagnostics
// for every mismatch while still producing a complete HIR (spec §8:
// "Error is subtype-compatible with everything, cutting cascades").
package ascribe

import (
	"fmt"

	"github.com/modernsh/moshell/internal/ast"
	"github.com/modernsh/moshell/internal/diagnostics"
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/hir"
	"github.com/modernsh/moshell/internal/native"
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/relations"
	"github.com/modernsh/moshell/internal/token"
	"github.com/modernsh/moshell/internal/typesystem"
)

// TypingState is the ambient context the checker carries down the AST
// (spec §4.4).
type TypingState struct {
	Source    engine.SourceId
	Reef      reef.ID
	LocalType bool // the value of this subtree is observed by its parent
	InLoop    bool
}

func (s TypingState) notConsumed() TypingState {
	s.LocalType = false
	return s
}

func (s TypingState) consumed() TypingState {
	s.LocalType = true
	return s
}

// signature is a forward-declared chunk's shape, built before any body is
// typed (spec §4.4 "Forward declaration").
type signature struct {
	Params              []typesystem.TypeRef
	ParamNames          []string
	Return              typesystem.TypeRef
	TypeParams          []string
	Def                 typesystem.Definition
	HasReturnAnnotation bool
}

type returnRecord struct {
	Type typesystem.TypeRef
	Span token.Span
}

// Ascriber runs the ascription pass for one reef.
type Ascriber struct {
	ReefID    reef.ID
	Engine    *engine.Engine
	Relations *relations.Table
	Typing    *typesystem.Typing
	Catalog   *native.Catalog
	Typed     *hir.TypedEngine
	Diags     *diagnostics.Bag

	contexts map[engine.SourceId]*typesystem.TypeContext
	sigs     map[engine.SourceId]signature
	returns  map[engine.SourceId][]returnRecord
}

// New returns an Ascriber. typ is the current reef's Typing table; cat is
// the lang reef's native catalog (always consulted for operator dispatch
// and primitive types, spec §4.5).
func New(reefID reef.ID, eng *engine.Engine, rel *relations.Table, typ *typesystem.Typing, cat *native.Catalog, diags *diagnostics.Bag) *Ascriber {
	return &Ascriber{
		ReefID: reefID, Engine: eng, Relations: rel, Typing: typ, Catalog: cat, Diags: diags,
		Typed:    hir.NewTypedEngine(),
		contexts: make(map[engine.SourceId]*typesystem.TypeContext),
		sigs:     make(map[engine.SourceId]signature),
		returns:  make(map[engine.SourceId][]returnRecord),
	}
}

func (a *Ascriber) getContext(id engine.SourceId) *typesystem.TypeContext {
	ctx, ok := a.contexts[id]
	if !ok {
		ctx = typesystem.NewTypeContext()
		a.contexts[id] = ctx
	}
	return ctx
}

func (a *Ascriber) prim(p typesystem.Prim) typesystem.TypeRef {
	return a.Catalog.Primitive(p)
}

// Run types every chunk in order (spec §4.4: topologically sorted,
// callees before callers when possible). roots maps each root
// environment's SourceId to its module AST (collector.RootModules()).
func (a *Ascriber) Run(order []engine.SourceId, roots map[engine.SourceId]*ast.Module) {
	a.forwardDeclareAll(order)
	for _, id := range order {
		env := a.Engine.Get(id)
		if env.ParentID == nil {
			a.ascribeRoot(id, roots[id])
		} else {
			a.ascribeChunk(id)
		}
	}
}

// forwardDeclareAll builds every function/lambda's signature and, for
// each of them, pushes a Function(User(id)) local into the
// enclosing chunk's TypeContext — all before any body is typed, so
// mutual recursion resolves (spec §4.4 "Forward declaration").
func (a *Ascriber) forwardDeclareAll(order []engine.SourceId) {
	for _, id := range order {
		env := a.Engine.Get(id)
		if env.ParentID == nil || env.ChunkDecl == nil {
			continue
		}
		sig := a.buildSignature(id, env.ChunkDecl)
		a.sigs[id] = sig

		// Both a named FunctionDeclaration and a Lambda push a
		// Function(User(id)) local into the enclosing chunk's context
		// (spec §4.4: a lambda is ascribed "Same [as Function
		// declaration]") — the declaration node itself carries the
		// RefLocal annotation the collector recorded for it.
		switch env.ChunkDecl.(type) {
		case *ast.FunctionDeclaration, *ast.Lambda:
			parent := a.Engine.Get(*env.ParentID)
			if ref, ok := parent.AnnotationOf(env.ChunkDecl); ok && ref.Kind == engine.RefLocal {
				funcType := a.Typing.Add(typesystem.Type{Kind: typesystem.KindFunction, Params: sig.Params, Return: sig.Return, Def: sig.Def}, "")
				a.getContext(*env.ParentID).PushLocalTyped(ref.Local, funcType, false)
			}
		}
	}
}

func declParts(decl ast.Node) (params []ast.Param, typeParams []string, ret *ast.TypeAnnotation) {
	switch d := decl.(type) {
	case *ast.FunctionDeclaration:
		return d.Params, d.TypeParams, d.ReturnType
	case *ast.Lambda:
		return d.Params, nil, d.ReturnType
	default:
		panic(fmt.Sprintf("ascribe: %T is not a chunk declaration", decl))
	}
}

func (a *Ascriber) buildSignature(id engine.SourceId, decl ast.Node) signature {
	params, typeParams, retAnn := declParts(decl)
	env := a.Engine.Get(id)
	ctx := a.getContext(id)

	typeParamRefs := make(map[string]typesystem.TypeRef, len(typeParams))
	for _, name := range typeParams {
		typeParamRefs[name] = a.Typing.NewPolytype(name)
	}

	sig := signature{TypeParams: typeParams, Def: typesystem.Definition{Kind: typesystem.DefUser, User: id}}
	for _, p := range params {
		ty := a.resolveAnnotation(p.Annotation, typeParamRefs, env.FQN.FullyQualified())
		sig.Params = append(sig.Params, ty)
		sig.ParamNames = append(sig.ParamNames, p.Name)
		if local, ok := env.Lookup(p.Name); ok {
			ctx.PushLocalTyped(local, ty, false)
		}
	}

	if retAnn != nil {
		sig.Return = a.resolveAnnotation(retAnn, typeParamRefs, env.FQN.FullyQualified())
		sig.HasReturnAnnotation = true
	} else {
		sig.Return = a.prim(typesystem.Unit)
	}
	return sig
}

// resolveAnnotation maps a TypeAnnotation to a TypeRef: a type-parameter
// name, or a lang-reef primitive (spec §4.4: "Cast `expr as T` resolves
// T"; user-defined nominal types are out of scope for this core).
func (a *Ascriber) resolveAnnotation(ann *ast.TypeAnnotation, typeParams map[string]typesystem.TypeRef, fqn string) typesystem.TypeRef {
	if ann == nil {
		return a.prim(typesystem.Unit)
	}
	name := ann.Path.Items[len(ann.Path.Items)-1].Segment
	if len(ann.Path.Items) == 1 {
		if ref, ok := typeParams[name]; ok {
			return ref
		}
	}
	if p, ok := a.Catalog.PrimByName(name); ok {
		return a.prim(p)
	}
	a.Diags.Add(diagnostics.New(diagnostics.UnknownType, "unknown type %s", name).At("", 0, ann.Span(), "undeclared type"))
	return a.prim(typesystem.Error)
}

// ascribeRoot types a module root's statement list as an implicit Block,
// with no forward-declared signature of its own (spec §4.4: script
// chunks have no parameters).
func (a *Ascriber) ascribeRoot(id engine.SourceId, mod *ast.Module) {
	if mod == nil {
		return
	}
	st := TypingState{Source: id, Reef: a.ReefID, LocalType: false}
	ctx := a.getContext(id)
	body := a.ascribeBlock(mod.Body, st, ctx)
	a.Typed.Set(id, &hir.Chunk{Source: id, Return: a.prim(typesystem.ExitCode), Body: body, IsScript: true})
}

// ascribeChunk types one forward-declared function/lambda body.
func (a *Ascriber) ascribeChunk(id engine.SourceId) {
	env := a.Engine.Get(id)
	sig, ok := a.sigs[id]
	if !ok {
		return
	}
	_, _, bodyNode := chunkBody(env.ChunkDecl)
	st := TypingState{Source: id, Reef: a.ReefID, LocalType: true}
	ctx := a.getContext(id)
	body := a.ascribeExpr(bodyNode, st, ctx)

	ret := a.finalizeReturnType(id, sig, body, env.ChunkDecl.Span())

	var params []hir.Param
	for i, p := range sig.Params {
		name := ""
		if i < len(sig.ParamNames) {
			name = sig.ParamNames[i]
		}
		local, _ := env.Lookup(name)
		params = append(params, hir.Param{Name: name, Local: local, Type: p})
	}
	a.Typed.Set(id, &hir.Chunk{
		Source: id, Params: params, TypeParams: sig.TypeParams, Return: ret, Body: body, IsScript: false,
	})
}

func chunkBody(decl ast.Node) (params []ast.Param, typeParams []string, body ast.Node) {
	switch d := decl.(type) {
	case *ast.FunctionDeclaration:
		return d.Params, d.TypeParams, d.Body
	case *ast.Lambda:
		return d.Params, nil, d.Body
	default:
		panic(fmt.Sprintf("ascribe: %T is not a chunk declaration", decl))
	}
}

// finalizeReturnType implements spec §4.4 "Return-type inference".
func (a *Ascriber) finalizeReturnType(id engine.SourceId, sig signature, body *hir.TypedExpr, span token.Span) typesystem.TypeRef {
	records := a.returns[id]
	if body != nil && body.Kind != hir.Block {
		// a non-block body's trailing value is an implicit return
		if body.Type != a.prim(typesystem.Unit) && body.Type != a.prim(typesystem.Error) {
			records = append(records, returnRecord{Type: body.Type, Span: body.Span})
		}
	}

	if sig.HasReturnAnnotation {
		for _, r := range records {
			if !a.Typing.IsSubtype(r.Type, sig.Return) && !a.Typing.WidenNumeric(r.Type, sig.Return) {
				a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "return type does not match declared return type").At("", int(id), r.Span, "mismatched return"))
			}
		}
		return sig.Return
	}

	if len(records) == 0 {
		return a.prim(typesystem.Unit)
	}
	if body != nil && body.Kind == hir.Block {
		a.Diags.Add(diagnostics.New(diagnostics.CannotInfer, "Return type is not inferred for block functions").At("", int(id), span, "missing return type annotation"))
		return a.prim(typesystem.Error)
	}
	same := true
	for _, r := range records {
		if r.Type != records[0].Type {
			same = false
			break
		}
	}
	if same {
		a.Diags.Add(diagnostics.New(diagnostics.CannotInfer, "Return type inference is not supported yet").At("", int(id), span, "missing return type annotation").WithHelp(fmt.Sprintf("inferred type: %s", records[0].Type)))
		return records[0].Type
	}
	a.Diags.Add(diagnostics.New(diagnostics.CannotInfer, "Failed to infer return type").At("", int(id), span, "ambiguous return type"))
	return a.prim(typesystem.Error)
}
