package ascribe

import (
	"github.com/modernsh/moshell/internal/ast"
	"github.com/modernsh/moshell/internal/diagnostics"
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/hir"
	"github.com/modernsh/moshell/internal/relations"
	"github.com/modernsh/moshell/internal/token"
	"github.com/modernsh/moshell/internal/typesystem"
)

// ascribeBlock types a statement list as a Block (spec §4.4): every
// statement but the last is typed with localType=false; the block's type
// is the last expression's type, or Unit if empty.
func (a *Ascriber) ascribeBlock(stmts []ast.Node, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	if len(stmts) == 0 {
		return hir.NewBlock(token.Span{}, a.prim(typesystem.Unit), nil)
	}
	exprs := make([]*hir.TypedExpr, len(stmts))
	for i, s := range stmts {
		sub := st.notConsumed()
		if i == len(stmts)-1 {
			sub = st
		}
		exprs[i] = a.ascribeExpr(s, sub, ctx)
	}
	last := exprs[len(exprs)-1]
	return hir.NewBlock(ast.Span(stmts[0]).Merge(ast.Span(stmts[len(stmts)-1])), last.Type, exprs)
}

// ascribeExpr is the main dispatch over AST node kinds (spec §4.4 rule
// table).
func (a *Ascriber) ascribeExpr(n ast.Node, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	switch node := n.(type) {
	case *ast.Literal:
		return a.ascribeLiteral(node)

	case *ast.TemplateString:
		return a.ascribeTemplate(node, st, ctx)

	case *ast.Reference:
		return a.ascribeReference(node, st, ctx)

	case *ast.Block:
		return a.ascribeBlock(node.Exprs, st, ctx)

	case *ast.Subshell:
		return a.ascribeBlock(node.Body, st, ctx)

	case *ast.Substitution:
		return a.ascribeCaptureLike(node.Span(), node.Commands, st, ctx)

	case *ast.Capture:
		return a.ascribeCaptureLike(node.Span(), node.Commands, st, ctx)

	case *ast.VarDeclaration:
		return a.ascribeVarDecl(node, st, ctx)

	case *ast.Assign:
		return a.ascribeAssign(node, st, ctx)

	case *ast.Read:
		for _, name := range node.Names {
			if local, ok := a.findLocal(st.Source, node, name); ok {
				ctx.PushLocalTyped(local, a.prim(typesystem.String), true)
			}
		}
		return hir.NewNoop(node.Span(), a.prim(typesystem.Unit))

	case *ast.Conditional:
		return a.ascribeConditional(node, st, ctx)

	case *ast.ConditionalLoop:
		return a.ascribeLoop(node, st, ctx)

	case *ast.ForIn:
		return a.ascribeForIn(node, st, ctx)

	case *ast.Match:
		return a.ascribeMatch(node, st, ctx)

	case *ast.Continue:
		if !st.InLoop {
			a.Diags.Add(diagnostics.New(diagnostics.InvalidBreakContinue, "continue outside of a loop").At("", int(st.Source), node.Span(), "invalid continue"))
		}
		return &hir.TypedExpr{Kind: hir.Continue, Type: a.prim(typesystem.Nothing), Span: node.Span()}

	case *ast.Break:
		if !st.InLoop {
			a.Diags.Add(diagnostics.New(diagnostics.InvalidBreakContinue, "break outside of a loop").At("", int(st.Source), node.Span(), "invalid break"))
		}
		return &hir.TypedExpr{Kind: hir.Break, Type: a.prim(typesystem.Nothing), Span: node.Span()}

	case *ast.Return:
		var val *hir.TypedExpr
		if node.Value != nil {
			val = a.ascribeExpr(node.Value, st.consumed(), ctx)
			a.returns[st.Source] = append(a.returns[st.Source], returnRecord{Type: val.Type, Span: node.Span()})
		} else {
			a.returns[st.Source] = append(a.returns[st.Source], returnRecord{Type: a.prim(typesystem.Unit), Span: node.Span()})
		}
		return &hir.TypedExpr{Kind: hir.Return, Type: a.prim(typesystem.Nothing), Span: node.Span(), ReturnValue: val}

	case *ast.BinaryOp:
		return a.ascribeBinary(node, st, ctx)

	case *ast.UnaryOp:
		return a.ascribeUnary(node, st, ctx)

	case *ast.Cast:
		return a.ascribeCast(node, st, ctx)

	case *ast.Call:
		var args []*hir.TypedExpr
		for _, arg := range node.Args {
			args = append(args, a.coerceToString(a.ascribeExpr(arg, st.consumed(), ctx)))
		}
		return &hir.TypedExpr{Kind: hir.ProcessCall, Type: a.prim(typesystem.ExitCode), Span: node.Span(), ProcessArgs: args}

	case *ast.Pipeline:
		var cmds []*hir.TypedExpr
		for _, c := range node.Commands {
			cmds = append(cmds, a.ascribeExpr(c, st.notConsumed(), ctx))
		}
		return &hir.TypedExpr{Kind: hir.Pipeline, Type: a.prim(typesystem.ExitCode), Span: node.Span(), Exprs: cmds}

	case *ast.Redirect:
		return a.ascribeRedirect(node, st, ctx)

	case *ast.FunctionCall:
		return a.ascribeFunctionCall(node, st, ctx)

	case *ast.MethodCall:
		return a.ascribeMethodCall(node, st, ctx)

	case *ast.FunctionDeclaration:
		// Forward-declared already (forwardDeclareAll); as a statement it
		// contributes nothing to the enclosing block's value.
		return hir.NewNoop(node.Span(), a.prim(typesystem.Unit))

	case *ast.Lambda:
		return a.ascribeLambdaValue(node, st, ctx)

	default:
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}
}

func (a *Ascriber) ascribeLiteral(n *ast.Literal) *hir.TypedExpr {
	switch n.Kind {
	case ast.LitInt:
		return hir.NewLiteral(n.Span(), a.prim(typesystem.Int), hir.LiteralValue{Int: n.Int})
	case ast.LitFloat:
		return hir.NewLiteral(n.Span(), a.prim(typesystem.Float), hir.LiteralValue{Float: n.Float})
	case ast.LitString:
		return hir.NewLiteral(n.Span(), a.prim(typesystem.String), hir.LiteralValue{String: n.String})
	case ast.LitBool:
		return hir.NewLiteral(n.Span(), a.prim(typesystem.Bool), hir.LiteralValue{Bool: n.Bool})
	default:
		return hir.NewLiteral(n.Span(), a.prim(typesystem.Error), hir.LiteralValue{})
	}
}

// ascribeTemplate implements spec §4.4 "Template string": concatenate
// parts via String::concat, coercing each non-String part via to_string.
func (a *Ascriber) ascribeTemplate(n *ast.TemplateString, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	if len(n.Parts) == 0 {
		return hir.NewLiteral(n.Span(), a.prim(typesystem.String), hir.LiteralValue{String: ""})
	}
	typed := make([]*hir.TypedExpr, len(n.Parts))
	for i, p := range n.Parts {
		typed[i] = a.coerceToString(a.ascribeExpr(p, st.consumed(), ctx))
	}
	result := typed[0]
	concatMethod, _ := a.Catalog.Lookup(typesystem.String, "concat", []typesystem.Prim{typesystem.String})
	for _, part := range typed[1:] {
		result = &hir.TypedExpr{
			Kind: hir.MethodCall, Type: a.prim(typesystem.String), Span: n.Span(),
			Receiver: result, Def: typesystem.Definition{Kind: typesystem.DefNative, Native: concatMethod.ID}, Args: []*hir.TypedExpr{part},
		}
	}
	return result
}

// coerceToString invokes to_string on expr if it isn't already a String
// (spec §4.4, §4.5).
func (a *Ascriber) coerceToString(expr *hir.TypedExpr) *hir.TypedExpr {
	if expr.Type == a.prim(typesystem.String) {
		return expr
	}
	recvPrim, ok := a.primOf(expr.Type)
	if !ok {
		return expr
	}
	m, ok := a.Catalog.Lookup(recvPrim, "to_string", nil)
	if !ok {
		return expr
	}
	return &hir.TypedExpr{
		Kind: hir.MethodCall, Type: a.prim(typesystem.String), Span: expr.Span,
		Receiver: expr, Def: typesystem.Definition{Kind: typesystem.DefNative, Native: m.ID},
	}
}

// primOf reports the Prim a TypeRef resolves to, if it is a primitive in
// the current reef's Typing table.
func (a *Ascriber) primOf(ref typesystem.TypeRef) (typesystem.Prim, bool) {
	ty := a.Typing.Get(ref.ID)
	if ty.Kind != typesystem.KindPrimitive {
		return 0, false
	}
	return ty.Prim, true
}

// ascribeReference implements spec §4.4 "Var reference": reads the
// symbol's type via its SymbolRef, resolving external refs through the
// relation's Resolved state.
func (a *Ascriber) ascribeReference(n *ast.Reference, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	env := a.Engine.Get(st.Source)
	ref, ok := env.AnnotationOf(n)
	if !ok {
		return hir.NewReference(n.Span(), a.prim(typesystem.Error), hir.Var{})
	}

	switch ref.Kind {
	case engine.RefLocal:
		tv, ok := ctx.Lookup(ref.Local)
		ty := a.prim(typesystem.Error)
		if ok {
			ty = tv.Type
		}
		return hir.NewReference(n.Span(), ty, hir.Var{Kind: hir.VarLocal, Local: ref.Local})

	case engine.RefExternal:
		rel := a.Relations.Get(ref.Relation)
		switch rel.State {
		case relations.Resolved:
			ty := a.typeOfResolved(rel.Resolved)
			return hir.NewReference(n.Span(), ty, hir.Var{Kind: hir.VarExternal, External: hir.ResolvedSymbol{Source: rel.Resolved.Source, Local: rel.Resolved.Local}})
		default: // Dead or still Unresolved (shouldn't happen post-resolver)
			return hir.NewReference(n.Span(), a.prim(typesystem.Error), hir.Var{Kind: hir.VarExternal})
		}
	}
	return hir.NewReference(n.Span(), a.prim(typesystem.Error), hir.Var{})
}

// typeOfResolved finds the type a resolved relation's target local was
// given — same reef only; cross-reef captures don't occur in this core
// (captures only happen within one collector pass over one reef), and
// cross-reef *symbol* (not capture) references are functions whose type
// was already registered in their own reef's context during that reef's
// own ascription run, which the driver is expected to have merged into
// this Ascriber's contexts for any previously-built reef it imports from.
func (a *Ascriber) typeOfResolved(res relations.Resolution) typesystem.TypeRef {
	ctx := a.getContext(res.Source)
	if tv, ok := ctx.Lookup(res.Local); ok {
		return tv.Type
	}
	return a.prim(typesystem.Unknown)
}
