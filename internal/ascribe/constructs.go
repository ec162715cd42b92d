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

// findLocal recovers the LocalId a declaration-site node introduced, by
// scanning the environment's flat local list for the matching DeclNode and
// name. Used instead of Environment.Lookup wherever ascription needs the
// binding of a construct (Read, ForIn, Match pattern) that opened and
// closed its own scope back during collection — by ascription time that
// scope is gone from Environment's stack, but the binding itself survives
// in Locals() (spec §4.1, §4.4).
func (a *Ascriber) findLocal(source engine.SourceId, node ast.Node, name string) (engine.LocalId, bool) {
	for _, sym := range a.Engine.Get(source).Locals() {
		if sym.DeclNode == node && sym.Name == name {
			return sym.ID, true
		}
	}
	return 0, false
}

// convert wraps expr in a Convert node targeting into, used for numeric
// widening and condition coercion (spec §3 "Convert").
func convert(expr *hir.TypedExpr, into typesystem.TypeRef) *hir.TypedExpr {
	return &hir.TypedExpr{Kind: hir.Convert, Type: into, Span: expr.Span, ConvertInner: expr, ConvertInto: into}
}

// castCondition coerces expr to a Bool condition (spec §4.4 "If/
// While/Loop condition"): a Bool is kept as-is, an ExitCode is wrapped in
// a Convert to Bool, and anything else emits TypeMismatch.
func (a *Ascriber) castCondition(expr *hir.TypedExpr, source engine.SourceId) *hir.TypedExpr {
	if a.Typing.IsConditionCompatible(expr.Type) {
		if a.Typing.Get(expr.Type.ID).Prim == typesystem.ExitCode {
			return convert(expr, a.prim(typesystem.Bool))
		}
		return expr
	}
	a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "condition must be Bool or ExitCode").
		At("", int(source), expr.Span, "invalid condition type"))
	return expr
}

// ascribeVarDecl implements spec §4.4 "Var declaration": types the
// initializer, checks it against an optional annotation (widening or
// TypeMismatch), and pushes the binding into the current TypeContext with
// Assignable set from the `val`/`var` kind.
func (a *Ascriber) ascribeVarDecl(n *ast.VarDeclaration, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	init := a.ascribeExpr(n.Init, st.consumed(), ctx)
	declared := init.Type

	if n.Annotation != nil {
		annTy := a.resolveAnnotation(n.Annotation, nil, "")
		if !a.Typing.IsSubtype(init.Type, annTy) {
			if a.Typing.WidenNumeric(init.Type, annTy) {
				init = convert(init, annTy)
			} else {
				a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "initializer does not match declared type").
					At("", int(st.Source), n.Init.Span(), "mismatched initializer"))
			}
		}
		declared = annTy
	}

	local, ok := a.Engine.Get(st.Source).AnnotationOf(n)
	if !ok || local.Kind != engine.RefLocal {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}
	ctx.PushLocalTyped(local.Local, declared, n.Kind == ast.DeclVar)

	return &hir.TypedExpr{Kind: hir.Declare, Type: a.prim(typesystem.Unit), Span: n.Span(), DeclLocal: local.Local, DeclInit: init}
}

// ascribeAssign implements spec §4.4 "Assignment": the target must resolve
// to a mutable (`var`) local or captured variable, with the same widening
// rule as VarDeclaration; reassigning a `val` is CannotReassign.
func (a *Ascriber) ascribeAssign(n *ast.Assign, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	value := a.ascribeExpr(n.Value, st.consumed(), ctx)

	ref, ok := n.Target.(*ast.Reference)
	if !ok {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}
	env := a.Engine.Get(st.Source)
	sym, ok := env.AnnotationOf(ref)
	if !ok {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}

	var targetCtx *typesystem.TypeContext
	var local engine.LocalId
	var hv hir.Var

	switch sym.Kind {
	case engine.RefLocal:
		targetCtx, local, hv = ctx, sym.Local, hir.Var{Kind: hir.VarLocal, Local: sym.Local}
	case engine.RefExternal:
		rel := a.Relations.Get(sym.Relation)
		if rel.State != relations.Resolved {
			return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
		}
		targetCtx = a.getContext(rel.Resolved.Source)
		local = rel.Resolved.Local
		hv = hir.Var{Kind: hir.VarExternal, External: hir.ResolvedSymbol{Source: rel.Resolved.Source, Local: rel.Resolved.Local}}
	}

	tv, ok := targetCtx.Lookup(local)
	if !ok {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}
	if !tv.Assignable {
		a.Diags.Add(diagnostics.New(diagnostics.CannotReassign, "cannot reassign an immutable binding").
			At("", int(st.Source), n.Span(), "immutable binding"))
	} else if !a.Typing.IsSubtype(value.Type, tv.Type) {
		if a.Typing.WidenNumeric(value.Type, tv.Type) {
			value = convert(value, tv.Type)
		} else {
			a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "assigned value does not match the binding's type").
				At("", int(st.Source), n.Value.Span(), "mismatched assignment"))
		}
	}

	return &hir.TypedExpr{Kind: hir.Assign, Type: a.prim(typesystem.Unit), Span: n.Span(), Var: hv, AssignValue: value}
}

// ascribeConditional implements spec §4.4 "If": the condition coerces to
// Bool/ExitCode; when the result is observed (localType), the branches
// must unify (equal types, or one widens to the other) else TypeMismatch
// and the node types Error.
func (a *Ascriber) ascribeConditional(n *ast.Conditional, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	cond := a.castCondition(a.ascribeExpr(n.Cond, st.consumed(), ctx), st.Source)
	branchState := st
	then := a.ascribeExpr(n.Then, branchState, ctx)

	var otherwise *hir.TypedExpr
	if n.Otherwise != nil {
		otherwise = a.ascribeExpr(n.Otherwise, branchState, ctx)
	}

	result := a.prim(typesystem.Unit)
	if st.LocalType {
		switch {
		case otherwise == nil:
			a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "if used as a value needs an else branch").
				At("", int(st.Source), n.Span(), "missing else branch"))
			result = a.prim(typesystem.Error)
		case then.Type == otherwise.Type:
			result = then.Type
		case a.Typing.WidenNumeric(then.Type, otherwise.Type):
			then = convert(then, otherwise.Type)
			result = otherwise.Type
		case a.Typing.WidenNumeric(otherwise.Type, then.Type):
			otherwise = convert(otherwise, then.Type)
			result = then.Type
		default:
			a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "if branches have incompatible types").
				At("", int(st.Source), n.Span(), "branch type mismatch"))
			result = a.prim(typesystem.Error)
		}
	}

	return &hir.TypedExpr{Kind: hir.Conditional, Type: result, Span: n.Span(), Cond: cond, Then: then, Otherwise: otherwise}
}

// ascribeLoop implements spec §4.4 "While"/"Loop": a loop is always typed
// Unit and always runs its body with InLoop set, so Continue/Break inside
// validate.
func (a *Ascriber) ascribeLoop(n *ast.ConditionalLoop, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	var cond *hir.TypedExpr
	if n.Cond != nil {
		cond = a.castCondition(a.ascribeExpr(n.Cond, st.consumed(), ctx), st.Source)
	}
	bodyState := st.notConsumed()
	bodyState.InLoop = true
	body := a.ascribeExpr(n.Body, bodyState, ctx)

	return &hir.TypedExpr{Kind: hir.ConditionalLoop, Type: a.prim(typesystem.Unit), Span: n.Span(), LoopCond: cond, LoopBody: body}
}

// ascribeForIn implements the supplemental `for` loop (ast.ForIn doc
// comment): the iterable is typed but iteration-element inference is out
// of scope for this core, so the loop variable is bound as String, the
// closest analogue to the shell's word-splitting iteration (spec §9 open
// questions: iterable element types are left unspecified).
func (a *Ascriber) ascribeForIn(n *ast.ForIn, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	iterable := a.ascribeExpr(n.Iterable, st.consumed(), ctx)

	if local, ok := a.findLocal(st.Source, n, n.Var); ok {
		ctx.PushLocalTyped(local, a.prim(typesystem.String), true)
	}

	bodyState := st.notConsumed()
	bodyState.InLoop = true
	body := a.ascribeExpr(n.Body, bodyState, ctx)

	return &hir.TypedExpr{Kind: hir.ConditionalLoop, Type: a.prim(typesystem.Unit), Span: n.Span(), LoopCond: iterable, LoopBody: body}
}

// ascribeMatch implements spec §4.4 "Match": each arm's pattern, if a
// Reference, binds the subject's type for that arm's body; arms are typed
// independently and the match's own type follows localType like a
// Conditional chain, defaulting to Unit when its value isn't observed.
func (a *Ascriber) ascribeMatch(n *ast.Match, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	subject := a.ascribeExpr(n.Subject, st.consumed(), ctx)

	var armExprs []*hir.TypedExpr
	var result typesystem.TypeRef
	first := true
	for _, arm := range n.Arms {
		if ref, ok := arm.Pattern.(*ast.Reference); ok && len(ref.Path.Items) == 1 {
			if local, ok := a.findLocal(st.Source, ref, ref.Path.Items[0].Segment); ok {
				ctx.PushLocalTyped(local, subject.Type, false)
			}
		}
		body := a.ascribeExpr(arm.Body, st, ctx)
		armExprs = append(armExprs, body)
		if !st.LocalType {
			continue
		}
		if first {
			result = body.Type
			first = false
		} else if result != body.Type && !a.Typing.WidenNumeric(body.Type, result) {
			a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "match arms have incompatible types").
				At("", int(st.Source), arm.Body.Span(), "arm type mismatch"))
			result = a.prim(typesystem.Error)
		}
	}
	if !st.LocalType || first {
		result = a.prim(typesystem.Unit)
	}

	return &hir.TypedExpr{Kind: hir.Block, Type: result, Span: n.Span(), Exprs: append([]*hir.TypedExpr{subject}, armExprs...)}
}

// binOpMethod maps a BinaryOp's surface operator to the native catalog's
// method name (spec §4.5 "operator-as-method dispatch").
func binOpMethod(op string) string {
	switch op {
	case "+":
		return "plus"
	case "-":
		return "sub"
	case "*":
		return "mul"
	case "/":
		return "div"
	case "%":
		return "mod"
	case "==":
		return "eq"
	case "<":
		return "lt"
	case "<=":
		return "le"
	case ">":
		return "gt"
	case ">=":
		return "ge"
	default:
		return op
	}
}

// ascribeBinary implements spec §4.4/§4.5 "Binary operator": dispatched as
// a method call on the left operand's primitive, failing with UnknownMethod
// when no native method matches (spec §7: "Undefined operator").
func (a *Ascriber) ascribeBinary(n *ast.BinaryOp, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	left := a.ascribeExpr(n.Left, st.consumed(), ctx)
	right := a.ascribeExpr(n.Right, st.consumed(), ctx)

	leftPrim, ok := a.primOf(left.Type)
	if !ok {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}
	rightPrim, rok := a.primOf(right.Type)
	if !rok {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}

	method, ok := a.Catalog.Lookup(leftPrim, binOpMethod(n.Op), []typesystem.Prim{rightPrim})
	if !ok {
		a.Diags.Add(diagnostics.New(diagnostics.UnknownMethod, "Undefined operator %s for %s and %s", n.Op, leftPrim, rightPrim).
			At("", int(st.Source), n.Span(), "undefined operator"))
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}

	return &hir.TypedExpr{
		Kind: hir.MethodCall, Type: a.prim(method.Return), Span: n.Span(),
		Receiver: left, Def: typesystem.Definition{Kind: typesystem.DefNative, Native: method.ID}, Args: []*hir.TypedExpr{right},
	}
}

// ascribeUnary implements spec §4.4/§4.5 "Unary operator" (`!`, `-`).
func (a *Ascriber) ascribeUnary(n *ast.UnaryOp, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	operand := a.ascribeExpr(n.Operand, st.consumed(), ctx)
	prim, ok := a.primOf(operand.Type)
	if !ok {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}

	name := "neg"
	if n.Op == "!" {
		name = "not"
	}
	method, ok := a.Catalog.Lookup(prim, name, nil)
	if !ok {
		a.Diags.Add(diagnostics.New(diagnostics.UnknownMethod, "Undefined operator %s for %s", n.Op, prim).
			At("", int(st.Source), n.Span(), "undefined operator"))
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}

	return &hir.TypedExpr{
		Kind: hir.MethodCall, Type: a.prim(method.Return), Span: n.Span(),
		Receiver: operand, Def: typesystem.Definition{Kind: typesystem.DefNative, Native: method.ID},
	}
}

// ascribeCast implements spec §4.4 "Cast `expr as T`": resolves T and
// requires expr's type to be a subtype of T, or the two to be related by
// numeric widening in either direction, else IncompatibleCast.
func (a *Ascriber) ascribeCast(n *ast.Cast, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	inner := a.ascribeExpr(n.Expr, st.consumed(), ctx)
	target := a.resolveAnnotation(n.Type, nil, "")

	if !a.Typing.IsSubtype(inner.Type, target) && !a.Typing.WidenNumeric(inner.Type, target) && !a.Typing.WidenNumeric(target, inner.Type) {
		a.Diags.Add(diagnostics.New(diagnostics.IncompatibleCast, "cannot cast to this type").
			At("", int(st.Source), n.Span(), "incompatible cast"))
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}

	return convert(inner, target)
}

// ascribeRedirect implements spec §4.4 "Redirect": an fd-in/fd-out operand
// must type as Int (the raw file descriptor number); every other operand
// kind is coerced to String like a shell Call argument.
func (a *Ascriber) ascribeRedirect(n *ast.Redirect, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	inner := a.ascribeExpr(n.Inner, st.notConsumed(), ctx)

	redirs := make([]hir.Redir, len(n.Redirs))
	for i, r := range n.Redirs {
		operand := a.ascribeExpr(r.Operand, st.consumed(), ctx)
		kind := hir.RedirKind(r.Kind)
		switch r.Kind {
		case ast.RedirFdIn, ast.RedirFdOut:
			if operand.Type != a.prim(typesystem.Int) {
				a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "file descriptor redirection requires an Int").
					At("", int(st.Source), r.Operand.Span(), "expected Int"))
			}
		default:
			operand = a.coerceToString(operand)
		}
		redirs[i] = hir.Redir{Kind: kind, Operand: operand}
	}

	return &hir.TypedExpr{Kind: hir.Redirect, Type: a.prim(typesystem.ExitCode), Span: n.Span(), Inner: inner, Redirs: redirs}
}

// ascribeCaptureLike implements spec §4.4 "Substitution"/"Capture": the
// contained commands are typed individually (their own exit codes
// discarded), and the overall expression types String, the captured
// standard output (spec §9 "command substitution types as String").
func (a *Ascriber) ascribeCaptureLike(span token.Span, commands []ast.Node, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	exprs := make([]*hir.TypedExpr, len(commands))
	for i, c := range commands {
		exprs[i] = a.ascribeExpr(c, st.notConsumed(), ctx)
	}
	return &hir.TypedExpr{Kind: hir.Capture, Type: a.prim(typesystem.String), Span: span, Exprs: exprs}
}

// ascribeFunctionCall implements spec §4.4 "Programmatic call": resolves
// the callee to a Function type via its forward-declared signature,
// checks arity, coerces/validates each argument, and reports TypeMismatch
// or CannotInfer on a leaked (unresolved) polytype in the return type.
func (a *Ascriber) ascribeFunctionCall(n *ast.FunctionCall, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	callee, ok := n.Callee.(*ast.Reference)
	if !ok {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}
	calleeExpr := a.ascribeReference(callee, st.consumed(), ctx)

	calleeTy := a.Typing.Get(calleeExpr.Type.ID)
	if calleeTy.Kind != typesystem.KindFunction {
		a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "called value is not a function").
			At("", int(st.Source), n.Span(), "not callable"))
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}

	if len(n.Args) != len(calleeTy.Params) {
		a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "wrong number of arguments: expected %d, got %d", len(calleeTy.Params), len(n.Args)).
			At("", int(st.Source), n.Span(), "argument count mismatch"))
	}

	// TypesBounds (spec §4.4 "Polymorphism and bounds"): each polytype
	// parameter's bound starts unset and is seeded by the first argument
	// bound to it, then widened (never narrowed) by every further
	// argument sharing that same polytype — this AST has no explicit
	// type-argument call syntax, so bounds are seeded purely from argument
	// types, never from user-provided type arguments.
	bounds := make(map[typesystem.TypeId]typesystem.TypeRef)
	args := make([]*hir.TypedExpr, 0, len(n.Args))
	for i, arg := range n.Args {
		typedArg := a.ascribeExpr(arg, st.consumed(), ctx)
		if i < len(calleeTy.Params) {
			want := calleeTy.Params[i]
			typedArg = a.bindCallArgument(bounds, want, typedArg, i+1, st, arg.Span())
		}
		args = append(args, typedArg)
	}

	retTy := calleeTy.Return
	if a.Typing.Get(retTy.ID).Kind == typesystem.KindPolytype {
		if bound, ok := bounds[retTy.ID]; ok {
			retTy = bound
		} else {
			a.Diags.Add(diagnostics.New(diagnostics.CannotInfer, "cannot infer a concrete return type for this call").
				At("", int(st.Source), n.Span(), "unresolved generic return"))
			retTy = a.prim(typesystem.Error)
		}
	}

	return &hir.TypedExpr{Kind: hir.FunctionCall, Type: retTy, Span: n.Span(), Def: calleeTy.Def, Args: args}
}

// bindCallArgument implements one step of spec §4.4's bounds refinement:
// "take the parameter's bound, attempt conversion, on success update
// bounds with the intersected type, on failure record a mismatch". A
// concrete (non-polytype) parameter is checked the same way it always
// was; a polytype parameter's bound is seeded on first sight and widened
// (never narrowed) on every later argument sharing that polytype.
func (a *Ascriber) bindCallArgument(bounds map[typesystem.TypeId]typesystem.TypeRef, want typesystem.TypeRef, arg *hir.TypedExpr, position int, st TypingState, span token.Span) *hir.TypedExpr {
	if a.Typing.Get(want.ID).Kind != typesystem.KindPolytype {
		if !a.Typing.IsSubtype(arg.Type, want) {
			if a.Typing.WidenNumeric(arg.Type, want) {
				return convert(arg, want)
			}
			a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "argument %d does not match parameter type", position).
				At("", int(st.Source), span, "mismatched argument"))
		}
		return arg
	}

	bound, seeded := bounds[want.ID]
	if !seeded {
		bounds[want.ID] = arg.Type
		return arg
	}
	switch {
	case a.Typing.IsSubtype(arg.Type, bound):
		return arg
	case a.Typing.IsSubtype(bound, arg.Type):
		bounds[want.ID] = arg.Type
		return arg
	case a.Typing.WidenNumeric(arg.Type, bound):
		return convert(arg, bound)
	case a.Typing.WidenNumeric(bound, arg.Type):
		bounds[want.ID] = arg.Type
		return arg
	default:
		a.Diags.Add(diagnostics.New(diagnostics.TypeMismatch, "argument %d does not match parameter type", position).
			At("", int(st.Source), span, "mismatched argument"))
		return arg
	}
}

// ascribeMethodCall implements spec §4.4/§4.5 "Method call": this core has
// no user-defined methods, so every MethodCall dispatches through the
// native catalog on the receiver's primitive type.
func (a *Ascriber) ascribeMethodCall(n *ast.MethodCall, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	receiver := a.ascribeExpr(n.Receiver, st.consumed(), ctx)
	args := make([]*hir.TypedExpr, len(n.Args))
	argPrims := make([]typesystem.Prim, len(n.Args))
	for i, arg := range n.Args {
		args[i] = a.ascribeExpr(arg, st.consumed(), ctx)
		if p, ok := a.primOf(args[i].Type); ok {
			argPrims[i] = p
		}
	}

	recvPrim, ok := a.primOf(receiver.Type)
	if !ok {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}
	method, ok := a.Catalog.Lookup(recvPrim, n.Method, argPrims)
	if !ok {
		a.Diags.Add(diagnostics.New(diagnostics.UnknownMethod, "No matching method found for %s::%s", recvPrim, n.Method).
			At("", int(st.Source), n.Span(), "unknown method"))
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}

	return &hir.TypedExpr{
		Kind: hir.MethodCall, Type: a.prim(method.Return), Span: n.Span(),
		Receiver: receiver, Def: typesystem.Definition{Kind: typesystem.DefNative, Native: method.ID}, Args: args,
	}
}

// ascribeLambdaValue types a lambda literal used as a value: its own body
// was (or will be) typed separately as its own chunk by Ascriber.Run.
// Spec §4.4 ascribes a Lambda the same way as a named function
// declaration: the collector declared a local for it (synthesizing a name
// "lambda@<id>") and forwardDeclareAll already pushed a
// Function(User(funcSrc)) type for that local into this environment's
// context — so a lambda-as-value is just a Reference to that local, not a
// call of the lambda body.
func (a *Ascriber) ascribeLambdaValue(n *ast.Lambda, st TypingState, ctx *typesystem.TypeContext) *hir.TypedExpr {
	env := a.Engine.Get(st.Source)
	ref, ok := env.AnnotationOf(n)
	if !ok || ref.Kind != engine.RefLocal {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}
	tv, ok := ctx.Lookup(ref.Local)
	if !ok {
		return hir.NewNoop(n.Span(), a.prim(typesystem.Error))
	}
	return hir.NewReference(n.Span(), tv.Type, hir.Var{Kind: hir.VarLocal, Local: ref.Local})
}
