// Package hir implements spec §3 "HIR" and "Chunks and TypedEngine": the
// typed intermediate representation the ascription pass builds and the
// emitter consumes.
//
// TypedExpr follows sunholo-data-ailang's typedast.TypedNode idiom (a discriminated
// struct with a Kind tag plus kind-specific fields) rather than many
// concrete Go types implementing a common interface — the same closed-set,
// type-switch-friendly shape internal/ast already uses, so the ascription
// and emitter passes dispatch HIR nodes the same way they dispatch AST
// nodes (spec §9 "Heterogeneous AST visits").
package hir

import (
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/token"
	"github.com/modernsh/moshell/internal/typesystem"
)

// ExprKind discriminates TypedExpr (spec §3).
type ExprKind int

const (
	Literal ExprKind = iota
	Reference
	Block
	Declare
	Assign
	Conditional
	ConditionalLoop
	Continue
	Break
	Return
	FunctionCall
	MethodCall
	ProcessCall
	Pipeline
	Redirect
	Capture
	Convert
	Noop
)

// VarKind distinguishes a Reference/Assign target: a same-chunk local, or
// a captured variable resolved in an enclosing chunk (spec §3: "Var is
// either Local(LocalId) or External(ResolvedSymbol)").
type VarKind int

const (
	VarLocal VarKind = iota
	VarExternal
)

// Var names the thing a Reference or Assign reads/writes.
type Var struct {
	Kind     VarKind
	Local    engine.LocalId  // VarLocal
	External ResolvedSymbol  // VarExternal
}

// ResolvedSymbol pins down a captured variable: which chunk owns it, and
// its LocalId there.
type ResolvedSymbol struct {
	Source engine.SourceId
	Local  engine.LocalId
}

// RedirKind mirrors ast.RedirOperandKind at the HIR level, after the
// operand has been typed.
type RedirKind int

const (
	RedirFdIn RedirKind = iota
	RedirFdOut
	RedirAppend
	RedirHereString
)

// Redir is one typed redirection clause.
type Redir struct {
	Kind    RedirKind
	Operand *TypedExpr
}

// LiteralValue holds the constant payload of a Literal node.
type LiteralValue struct {
	Int    int64
	Float  float64
	String string
	Bool   bool
}

// TypedExpr is one HIR node (spec §3). Exactly one group of kind-specific
// fields is populated, selected by Kind; the rest are zero.
//
// Memory ownership (spec §5): a TypedExpr subtree is uniquely owned by its
// parent — no TypedExpr pointer is ever shared between two parents.
type TypedExpr struct {
	Kind ExprKind
	Type typesystem.TypeRef
	Span token.Span

	// Literal
	Value LiteralValue

	// Reference, Assign (target)
	Var Var

	// Block, Pipeline, Capture
	Exprs []*TypedExpr

	// Declare
	DeclLocal engine.LocalId
	DeclInit  *TypedExpr // nil if uninitialized

	// Assign
	AssignValue *TypedExpr

	// Conditional
	Cond      *TypedExpr
	Then      *TypedExpr
	Otherwise *TypedExpr // nil if no else branch

	// ConditionalLoop
	LoopCond *TypedExpr // nil for `loop { ... }`
	LoopBody *TypedExpr

	// Return
	ReturnValue *TypedExpr // nil for bare `return`

	// FunctionCall, MethodCall
	Def      typesystem.Definition
	Receiver *TypedExpr // MethodCall only
	Args     []*TypedExpr

	// ProcessCall
	ProcessArgs []*TypedExpr

	// Redirect
	Inner  *TypedExpr
	Redirs []Redir

	// Convert
	ConvertInner *TypedExpr
	ConvertInto  typesystem.TypeRef
}

// NewLiteral, NewBlock, etc. are small constructors used by the ascription
// pass and by tests building HIR fixtures directly; they just fix Kind and
// the span/type, leaving kind-specific fields to the caller.

func NewLiteral(span token.Span, ty typesystem.TypeRef, v LiteralValue) *TypedExpr {
	return &TypedExpr{Kind: Literal, Type: ty, Span: span, Value: v}
}

func NewReference(span token.Span, ty typesystem.TypeRef, v Var) *TypedExpr {
	return &TypedExpr{Kind: Reference, Type: ty, Span: span, Var: v}
}

func NewBlock(span token.Span, ty typesystem.TypeRef, exprs []*TypedExpr) *TypedExpr {
	return &TypedExpr{Kind: Block, Type: ty, Span: span, Exprs: exprs}
}

func NewNoop(span token.Span, ty typesystem.TypeRef) *TypedExpr {
	return &TypedExpr{Kind: Noop, Type: ty, Span: span}
}

// Param is one chunk parameter: its declared type and where it was
// declared (spec §3 Chunk).
type Param struct {
	Name  string
	Local engine.LocalId
	Type  typesystem.TypeRef
	Span  token.Span
}

// Chunk is the typed body of one SourceId — a module root (script) or a
// function (spec §3 "Chunks and TypedEngine").
type Chunk struct {
	Source     engine.SourceId
	Params     []Param
	TypeParams []string
	Return     typesystem.TypeRef
	Body       *TypedExpr
	IsScript   bool
}

// TypedEngine stores, for each SourceId, the Chunk the ascription pass
// produced (spec §3).
type TypedEngine struct {
	chunks map[engine.SourceId]*Chunk
}

// NewTypedEngine returns an empty TypedEngine.
func NewTypedEngine() *TypedEngine {
	return &TypedEngine{chunks: make(map[engine.SourceId]*Chunk)}
}

// Set records the Chunk typed for source. Overwriting an existing entry
// is a caller bug (ascription visits every SourceId exactly once) — Set
// panics rather than silently discarding a chunk.
func (e *TypedEngine) Set(source engine.SourceId, chunk *Chunk) {
	if _, exists := e.chunks[source]; exists {
		panic("hir: chunk already set for source")
	}
	e.chunks[source] = chunk
}

// Get returns the chunk typed for source, if any.
func (e *TypedEngine) Get(source engine.SourceId) (*Chunk, bool) {
	c, ok := e.chunks[source]
	return c, ok
}

// Has reports whether source has already been typed.
func (e *TypedEngine) Has(source engine.SourceId) bool {
	_, ok := e.chunks[source]
	return ok
}
