// Package ast defines the abstract syntax tree this core consumes. Per
// spec §1 the lexer/parser are external collaborators; this package only
// describes the shape of what they hand us.
//
// Node kinds are a closed set (spec §9 "heterogeneous AST visits" design
// note): passes dispatch over them with a type switch rather than an
// open Visitor hierarchy, so adding a pass never requires touching every
// node type — only every pass that must handle the new kind.
package ast

import (
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/token"
)

// Node is the minimal shape every AST node provides: its source span.
type Node interface {
	Span() token.Span
}

// NodeSpan is embedded by every concrete node to satisfy Node. It is an
// exported struct (not a private field) precisely so code outside this
// package — tests building small ASTs by hand, or a real parser — can set
// the span via a normal struct literal.
type NodeSpan struct {
	Pos token.Span
}

func (b NodeSpan) Span() token.Span { return b.Pos }

// ---- module root ----

// Module is the root node of one compilation unit (spec §4.1: "the AST of
// a module").
type Module struct {
	NodeSpan
	Name  string
	Uses  []*Use
	Body  []Node // statements/expressions in source order
}

// ---- imports ----

// UseKind distinguishes the import directive shapes (spec §3 Imports).
type UseKind int

const (
	UseSymbol UseKind = iota
	UseAllIn
	UseEnvironment
	UseList
)

// Use is one `use` directive.
type Use struct {
	NodeSpan
	Kind  UseKind
	Path  reef.InclusionPath // target module/symbol path (UseSymbol, UseAllIn)
	Alias string             // optional alias (UseSymbol only)
	EnvVar string            // variable name (UseEnvironment only)
	Nested []*Use            // flattened prefix group (UseList only, before flattening)
}

// ---- literals & references ----

type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitFloat
	LitString
	LitBool
)

type Literal struct {
	NodeSpan
	Kind LiteralKind
	Int    int64
	Float  float64
	String string
	Bool   bool
}

// TemplateString concatenates literal and interpolated parts.
type TemplateString struct {
	NodeSpan
	Parts []Node
}

// Reference is a (possibly qualified) variable or type reference.
type Reference struct {
	NodeSpan
	Path reef.InclusionPath
}

// ---- scoping constructs ----

type Block struct {
	NodeSpan
	Exprs []Node
}

type Subshell struct {
	NodeSpan
	Body []Node
}

// Substitution is a command substitution used as a String-valued
// expression, e.g. `$(cmd)`.
type Substitution struct {
	NodeSpan
	Commands []Node
}

// ---- declarations & assignment ----

type DeclKind int

const (
	DeclVal DeclKind = iota // immutable
	DeclVar                 // assignable
)

type TypeAnnotation struct {
	NodeSpan
	Path reef.InclusionPath
	Args []*TypeAnnotation // generic type arguments
}

type VarDeclaration struct {
	NodeSpan
	Kind       DeclKind
	Name       string
	Annotation *TypeAnnotation // optional
	Init       Node
}

type Assign struct {
	NodeSpan
	Target Node // Reference (or, once resolved, a qualified field target)
	Value  Node
}

// Read is the special built-in `read NAME...` that introduces one or more
// locals named by its arguments (spec §4.1).
type Read struct {
	NodeSpan
	Names []string
}

// ---- control flow ----

type Conditional struct {
	NodeSpan
	Cond     Node
	Then     Node
	Otherwise Node // nil if no else branch
}

type ConditionalLoop struct {
	NodeSpan
	Cond Node // nil for `loop { ... }`
	Body Node
}

// ForIn is a supplemental construct (moshell original_source carries a
// `for` loop; spec §4.1 lists `For` among scope-opening constructs without
// detailing semantics, so ascription treats its body like a ConditionalLoop
// body and leaves per-iteration typing to the Declare it implies).
type ForIn struct {
	NodeSpan
	Var      string
	Iterable Node
	Body     Node
}

type MatchArm struct {
	Pattern Node // a Literal, Reference (binding), or nil for wildcard
	Body    Node
}

type Match struct {
	NodeSpan
	Subject Node
	Arms    []MatchArm
}

type Continue struct{ NodeSpan }
type Break struct{ NodeSpan }

type Return struct {
	NodeSpan
	Value Node // nil for bare `return`
}

// ---- calls ----

// Call is a shell-style command invocation: each argument is coerced to
// String and the result is ExitCode (spec §4.4).
type Call struct {
	NodeSpan
	Args []Node
}

type Pipeline struct {
	NodeSpan
	Commands []Node
}

type RedirOperandKind int

const (
	RedirFdIn RedirOperandKind = iota
	RedirFdOut
	RedirAppend // supplemental (original_source): `>>`
	RedirHereString
)

type Redir struct {
	Kind    RedirOperandKind
	Operand Node
}

type Redirect struct {
	NodeSpan
	Inner  Node
	Redirs []Redir
}

type Capture struct {
	NodeSpan
	Commands []Node
}

type Cast struct {
	NodeSpan
	Expr Node
	Type *TypeAnnotation
}

type BinaryOp struct {
	NodeSpan
	Op    string
	Left  Node
	Right Node
}

type UnaryOp struct {
	NodeSpan
	Op      string
	Operand Node
}

// FunctionCall is a programmatic call `f(args)`.
type FunctionCall struct {
	NodeSpan
	Callee Node // Reference
	Args   []Node
}

// MethodCall is `e.m(args)`.
type MethodCall struct {
	NodeSpan
	Receiver Node
	Method   string
	Args     []Node
}

type Param struct {
	Name       string
	Annotation *TypeAnnotation // required for non-generic params; may reference a type-parameter name
	Variadic   bool            // supplemental: parsed but rejected at ascription (spec §9 open question)
	ByName     bool            // supplemental: parsed but rejected at ascription (spec §9 open question)
}

type FunctionDeclaration struct {
	NodeSpan
	Name       string
	TypeParams []string
	Params     []Param
	ReturnType *TypeAnnotation // optional
	Body       Node
}

type Lambda struct {
	NodeSpan
	Params     []Param
	ReturnType *TypeAnnotation
	Body       Node
}

// NewModule constructs a Module node at the given span.
func NewModule(span token.Span, name string) *Module {
	return &Module{NodeSpan: NodeSpan{Pos: span}, Name: name}
}

// Helper constructors set the span explicitly — the parser (external) is
// expected to build nodes directly via struct literals; these are used by
// tests that build small ASTs by hand.
func Span(n Node) token.Span { return n.Span() }
