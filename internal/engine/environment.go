package engine

import (
	"github.com/modernsh/moshell/internal/ast"
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/token"
)

// LocalSymbol is one declared name inside an Environment: a function
// parameter, a `val`/`var` binding, or a function/lambda name.
type LocalSymbol struct {
	ID       LocalId
	Name     string
	Kind     VariableKind
	DeclNode ast.Node
}

// scope is one lexical frame (spec §4.1: "Each Block, Subshell,
// Substitution, each branch of If/While/Loop/For, and each match arm opens
// a scope; scopes nest lexically"). Mirrors the teacher's SymbolTable,
// which nests frames via an `outer *SymbolTable` pointer — here the stack
// lives inside one Environment instead of spanning module boundaries.
type scope struct {
	bindings map[string]LocalId
}

func newScope() *scope {
	return &scope{bindings: make(map[string]LocalId)}
}

// Environment is the scope data of one AST unit — a module (root
// environment) or a nested function/lambda body (spec §3).
type Environment struct {
	FQN      reef.Name
	ParentID *SourceId // nil for a module root

	locals []LocalSymbol
	scopes []*scope // stack; scopes[0] is the outermost (function/module) frame

	// Annotations maps AST nodes to the symbol reference the collector
	// resolved them to (spec §3: "a mapping from AST source-spans to
	// symbol references"). Keyed by node identity (pointer equality),
	// which requires every Node placed here to be a pointer to a concrete
	// ast type — the convention this whole core follows.
	Annotations map[ast.Node]SymbolRef

	// InnerEnvironments maps a nested function/lambda body's span to the
	// SourceId of the Environment tracking it.
	InnerEnvironments map[token.Span]SourceId

	// ChunkDecl is the FunctionDeclaration or Lambda AST node that forked
	// this Environment, or nil for a module root. The ascription pass's
	// forward-declaration step (spec §4.4) reads a chunk's parameters,
	// type-parameters, and return annotation straight off this node rather
	// than re-deriving them from InnerEnvironments' span index.
	ChunkDecl ast.Node
}

// NewEnvironment creates a root (module) or nested (function/lambda)
// Environment with one open outermost scope.
func NewEnvironment(fqn reef.Name, parent *SourceId) *Environment {
	env := &Environment{
		FQN:               fqn,
		ParentID:          parent,
		Annotations:       make(map[ast.Node]SymbolRef),
		InnerEnvironments: make(map[token.Span]SourceId),
	}
	env.scopes = []*scope{newScope()}
	return env
}

// PushScope opens a new lexical frame. Spec §9 "Scoped resources": a pure
// push/pop, no RAII — callers must Pop on every control path, including
// diagnostic recovery.
func (e *Environment) PushScope() {
	e.scopes = append(e.scopes, newScope())
}

// PopScope closes the innermost lexical frame.
func (e *Environment) PopScope() {
	if len(e.scopes) == 0 {
		return
	}
	e.scopes = e.scopes[:len(e.scopes)-1]
}

// Declare allocates a new LocalId in the innermost scope and returns it.
// Shadowing an outer binding of the same name is legal — only the
// innermost scope's binding is visible to subsequent lookups.
func (e *Environment) Declare(name string, kind VariableKind, node ast.Node) LocalId {
	id := LocalId(len(e.locals))
	e.locals = append(e.locals, LocalSymbol{ID: id, Name: name, Kind: kind, DeclNode: node})
	top := e.scopes[len(e.scopes)-1]
	top.bindings[name] = id
	return id
}

// Lookup walks scopes outward (innermost first) looking for name,
// returning the LocalId it currently resolves to.
func (e *Environment) Lookup(name string) (LocalId, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if id, ok := e.scopes[i].bindings[name]; ok {
			return id, true
		}
	}
	return 0, false
}

// Symbol returns the LocalSymbol previously allocated under id.
func (e *Environment) Symbol(id LocalId) LocalSymbol {
	return e.locals[id]
}

// Locals returns every symbol ever declared in this Environment, in
// declaration order (LocalId order).
func (e *Environment) Locals() []LocalSymbol {
	return e.locals
}

// Annotate stably records node's resolved symbol reference. Per spec §3
// invariant, once annotated a node's reference never changes.
func (e *Environment) Annotate(node ast.Node, ref SymbolRef) {
	if _, exists := e.Annotations[node]; exists {
		return
	}
	e.Annotations[node] = ref
}

// AnnotationOf looks up a previously recorded symbol reference.
func (e *Environment) AnnotationOf(node ast.Node) (SymbolRef, bool) {
	ref, ok := e.Annotations[node]
	return ref, ok
}

// RecordInnerEnvironment associates a nested function/lambda body's span
// with the SourceId tracking its Environment.
func (e *Environment) RecordInnerEnvironment(span token.Span, inner SourceId) {
	e.InnerEnvironments[span] = inner
}
