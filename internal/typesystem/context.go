package typesystem

import "github.com/modernsh/moshell/internal/engine"

// TypedVariable pairs a LocalId with the type ascription the checker gave
// it and whether it may be reassigned (spec §4.3).
type TypedVariable struct {
	Local      engine.LocalId
	Type       TypeRef
	Assignable bool
}

// TypeContext is the per-chunk scoped index from LocalId to TypedVariable
// (spec §4.3). Unlike Environment's name-based scopes, this is the
// authoritative by-LocalId store the emitter and ascription passes consult
// once a name has already been resolved to a LocalId.
type TypeContext struct {
	scopes []map[engine.LocalId]TypedVariable
}

// NewTypeContext returns a TypeContext with one (outermost) scope open.
func NewTypeContext() *TypeContext {
	return &TypeContext{scopes: []map[engine.LocalId]TypedVariable{{}}}
}

// PushScope opens a nested scope (entering a Block, loop body, etc.).
func (c *TypeContext) PushScope() {
	c.scopes = append(c.scopes, map[engine.LocalId]TypedVariable{})
}

// PopScope closes the innermost scope.
func (c *TypeContext) PopScope() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

// PushLocalTyped records local's ascription in the innermost scope.
func (c *TypeContext) PushLocalTyped(local engine.LocalId, ty TypeRef, assignable bool) {
	c.scopes[len(c.scopes)-1][local] = TypedVariable{Local: local, Type: ty, Assignable: assignable}
}

// Lookup searches from the innermost scope outward, the same
// nearest-enclosing-scope-wins rule Environment.Lookup uses for names
// (spec §4.3: "a chunk's TypeContext mirrors its Environment's nesting").
func (c *TypeContext) Lookup(local engine.LocalId) (TypedVariable, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if v, ok := c.scopes[i][local]; ok {
			return v, true
		}
	}
	return TypedVariable{}, false
}
