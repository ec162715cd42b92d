// Package typesystem implements spec §3 "Types" and §4.3 "Type System and
// Contexts": the closed algebraic type hierarchy, the per-reef Typing
// table, and the per-chunk TypeContext.
//
// The teacher's own internal/typesystem (internal/typesystem/types.go,
// unify.go) is a full Hindley-Milner system with kinds, traits, and
// structural record/list types — richer than what this spec calls for.
// This file keeps the teacher's shape (a Type discriminated by a Kind tag,
// a dedup table, TVar-like uniqueness for Polytype) but collapses the
// hierarchy down to the nine primitive-like types plus
// Function/Polytype/Instantiated that spec §3 actually names.
package typesystem

import (
	"fmt"

	"github.com/modernsh/moshell/internal/config"
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/reef"
)

// TypeId is local to one reef's Typing table (spec §3).
type TypeId int

// NativeId identifies an entry in the native catalog (spec §4.5). Defined
// here (not in package native) so Type/Definition can reference it without
// an import cycle — package native is the only place that interprets what
// a NativeId actually does.
type NativeId int

// TypeRef uniquely identifies a type across the whole program: a reef id
// plus a TypeId local to that reef's Typing table (spec glossary).
type TypeRef struct {
	Reef reef.ID
	ID   TypeId
}

func (r TypeRef) String() string {
	return fmt.Sprintf("%d#%d", r.Reef, r.ID)
}

// Kind discriminates the closed type hierarchy (spec §3).
type Kind int

const (
	KindPrimitive Kind = iota
	KindFunction
	KindPolytype
	KindInstantiated
)

// Prim enumerates the primitive-like types (spec §3).
type Prim int

const (
	Nothing Prim = iota
	Unit
	Bool
	ExitCode
	Int
	Float
	String
	Error
	Unknown
)

func (p Prim) String() string {
	switch p {
	case Nothing:
		return "Nothing"
	case Unit:
		return "Unit"
	case Bool:
		return "Bool"
	case ExitCode:
		return "ExitCode"
	case Int:
		return "Int"
	case Float:
		return "Float"
	case String:
		return "String"
	case Error:
		return "Error"
	case Unknown:
		return "Unknown"
	default:
		return "?"
	}
}

// DefinitionKind distinguishes a Function type's origin (spec §3).
type DefinitionKind int

const (
	DefUser DefinitionKind = iota
	DefNative
)

// Definition is either User(SourceId) — a function body tracked by the
// current reef's engine — or Native(NativeId) — an entry in the native
// catalog (spec §3).
type Definition struct {
	Kind   DefinitionKind
	User   engine.SourceId
	Native NativeId
}

func (d Definition) String() string {
	if d.Kind == DefNative {
		return fmt.Sprintf("native#%d", d.Native)
	}
	return fmt.Sprintf("user#%d", d.User)
}

// Type is one entry of a reef's Typing table (spec §3).
type Type struct {
	Kind Kind

	// KindPrimitive
	Prim Prim

	// KindFunction
	Params []TypeRef
	Return TypeRef
	Def    Definition

	// KindPolytype — always unique, never deduplicated structurally.
	PolytypeName string
	polytypeUID  int

	// KindInstantiated
	InstBase TypeRef
	InstArgs []TypeRef
}

func (t Type) String() string {
	switch t.Kind {
	case KindPrimitive:
		return t.Prim.String()
	case KindFunction:
		return fmt.Sprintf("Function(%v)->%s", t.Params, t.Return)
	case KindPolytype:
		if t.PolytypeName != "" && !config.NormalizeTypeVarNames {
			return t.PolytypeName
		}
		if config.NormalizeTypeVarNames {
			return "'t?"
		}
		return fmt.Sprintf("'t%d", t.polytypeUID)
	case KindInstantiated:
		return fmt.Sprintf("%s<%v>", t.InstBase, t.InstArgs)
	default:
		return "?"
	}
}

// structuralKey returns a dedup key for everything except KindPolytype,
// which the Typing table never deduplicates (spec §4.3: "add_type(t,
// optional_name) deduplicates structurally but never unifies two
// Polytypes").
func (t Type) structuralKey() (string, bool) {
	switch t.Kind {
	case KindPrimitive:
		return fmt.Sprintf("P%d", t.Prim), true
	case KindFunction:
		return fmt.Sprintf("F%v->%v#%v", t.Params, t.Return, t.Def), true
	case KindInstantiated:
		return fmt.Sprintf("I%v<%v>", t.InstBase, t.InstArgs), true
	default:
		return "", false
	}
}
