package typesystem

// IsSubtype reports whether sub is a structural or nominal subtype of sup
// within the same Typing table (spec §3 "Subtyping"):
//
//   - Nothing is a subtype of everything (the type of `return`/`break`/a
//     diverging branch).
//   - Error and Unknown are compatible with anything, in either direction —
//     Error marks an already-diagnosed failure and Unknown marks a type the
//     checker gave up on; neither should cascade into further diagnostics.
//   - The lang reef's explicit super-type chain gives ExitCode <: Int <:
//     Float (spec §3, §9 "int/exitcode/float coercions").
//   - Every type is a subtype of itself.
func (t *Typing) IsSubtype(sub, sup TypeRef) bool {
	if sub == sup {
		return true
	}
	subTy, supTy := t.Get(sub.ID), t.Get(sup.ID)
	if subTy.Kind == KindPrimitive && subTy.Prim == Nothing {
		return true
	}
	if isEscapeHatch(subTy) || isEscapeHatch(supTy) {
		return true
	}
	for cur := sub; ; {
		next, ok := t.directSuper(cur)
		if !ok {
			return false
		}
		if next == sup {
			return true
		}
		cur = next
	}
}

func isEscapeHatch(ty Type) bool {
	return ty.Kind == KindPrimitive && (ty.Prim == Error || ty.Prim == Unknown)
}

// IsConditionCompatible reports whether a value of type ty may be used
// where a Bool is required (an `if`/`while` condition, spec §4.4): Bool
// itself, or ExitCode via the lang reef's built-in cast (spec §9: "a bare
// ExitCode used as an if/while condition is cast to Bool, zero is true").
func (t *Typing) IsConditionCompatible(ty TypeRef) bool {
	resolved := t.Get(ty.ID)
	if resolved.Kind != KindPrimitive {
		return false
	}
	return resolved.Prim == Bool || resolved.Prim == ExitCode
}

// WidenNumeric reports whether sub widens to sup under the Int<:Float
// numeric coercion (spec §9), independent of the general super-chain walk
// (useful for call sites that only care about the numeric tower).
func (t *Typing) WidenNumeric(sub, sup TypeRef) bool {
	subTy, supTy := t.Get(sub.ID), t.Get(sup.ID)
	if subTy.Kind != KindPrimitive || supTy.Kind != KindPrimitive {
		return false
	}
	return subTy.Prim == Int && supTy.Prim == Float
}
