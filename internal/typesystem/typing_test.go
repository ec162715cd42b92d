package typesystem

import "testing"

func TestAddDedupesStructurally(t *testing.T) {
	typ := NewTyping(0)
	a := typ.Add(Type{Kind: KindPrimitive, Prim: Int}, "")
	b := typ.Add(Type{Kind: KindPrimitive, Prim: Int}, "")
	if a != b {
		t.Errorf("Add() of two structurally equal primitives returned distinct refs: %v, %v", a, b)
	}
	if typ.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after deduping", typ.Len())
	}
}

func TestAddDistinctPrimitivesDoNotDedupe(t *testing.T) {
	typ := NewTyping(0)
	a := typ.Add(Type{Kind: KindPrimitive, Prim: Int}, "")
	b := typ.Add(Type{Kind: KindPrimitive, Prim: Float}, "")
	if a == b {
		t.Errorf("Int and Float deduped to the same ref")
	}
}

func TestAddRegistersByName(t *testing.T) {
	typ := NewTyping(0)
	ref := typ.Add(Type{Kind: KindPrimitive, Prim: Bool}, "Bool")
	got, ok := typ.ByName("Bool")
	if !ok || got != ref {
		t.Errorf("ByName(Bool) = %v, %v, want %v, true", got, ok, ref)
	}
}

func TestByNameMissing(t *testing.T) {
	typ := NewTyping(0)
	if _, ok := typ.ByName("nope"); ok {
		t.Errorf("ByName() of an unregistered name should report ok=false")
	}
}

func TestNewPolytypeNeverDedupes(t *testing.T) {
	typ := NewTyping(0)
	a := typ.NewPolytype("T")
	b := typ.NewPolytype("T")
	if a == b {
		t.Errorf("NewPolytype() with the same name returned equal refs %v, %v, want distinct", a, b)
	}
	if typ.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (polytypes are never deduplicated)", typ.Len())
	}
}

func TestFunctionTypeDedupesByParamsReturnAndDef(t *testing.T) {
	typ := NewTyping(0)
	intRef := typ.Add(Type{Kind: KindPrimitive, Prim: Int}, "")
	def := Definition{Kind: DefNative, Native: 1}

	a := typ.Add(Type{Kind: KindFunction, Params: []TypeRef{intRef}, Return: intRef, Def: def}, "")
	b := typ.Add(Type{Kind: KindFunction, Params: []TypeRef{intRef}, Return: intRef, Def: def}, "")
	if a != b {
		t.Errorf("identical Function types did not dedupe: %v, %v", a, b)
	}

	otherDef := Definition{Kind: DefNative, Native: 2}
	c := typ.Add(Type{Kind: KindFunction, Params: []TypeRef{intRef}, Return: intRef, Def: otherDef}, "")
	if a == c {
		t.Errorf("Function types with different Def deduped incorrectly")
	}
}

func TestSetSuperChainAndGetRoundTrip(t *testing.T) {
	typ := NewTyping(0)
	exitCode := typ.Add(Type{Kind: KindPrimitive, Prim: ExitCode}, "ExitCode")
	intRef := typ.Add(Type{Kind: KindPrimitive, Prim: Int}, "Int")
	floatRef := typ.Add(Type{Kind: KindPrimitive, Prim: Float}, "Float")
	typ.SetSuperChain(exitCode, intRef, floatRef)

	if got := typ.Get(intRef.ID); got.Prim != Int {
		t.Errorf("Get(intRef) = %+v, want Prim=Int", got)
	}
}

func TestReefIDAndLen(t *testing.T) {
	typ := NewTyping(3)
	if typ.ReefID() != 3 {
		t.Errorf("ReefID() = %d, want 3", typ.ReefID())
	}
	if typ.Len() != 0 {
		t.Errorf("Len() of a fresh table = %d, want 0", typ.Len())
	}
}
