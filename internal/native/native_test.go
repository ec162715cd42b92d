package native

import (
	"testing"

	"github.com/modernsh/moshell/internal/typesystem"
)

func TestBuildRegistersAllPrimitives(t *testing.T) {
	typ := typesystem.NewTyping(0)
	cat, err := Build(typ)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	for _, p := range []typesystem.Prim{
		typesystem.Nothing, typesystem.Unit, typesystem.Bool, typesystem.ExitCode,
		typesystem.Int, typesystem.Float, typesystem.String, typesystem.Error,
	} {
		ref := cat.Primitive(p)
		if typ.Get(ref.ID).Prim != p {
			t.Errorf("Primitive(%s) resolved to %s", p, typ.Get(ref.ID).Prim)
		}
	}
}

func TestBuildInstallsSuperChain(t *testing.T) {
	typ := typesystem.NewTyping(0)
	cat, err := Build(typ)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	exitCode := cat.Primitive(typesystem.ExitCode)
	intRef := cat.Primitive(typesystem.Int)
	floatRef := cat.Primitive(typesystem.Float)
	if !typ.IsSubtype(exitCode, intRef) {
		t.Errorf("ExitCode should be a subtype of Int after Build()")
	}
	if !typ.IsSubtype(intRef, floatRef) {
		t.Errorf("Int should be a subtype of Float after Build()")
	}
}

func TestLookupKnownMethod(t *testing.T) {
	typ := typesystem.NewTyping(0)
	cat, err := Build(typ)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	m, ok := cat.Lookup(typesystem.Int, "plus", []typesystem.Prim{typesystem.Int})
	if !ok {
		t.Fatalf("Lookup(Int.plus(Int)) not found")
	}
	if m.Return != typesystem.Int || m.Name != "plus" {
		t.Errorf("Lookup() = %+v, want Return=Int Name=plus", m)
	}
}

func TestLookupUnknownMethod(t *testing.T) {
	typ := typesystem.NewTyping(0)
	cat, err := Build(typ)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if _, ok := cat.Lookup(typesystem.Bool, "plus", []typesystem.Prim{typesystem.Bool}); ok {
		t.Errorf("Lookup(Bool.plus(Bool)) should not be found")
	}
}

func TestMethodByID(t *testing.T) {
	typ := typesystem.NewTyping(0)
	cat, err := Build(typ)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	m, ok := cat.Lookup(typesystem.Int, "plus", []typesystem.Prim{typesystem.Int})
	if !ok {
		t.Fatalf("Lookup(Int.plus(Int)) not found")
	}
	byID, ok := cat.MethodByID(m.ID)
	if !ok || byID.Name != "plus" {
		t.Errorf("MethodByID(%d) = %+v, %v", m.ID, byID, ok)
	}
}

func TestPrimByName(t *testing.T) {
	typ := typesystem.NewTyping(0)
	cat, err := Build(typ)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	p, ok := cat.PrimByName("Int")
	if !ok || p != typesystem.Int {
		t.Errorf("PrimByName(Int) = %v, %v", p, ok)
	}
	if _, ok := cat.PrimByName("NotAType"); ok {
		t.Errorf("PrimByName(NotAType) should report ok=false")
	}
}

func TestMethodsReturnsCatalogOrder(t *testing.T) {
	typ := typesystem.NewTyping(0)
	cat, err := Build(typ)
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	methods := cat.Methods()
	if len(methods) == 0 {
		t.Fatalf("Methods() returned no entries")
	}
	if methods[0].Receiver != typesystem.Int || methods[0].Name != "plus" {
		t.Errorf("Methods()[0] = %+v, want the first catalog.yaml entry (Int.plus)", methods[0])
	}
}

func TestNewLangEngineTaggedAsLangReef(t *testing.T) {
	eng := NewLangEngine()
	if eng.Len() != 0 {
		t.Errorf("NewLangEngine() should carry no environments, got Len()=%d", eng.Len())
	}
}
