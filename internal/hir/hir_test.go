package hir

import (
	"testing"

	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/token"
	"github.com/modernsh/moshell/internal/typesystem"
)

func TestNewLiteral(t *testing.T) {
	span := token.Span{Start: 0, End: 2}
	n := NewLiteral(span, typesystem.TypeRef{ID: 4}, LiteralValue{Int: 7})
	if n.Kind != Literal || n.Value.Int != 7 || n.Span != span {
		t.Errorf("NewLiteral() = %+v", n)
	}
}

func TestNewReference(t *testing.T) {
	v := Var{Kind: VarLocal, Local: 2}
	n := NewReference(token.Span{}, typesystem.TypeRef{ID: 1}, v)
	if n.Kind != Reference || n.Var != v {
		t.Errorf("NewReference() = %+v", n)
	}
}

func TestNewBlock(t *testing.T) {
	inner := NewNoop(token.Span{}, typesystem.TypeRef{})
	n := NewBlock(token.Span{}, typesystem.TypeRef{}, []*TypedExpr{inner})
	if n.Kind != Block || len(n.Exprs) != 1 || n.Exprs[0] != inner {
		t.Errorf("NewBlock() = %+v", n)
	}
}

func TestNewNoop(t *testing.T) {
	n := NewNoop(token.Span{}, typesystem.TypeRef{ID: 9})
	if n.Kind != Noop || n.Type.ID != 9 {
		t.Errorf("NewNoop() = %+v", n)
	}
}

func TestTypedEngineSetGetHas(t *testing.T) {
	te := NewTypedEngine()
	src := engine.SourceId(3)
	if te.Has(src) {
		t.Errorf("Has() on an empty TypedEngine should be false")
	}
	chunk := &Chunk{Source: src, IsScript: true}
	te.Set(src, chunk)
	if !te.Has(src) {
		t.Errorf("Has() should be true after Set()")
	}
	got, ok := te.Get(src)
	if !ok || got != chunk {
		t.Errorf("Get() = %+v, %v, want %+v, true", got, ok, chunk)
	}
}

func TestTypedEngineSetTwicePanics(t *testing.T) {
	te := NewTypedEngine()
	src := engine.SourceId(1)
	te.Set(src, &Chunk{Source: src})
	defer func() {
		if recover() == nil {
			t.Errorf("Set() called twice for the same source should panic")
		}
	}()
	te.Set(src, &Chunk{Source: src})
}

func TestTypedEngineGetMissing(t *testing.T) {
	te := NewTypedEngine()
	if _, ok := te.Get(engine.SourceId(99)); ok {
		t.Errorf("Get() of an unset source should report ok=false")
	}
}
