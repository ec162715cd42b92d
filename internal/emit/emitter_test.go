package emit

import (
	"testing"

	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/hir"
	"github.com/modernsh/moshell/internal/native"
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/token"
	"github.com/modernsh/moshell/internal/typesystem"
)

// TestEmitterRunsValDeclAndReference builds `val x = 42; x` by hand as a
// typed chunk (bypassing ascribe) and checks the emitter's instruction
// stream and exported-symbol table against spec §4.6/§6.
func TestEmitterRunsValDeclAndReference(t *testing.T) {
	typ := typesystem.NewTyping(0)
	cat, err := native.Build(typ)
	if err != nil {
		t.Fatalf("native.Build() error: %v", err)
	}
	intRef := cat.Primitive(typesystem.Int)

	env := engine.NewEnvironment(reef.NewName("main"), nil)
	localID := env.Declare("x", engine.Val, nil)
	eng := engine.New(engine.ReefMeta{ID: 0, Name: "m"})
	sourceID := eng.Track(env, "content")

	lit := hir.NewLiteral(token.Span{}, intRef, hir.LiteralValue{Int: 42})
	decl := &hir.TypedExpr{Kind: hir.Declare, Type: intRef, DeclLocal: localID, DeclInit: lit}
	ref := hir.NewReference(token.Span{}, intRef, hir.Var{Kind: hir.VarLocal, Local: localID})
	body := hir.NewBlock(token.Span{}, intRef, []*hir.TypedExpr{decl, ref})
	chunk := &hir.Chunk{Source: sourceID, Return: intRef, Body: body, IsScript: true}

	typed := hir.NewTypedEngine()
	typed.Set(sourceID, chunk)

	emitter := New(typ, cat, typed, eng, nil)
	bundle := emitter.Run([]engine.SourceId{sourceID})

	if len(bundle.Chunks) != 1 {
		t.Fatalf("Run() produced %d chunks, want 1", len(bundle.Chunks))
	}
	c := bundle.Chunks[0]
	code := c.Code
	if len(code) != 20 {
		t.Fatalf("Code length = %d, want 20: %x", len(code), code)
	}
	if Opcode(code[0]) != PushInt {
		t.Errorf("Code[0] = %v, want PushInt", Opcode(code[0]))
	}
	if Opcode(code[9]) != SetQWord {
		t.Errorf("Code[9] = %v, want SetQWord", Opcode(code[9]))
	}
	if Opcode(code[14]) != GetQWord {
		t.Errorf("Code[14] = %v, want GetQWord", Opcode(code[14]))
	}
	if Opcode(code[19]) != Return {
		t.Errorf("Code[19] = %v, want Return", Opcode(code[19]))
	}

	if c.LocalsByteCount != 8 {
		t.Errorf("LocalsByteCount = %d, want 8 (one QWord local)", c.LocalsByteCount)
	}

	if len(bundle.ExportedSymbols) != 1 || bundle.ExportedSymbols[0].Name != "x" {
		t.Fatalf("ExportedSymbols = %+v, want one entry named x", bundle.ExportedSymbols)
	}
	if bundle.ExportedSymbols[0].LocalOffset != 0 {
		t.Errorf("ExportedSymbols[0].LocalOffset = %d, want 0", bundle.ExportedSymbols[0].LocalOffset)
	}
}

func TestEmitterOmitsExportsForNonScriptChunks(t *testing.T) {
	typ := typesystem.NewTyping(0)
	cat, err := native.Build(typ)
	if err != nil {
		t.Fatalf("native.Build() error: %v", err)
	}
	intRef := cat.Primitive(typesystem.Int)

	parentID := engine.SourceId(0)
	env := engine.NewEnvironment(reef.NewName("main::fn"), &parentID)
	eng := engine.New(engine.ReefMeta{ID: 0, Name: "m"})
	eng.Track(engine.NewEnvironment(reef.NewName("main"), nil), "root")
	sourceID := eng.Track(env, "fn")

	body := hir.NewLiteral(token.Span{}, intRef, hir.LiteralValue{Int: 1})
	chunk := &hir.Chunk{Source: sourceID, Return: intRef, Body: body, IsScript: false}

	typed := hir.NewTypedEngine()
	typed.Set(sourceID, chunk)

	emitter := New(typ, cat, typed, eng, nil)
	bundle := emitter.Run([]engine.SourceId{sourceID})
	if len(bundle.ExportedSymbols) != 0 {
		t.Errorf("ExportedSymbols = %+v, want none for a non-script chunk", bundle.ExportedSymbols)
	}
}
