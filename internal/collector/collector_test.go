package collector

import (
	"testing"

	"github.com/modernsh/moshell/internal/ast"
	"github.com/modernsh/moshell/internal/diagnostics"
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/imports"
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/relations"
)

// stubImporter returns one canned module for "main" and reports every other
// name NotFound, so the collectOne fallback (stripping trailing segments)
// runs its course and the worklist drains.
type stubImporter struct {
	modules map[string]*ast.Module
}

func (s stubImporter) Import(name reef.Name) ImportResult {
	if mod, ok := s.modules[name.FullyQualified()]; ok {
		return ImportResult{Status: ImportSuccess, Content: []byte(name.FullyQualified()), Module: mod}
	}
	return ImportResult{Status: ImportNotFound}
}

func refTo(names ...string) *ast.Reference {
	items := make([]reef.PathItem, len(names))
	for i, n := range names {
		items[i] = reef.PathItem{Kind: reef.PathSegment, Segment: n}
	}
	return &ast.Reference{Path: reef.InclusionPath{Items: items}}
}

func newCollector(mods map[string]*ast.Module) (*Collector, *engine.Engine, *relations.Table, *diagnostics.Bag) {
	eng := engine.New(engine.ReefMeta{ID: 0, Name: "m"})
	rel := relations.NewTable()
	imp := imports.NewTable()
	diags := diagnostics.NewBag()
	c := New(0, eng, rel, imp, diags, stubImporter{modules: mods})
	return c, eng, rel, diags
}

func TestCollectDeclaresValAndResolvesLocalReference(t *testing.T) {
	mod := &ast.Module{
		Name: "main",
		Body: []ast.Node{
			&ast.VarDeclaration{Kind: ast.DeclVal, Name: "x", Init: &ast.Literal{Kind: ast.LitInt, Int: 5}},
			refTo("x"),
		},
	}
	c, eng, rel, diags := newCollector(map[string]*ast.Module{"main": mod})
	roots := c.Collect(reef.NewName("main"))
	if len(roots) != 1 {
		t.Fatalf("Collect() returned %d roots, want 1", len(roots))
	}
	env := eng.Get(roots[0])
	if _, ok := env.Lookup("x"); !ok {
		t.Errorf("x was not declared in the root environment")
	}
	if rel.Len() != 0 {
		t.Errorf("Relations.Len() = %d, want 0 (the reference to x resolved locally)", rel.Len())
	}
	if !diags.Empty() {
		t.Errorf("unexpected diagnostics: %+v", diags.All())
	}
}

func TestCollectRecordsUnresolvedReference(t *testing.T) {
	mod := &ast.Module{
		Name: "main",
		Body: []ast.Node{
			refTo("mystery"),
		},
	}
	c, _, rel, _ := newCollector(map[string]*ast.Module{"main": mod})
	c.Collect(reef.NewName("main"))

	if rel.Len() != 1 {
		t.Fatalf("Relations.Len() = %d, want 1", rel.Len())
	}
	all := rel.All()
	if all[0].Name != "mystery" || all[0].State != relations.Unresolved {
		t.Errorf("relation = %+v, want Unresolved 'mystery'", all[0])
	}
}

func TestCollectFunctionCapturesEnclosingLocal(t *testing.T) {
	fn := &ast.FunctionDeclaration{
		Name: "f",
		Body: refTo("x"),
	}
	mod := &ast.Module{
		Name: "main",
		Body: []ast.Node{
			&ast.VarDeclaration{Kind: ast.DeclVal, Name: "x", Init: &ast.Literal{Kind: ast.LitInt, Int: 1}},
			fn,
		},
	}
	c, _, rel, _ := newCollector(map[string]*ast.Module{"main": mod})
	c.Collect(reef.NewName("main"))

	if rel.Len() != 1 {
		t.Fatalf("Relations.Len() = %d, want 1 (one capture relation for x)", rel.Len())
	}
	got := rel.Get(0)
	if got.State != relations.Resolved || got.Resolved.Local != 0 {
		t.Errorf("capture relation = %+v, want Resolved to local 0", got)
	}
}

func TestCollectLambdaDeclaresItsOwnLocal(t *testing.T) {
	lambda := &ast.Lambda{
		Params: []ast.Param{{Name: "x"}},
		Body:   refTo("x"),
	}
	mod := &ast.Module{
		Name: "main",
		Body: []ast.Node{
			&ast.VarDeclaration{Kind: ast.DeclVal, Name: "f", Init: lambda},
		},
	}
	c, eng, _, _ := newCollector(map[string]*ast.Module{"main": mod})
	roots := c.Collect(reef.NewName("main"))
	if len(roots) != 1 {
		t.Fatalf("Collect() returned %d roots, want 1", len(roots))
	}

	env := eng.Get(roots[0])
	local, ok := env.Lookup("lambda@1")
	if !ok {
		t.Fatalf("lambda was not declared a local of its own in the enclosing environment")
	}
	ref, ok := env.AnnotationOf(lambda)
	if !ok || ref.Kind != engine.RefLocal || ref.Local != local {
		t.Errorf("lambda annotation = %+v, ok=%v, want RefLocal %v", ref, ok, local)
	}
}

func TestCollectQualifiedReferenceToLocalIsDeadAndDiagnosed(t *testing.T) {
	mod := &ast.Module{
		Name: "main",
		Body: []ast.Node{
			&ast.VarDeclaration{Kind: ast.DeclVal, Name: "x", Init: &ast.Literal{Kind: ast.LitInt, Int: 1}},
			refTo("x", "y"),
		},
	}
	c, _, rel, diags := newCollector(map[string]*ast.Module{"main": mod})
	c.Collect(reef.NewName("main"))

	if rel.Len() != 1 || rel.Get(0).State != relations.Dead {
		t.Fatalf("relation = %+v, want exactly one Dead relation", rel.All())
	}
	if diags.Len() != 1 {
		t.Errorf("Diags.Len() = %d, want 1", diags.Len())
	}
}

func TestCollectRecordsImportsAndEnqueuesParent(t *testing.T) {
	useAllIn := &ast.Use{Kind: ast.UseAllIn, Path: reef.InclusionPath{Items: []reef.PathItem{
		{Kind: reef.PathSegment, Segment: "std"},
		{Kind: reef.PathSegment, Segment: "io"},
	}}}
	mod := &ast.Module{Name: "main", Uses: []*ast.Use{useAllIn}}
	c, _, _, _ := newCollector(map[string]*ast.Module{"main": mod})
	roots := c.Collect(reef.NewName("main"))

	if len(roots) != 1 {
		t.Fatalf("Collect() returned %d roots, want 1 (std::io is never found and yields no root)", len(roots))
	}
	entries := c.Imports.For(roots[0])
	if len(entries) != 1 || entries[0].Kind != imports.AllIn {
		t.Fatalf("Imports.For(root) = %+v, want one AllIn entry", entries)
	}
}
