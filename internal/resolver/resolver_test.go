package resolver

import (
	"testing"

	"github.com/modernsh/moshell/internal/diagnostics"
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/imports"
	"github.com/modernsh/moshell/internal/reef"
	"github.com/modernsh/moshell/internal/relations"
)

func setup() (*engine.Engine, *imports.Table, *relations.Table, *diagnostics.Bag) {
	return engine.New(engine.ReefMeta{ID: 0, Name: "m"}), imports.NewTable(), relations.NewTable(), diagnostics.NewBag()
}

func target(fqn string) reef.SymbolLocation {
	return reef.SymbolLocation{Name: reef.ParseName(fqn)}
}

func TestResolveViaAllInImport(t *testing.T) {
	eng, imp, rel, diags := setup()
	helpersEnv := engine.NewEnvironment(reef.NewName("helpers"), nil)
	greetID := helpersEnv.Declare("greet", engine.Val, nil)
	helpersID := eng.Track(helpersEnv, "helpers")

	mainEnv := engine.NewEnvironment(reef.NewName("main"), nil)
	mainID := eng.Track(mainEnv, "main")

	imp.Add(mainID, &imports.Entry{Kind: imports.AllIn, Target: target("helpers")})
	relID := rel.Record(mainID, "greet", relations.VariableSpace)

	r := New(0, eng, imp, rel, diags)
	r.Run()

	got := rel.Get(relID)
	if got.State != relations.Resolved || got.Resolved.Local != greetID || got.Resolved.Source != helpersID {
		t.Fatalf("relation = %+v, want Resolved to helpers.greet (local %v, source %v)", got, greetID, helpersID)
	}
	if !diags.Empty() {
		t.Errorf("unexpected diagnostics: %+v", diags.All())
	}
}

func TestResolveViaAliasedSymbolImport(t *testing.T) {
	eng, imp, rel, diags := setup()
	helpersEnv := engine.NewEnvironment(reef.NewName("helpers"), nil)
	greetID := helpersEnv.Declare("greet", engine.Val, nil)
	helpersID := eng.Track(helpersEnv, "helpers")

	mainEnv := engine.NewEnvironment(reef.NewName("main"), nil)
	mainID := eng.Track(mainEnv, "main")

	imp.Add(mainID, &imports.Entry{Kind: imports.Symbol, Target: target("helpers::greet"), Alias: "g"})
	relID := rel.Record(mainID, "g", relations.VariableSpace)

	r := New(0, eng, imp, rel, diags)
	r.Run()

	got := rel.Get(relID)
	if got.State != relations.Resolved || got.Resolved.Local != greetID || got.Resolved.Source != helpersID {
		t.Fatalf("relation = %+v, want Resolved via the g alias", got)
	}
}

func TestResolveViaSameModuleAfterCollection(t *testing.T) {
	eng, imp, rel, diags := setup()
	mainEnv := engine.NewEnvironment(reef.NewName("main"), nil)
	localID := mainEnv.Declare("x", engine.Val, nil)
	mainID := eng.Track(mainEnv, "main")

	relID := rel.Record(mainID, "x", relations.VariableSpace)

	r := New(0, eng, imp, rel, diags)
	r.Run()

	got := rel.Get(relID)
	if got.State != relations.Resolved || got.Resolved.Local != localID {
		t.Fatalf("relation = %+v, want Resolved to the same-module local", got)
	}
}

func TestUnresolvableSymbolBecomesDeadWithDiagnostic(t *testing.T) {
	eng, imp, rel, diags := setup()
	eng.Track(engine.NewEnvironment(reef.NewName("main"), nil), "main")
	relID := rel.Record(0, "ghost", relations.VariableSpace)

	r := New(0, eng, imp, rel, diags)
	r.Run()

	got := rel.Get(relID)
	if got.State != relations.Dead {
		t.Fatalf("relation = %+v, want Dead", got)
	}
	if diags.Len() != 1 {
		t.Fatalf("Diags.Len() = %d, want 1", diags.Len())
	}
}

func TestUnresolvableImportReportsImportResolution(t *testing.T) {
	eng, imp, rel, diags := setup()
	mainID := eng.Track(engine.NewEnvironment(reef.NewName("main"), nil), "main")
	imp.Add(mainID, &imports.Entry{Kind: imports.AllIn, Target: target("nowhere")})

	r := New(0, eng, imp, rel, diags)
	r.Run()

	if diags.Len() != 1 {
		t.Fatalf("Diags.Len() = %d, want 1", diags.Len())
	}
}

func TestExternalReefIsConsultedForImports(t *testing.T) {
	lang := engine.New(engine.ReefMeta{ID: reef.LangID, Name: "lang"})
	langEnv := engine.NewEnvironment(reef.NewName("lang"), nil)
	printID := langEnv.Declare("print", engine.Val, nil)
	langSource := lang.Track(langEnv, "lang")

	eng, imp, rel, diags := setup()
	mainID := eng.Track(engine.NewEnvironment(reef.NewName("main"), nil), "main")
	imp.Add(mainID, &imports.Entry{Kind: imports.AllIn, Target: target("lang")})
	relID := rel.Record(mainID, "print", relations.VariableSpace)

	r := New(1, eng, imp, rel, diags, lang)
	r.Run()

	got := rel.Get(relID)
	if got.State != relations.Resolved || got.Resolved.Reef != reef.LangID || got.Resolved.Source != langSource || got.Resolved.Local != printID {
		t.Fatalf("relation = %+v, want Resolved against the external lang reef", got)
	}
}
