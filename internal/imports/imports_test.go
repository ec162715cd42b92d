package imports

import (
	"testing"

	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/reef"
)

func target(fqn string) reef.SymbolLocation {
	return reef.SymbolLocation{Name: reef.ParseName(fqn)}
}

func TestAddNewEntryReturnsNil(t *testing.T) {
	tbl := NewTable()
	e := &Entry{Kind: Symbol, Target: target("std::io::println")}
	if prev := tbl.Add(0, e); prev != nil {
		t.Errorf("Add() of a fresh target returned %+v, want nil", prev)
	}
}

func TestAddDuplicateTargetReturnsPrevious(t *testing.T) {
	tbl := NewTable()
	first := &Entry{Kind: Symbol, Target: target("std::io::println")}
	second := &Entry{Kind: Symbol, Target: target("std::io::println"), Alias: "p"}
	tbl.Add(0, first)
	prev := tbl.Add(0, second)
	if prev != first {
		t.Fatalf("Add() duplicate returned %+v, want the first entry", prev)
	}
	entries := tbl.For(0)
	if len(entries) != 1 || entries[0] != second {
		t.Errorf("For(0) = %+v, want exactly [second]", entries)
	}
}

func TestEnvironmentEntriesKeyedByEnvVar(t *testing.T) {
	tbl := NewTable()
	e1 := &Entry{Kind: Environment, EnvVar: "PATH"}
	e2 := &Entry{Kind: Environment, EnvVar: "HOME"}
	tbl.Add(0, e1)
	if prev := tbl.Add(0, e2); prev != nil {
		t.Errorf("distinct EnvVar entries should not collide, got prev=%+v", prev)
	}
	if len(tbl.For(0)) != 2 {
		t.Errorf("For(0) = %d entries, want 2", len(tbl.For(0)))
	}
}

func TestForUnknownSourceIsEmpty(t *testing.T) {
	tbl := NewTable()
	if got := tbl.For(99); got != nil {
		t.Errorf("For() on unknown source = %v, want nil", got)
	}
}

func TestAllSourcesAscending(t *testing.T) {
	tbl := NewTable()
	tbl.Add(engine.SourceId(3), &Entry{Kind: Symbol, Target: target("a")})
	tbl.Add(engine.SourceId(1), &Entry{Kind: Symbol, Target: target("b")})
	tbl.Add(engine.SourceId(2), &Entry{Kind: Symbol, Target: target("c")})

	sources := tbl.AllSources()
	want := []engine.SourceId{1, 2, 3}
	if len(sources) != len(want) {
		t.Fatalf("AllSources() = %v, want %v", sources, want)
	}
	for i := range want {
		if sources[i] != want[i] {
			t.Errorf("AllSources()[%d] = %d, want %d", i, sources[i], want[i])
		}
	}
}
