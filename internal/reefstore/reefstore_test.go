package reefstore

import (
	"path/filepath"
	"testing"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "reefs.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKnownMissingReefIsFalse(t *testing.T) {
	s := open(t)
	known, err := s.Known("nope")
	if err != nil {
		t.Fatalf("Known() error: %v", err)
	}
	if known {
		t.Errorf("Known(%q) = true, want false", "nope")
	}
}

func TestLoadMissingReefReturnsFalse(t *testing.T) {
	s := open(t)
	reef, ok, err := s.Load("nope")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if ok || reef != nil {
		t.Errorf("Load(%q) = %+v, %v, want nil, false", "nope", reef, ok)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := open(t)
	exports := []ExportedSymbol{
		{Name: "zeta", TypeString: "Bool", Local: 8},
		{Name: "alpha", TypeString: "Int", Local: 0},
	}
	if err := s.Save("main", "hash1", exports); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	known, err := s.Known("main")
	if err != nil || !known {
		t.Fatalf("Known(main) = %v, %v, want true, nil", known, err)
	}

	reef, ok, err := s.Load("main")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !ok {
		t.Fatalf("Load(main) ok = false, want true")
	}
	if reef.Name != "main" || reef.ContentID != "hash1" {
		t.Errorf("reef = %+v, want Name=main ContentID=hash1", reef)
	}
	if len(reef.Exports) != 2 {
		t.Fatalf("Exports = %+v, want 2 entries", reef.Exports)
	}
	// Load orders exported symbols by name.
	if reef.Exports[0].Name != "alpha" || reef.Exports[1].Name != "zeta" {
		t.Errorf("Exports order = %+v, want alpha before zeta", reef.Exports)
	}
	if reef.Exports[0].TypeString != "Int" || reef.Exports[0].Local != 0 {
		t.Errorf("Exports[0] = %+v, want {Int, 0}", reef.Exports[0])
	}
}

func TestSaveReplacesPreviousExportsAndContentID(t *testing.T) {
	s := open(t)
	if err := s.Save("main", "hash1", []ExportedSymbol{{Name: "f", TypeString: "Int", Local: 0}}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := s.Save("main", "hash2", []ExportedSymbol{{Name: "g", TypeString: "String", Local: 8}}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	reef, ok, err := s.Load("main")
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v, %v", reef, ok, err)
	}
	if reef.ContentID != "hash2" {
		t.Errorf("ContentID = %q, want hash2 (latest Save wins)", reef.ContentID)
	}
	if len(reef.Exports) != 1 || reef.Exports[0].Name != "g" {
		t.Fatalf("Exports = %+v, want exactly [g] (old export 'f' replaced)", reef.Exports)
	}
}

func TestSaveWithNoExportsClearsPreviousOnes(t *testing.T) {
	s := open(t)
	if err := s.Save("main", "hash1", []ExportedSymbol{{Name: "f", TypeString: "Int", Local: 0}}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := s.Save("main", "hash2", nil); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	reef, ok, err := s.Load("main")
	if err != nil || !ok {
		t.Fatalf("Load() = %v, %v, %v", reef, ok, err)
	}
	if len(reef.Exports) != 0 {
		t.Errorf("Exports = %+v, want none", reef.Exports)
	}
}

func TestSaveAndLoadAreIndependentPerReefName(t *testing.T) {
	s := open(t)
	if err := s.Save("a", "hashA", []ExportedSymbol{{Name: "x", TypeString: "Int", Local: 0}}); err != nil {
		t.Fatalf("Save(a) error: %v", err)
	}
	if err := s.Save("b", "hashB", []ExportedSymbol{{Name: "y", TypeString: "Bool", Local: 0}}); err != nil {
		t.Fatalf("Save(b) error: %v", err)
	}

	reefA, _, err := s.Load("a")
	if err != nil {
		t.Fatalf("Load(a) error: %v", err)
	}
	reefB, _, err := s.Load("b")
	if err != nil {
		t.Fatalf("Load(b) error: %v", err)
	}
	if reefA.Exports[0].Name != "x" || reefB.Exports[0].Name != "y" {
		t.Errorf("reefs bled into each other: a=%+v b=%+v", reefA, reefB)
	}
}
