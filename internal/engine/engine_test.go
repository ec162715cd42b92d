package engine

import (
	"testing"

	"github.com/modernsh/moshell/internal/reef"
)

func TestTrackAndGet(t *testing.T) {
	eng := New(ReefMeta{ID: reef.LangID, Name: "lang"})
	root := NewEnvironment(reef.NewName("main"), nil)
	id := eng.Track(root, "content-1")
	if id != 0 {
		t.Fatalf("first Track() = %d, want 0", id)
	}
	if got := eng.Get(id); got != root {
		t.Errorf("Get(%d) = %p, want %p", id, got, root)
	}
	if got := eng.ContentOf(id); got != "content-1" {
		t.Errorf("ContentOf(%d) = %q, want content-1", id, got)
	}
	if eng.Len() != 1 {
		t.Errorf("Len() = %d, want 1", eng.Len())
	}
}

func TestTrackPanicsWhenParentNotYetTracked(t *testing.T) {
	eng := New(ReefMeta{ID: reef.LangID})
	bad := SourceId(5)
	child := NewEnvironment(reef.NewName("inner"), &bad)

	defer func() {
		if recover() == nil {
			t.Errorf("Track() with a parent id >= the new id should panic")
		}
	}()
	eng.Track(child, "c")
}

func TestTrackChildAfterParent(t *testing.T) {
	eng := New(ReefMeta{ID: reef.LangID})
	root := NewEnvironment(reef.NewName("main"), nil)
	rootID := eng.Track(root, "root-content")

	child := NewEnvironment(reef.NewName("main::fn"), &rootID)
	childID := eng.Track(child, "child-content")
	if childID != 1 {
		t.Errorf("childID = %d, want 1", childID)
	}
	if eng.Len() != 2 {
		t.Errorf("Len() = %d, want 2", eng.Len())
	}
}

func TestGetPanicsOutOfRange(t *testing.T) {
	eng := New(ReefMeta{ID: reef.LangID})
	defer func() {
		if recover() == nil {
			t.Errorf("Get() with an out-of-range id should panic")
		}
	}()
	eng.Get(0)
}

func TestRootsAreAscendingAndParentless(t *testing.T) {
	eng := New(ReefMeta{ID: reef.LangID})
	r1 := eng.Track(NewEnvironment(reef.NewName("a"), nil), "a")
	child := eng.Track(NewEnvironment(reef.NewName("a::fn"), &r1), "a-fn")
	r2 := eng.Track(NewEnvironment(reef.NewName("b"), nil), "b")

	roots := eng.Roots()
	if len(roots) != 2 || roots[0] != r1 || roots[1] != r2 {
		t.Errorf("Roots() = %v, want [%v %v]", roots, r1, r2)
	}
	_ = child
}

func TestAllReturnsEverySourceId(t *testing.T) {
	eng := New(ReefMeta{ID: reef.LangID})
	eng.Track(NewEnvironment(reef.NewName("a"), nil), "a")
	eng.Track(NewEnvironment(reef.NewName("b"), nil), "b")
	all := eng.All()
	if len(all) != 2 || all[0] != 0 || all[1] != 1 {
		t.Errorf("All() = %v, want [0 1]", all)
	}
}

func TestReefReturnsMeta(t *testing.T) {
	meta := ReefMeta{ID: reef.ID(7), Name: "custom"}
	eng := New(meta)
	if got := eng.Reef(); got != meta {
		t.Errorf("Reef() = %+v, want %+v", got, meta)
	}
}
