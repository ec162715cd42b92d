package diagnostics

import (
	"testing"

	"github.com/modernsh/moshell/internal/token"
)

func TestNewAndChaining(t *testing.T) {
	d := New(UnknownSymbol, "cannot find %s in this scope", "foo").
		At("r1", 3, token.Span{Start: 5, End: 8}, "primary here").
		Also("r1", 3, token.Span{Start: 0, End: 1}, "secondary here").
		WithHelp("did you mean bar?")

	if d.Code != UnknownSymbol {
		t.Errorf("Code = %v, want %v", d.Code, UnknownSymbol)
	}
	if d.Message != "cannot find foo in this scope" {
		t.Errorf("Message = %q", d.Message)
	}
	if d.Help != "did you mean bar?" {
		t.Errorf("Help = %q", d.Help)
	}
	if len(d.Observations) != 2 {
		t.Fatalf("len(Observations) = %d, want 2", len(d.Observations))
	}
	if d.Observations[0].Tag != TagPrimary || d.Observations[1].Tag != TagSecondary {
		t.Errorf("observation tags = %v, %v", d.Observations[0].Tag, d.Observations[1].Tag)
	}
	if d.Error() != "UnknownSymbol: cannot find foo in this scope" {
		t.Errorf("Error() = %q", d.Error())
	}
}

func TestSortedObservationsOrdersBySpanStart(t *testing.T) {
	d := New(TypeMismatch, "mismatch").
		At("r1", 0, token.Span{Start: 10, End: 12}, "later").
		Also("r1", 0, token.Span{Start: 2, End: 4}, "earlier")

	sorted := d.SortedObservations()
	if sorted[0].Span.Start != 2 || sorted[1].Span.Start != 10 {
		t.Errorf("SortedObservations() not sorted by span start: %+v", sorted)
	}
	// original slice must be untouched.
	if d.Observations[0].Span.Start != 10 {
		t.Errorf("SortedObservations() mutated the original slice")
	}
}

func TestBagDedupesByCodeAndPrimarySpan(t *testing.T) {
	b := NewBag()
	b.Add(New(UnknownSymbol, "foo").At("r1", 1, token.Span{Start: 0, End: 1}, "x"))
	b.Add(New(UnknownSymbol, "foo again").At("r1", 1, token.Span{Start: 0, End: 1}, "x")) // duplicate key
	b.Add(New(UnknownSymbol, "bar").At("r1", 1, token.Span{Start: 5, End: 6}, "y"))       // distinct span

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if b.Empty() {
		t.Errorf("Empty() = true, want false after Add")
	}
	if len(b.All()) != 2 {
		t.Errorf("All() returned %d diagnostics, want 2", len(b.All()))
	}
}

func TestBagAddNilIsNoop(t *testing.T) {
	b := NewBag()
	b.Add(nil)
	if !b.Empty() {
		t.Errorf("Empty() = false after adding nil")
	}
}

func TestBagWithoutObservationsNeverDedupes(t *testing.T) {
	b := NewBag()
	b.Add(New(CannotInfer, "a"))
	b.Add(New(CannotInfer, "b"))
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (diagnostics without observations never share a dedup key)", b.Len())
	}
}
