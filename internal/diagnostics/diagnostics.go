// Package diagnostics is the sink every analysis pass writes to. Nothing in
// this core ever panics or returns a Go error for a semantic problem: a
// pass accumulates diagnostics and keeps going (spec §7 propagation
// policy), the same way the teacher's analyzer.walker accumulates into
// errorSet/errors instead of failing fast.
package diagnostics

import (
	"fmt"
	"sort"

	"github.com/modernsh/moshell/internal/token"
)

// Code is the fixed diagnostic-identifier enumeration (spec §7).
type Code string

const (
	// Import/linking
	ImportResolution        Code = "ImportResolution"
	ShadowedImport          Code = "ShadowedImport"
	SymbolConflictsWithMod  Code = "SymbolConflictsWithModule"
	UseBetweenExprs         Code = "UseBetweenExprs"
	UnsupportedFeature      Code = "UnsupportedFeature"
	InvalidSymbolPath       Code = "InvalidSymbolPath"

	// Name resolution
	UnknownSymbol Code = "UnknownSymbol"
	InvalidSymbol Code = "InvalidSymbol"

	// Types
	TypeMismatch         Code = "TypeMismatch"
	UnknownType          Code = "UnknownType"
	CannotInfer          Code = "CannotInfer"
	IncompatibleCast     Code = "IncompatibleCast"
	CannotReassign       Code = "CannotReassign"
	UnknownMethod        Code = "UnknownMethod"
	InvalidTypeArguments Code = "InvalidTypeArguments"
	InvalidBreakContinue Code = "InvalidBreakOrContinue"
)

// Tag further classifies an Observation (e.g. "primary", "secondary",
// "note") the way the teacher tags error-set entries by "line:col:code".
type Tag string

const (
	TagPrimary   Tag = "primary"
	TagSecondary Tag = "secondary"
	TagNote      Tag = "note"
)

// Observation is one labeled pointer into source text (spec §6).
type Observation struct {
	ReefID string
	Source int // SourceId
	Span   token.Span
	Label  string
	Tag    Tag
}

// DiagnosticError is the sole unit ever reported by this core.
type DiagnosticError struct {
	Code         Code
	Message      string
	Observations []Observation
	Help         string
}

func (d *DiagnosticError) Error() string {
	return fmt.Sprintf("%s: %s", d.Code, d.Message)
}

// New builds a DiagnosticError. format/args follow fmt.Sprintf rules,
// matching the teacher's diagnostics.NewError(code, token, args...)
// convention (reconstructed here since the teacher's diagnostics package
// itself was not present in the retrieval pack — only its call sites were).
func New(code Code, format string, args ...interface{}) *DiagnosticError {
	return &DiagnosticError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// At attaches a primary observation and returns the receiver for chaining.
func (d *DiagnosticError) At(reefID string, source int, span token.Span, label string) *DiagnosticError {
	d.Observations = append(d.Observations, Observation{
		ReefID: reefID, Source: source, Span: span, Label: label, Tag: TagPrimary,
	})
	return d
}

// Also attaches a secondary observation (e.g. pointing at a parameter
// declaration alongside the primary observation at the call site).
func (d *DiagnosticError) Also(reefID string, source int, span token.Span, label string) *DiagnosticError {
	d.Observations = append(d.Observations, Observation{
		ReefID: reefID, Source: source, Span: span, Label: label, Tag: TagSecondary,
	})
	return d
}

// WithHelp attaches free-form help text.
func (d *DiagnosticError) WithHelp(help string) *DiagnosticError {
	d.Help = help
	return d
}

// SortedObservations returns a copy of d's observations sorted by
// span.Start, satisfying the round-trip law in spec §8 ("a diagnostic's
// observations, when sorted by segment.start, are strictly non-decreasing").
func (d *DiagnosticError) SortedObservations() []Observation {
	out := make([]Observation, len(d.Observations))
	copy(out, d.Observations)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Span.Start < out[j].Span.Start
	})
	return out
}

// Bag is an append-only, dedup-on-insert collection of diagnostics,
// mirroring the teacher's walker.errorSet (keyed "line:col:code") /
// walker.errors pair: one map for dedup, one slice for stable iteration
// order.
type Bag struct {
	seen  map[string]bool
	order []*DiagnosticError
}

// NewBag returns an empty diagnostic bag.
func NewBag() *Bag {
	return &Bag{seen: make(map[string]bool)}
}

// Add appends d unless an equivalent diagnostic (same code, same source
// and same start of the primary span) was already recorded.
func (b *Bag) Add(d *DiagnosticError) {
	if d == nil {
		return
	}
	key := dedupKey(d)
	if key != "" && b.seen[key] {
		return
	}
	if key != "" {
		b.seen[key] = true
	}
	b.order = append(b.order, d)
}

func dedupKey(d *DiagnosticError) string {
	if len(d.Observations) == 0 {
		return ""
	}
	p := d.Observations[0]
	return fmt.Sprintf("%d:%d:%s", p.Source, p.Span.Start, d.Code)
}

// All returns every diagnostic recorded so far, in insertion order.
func (b *Bag) All() []*DiagnosticError {
	return b.order
}

// Empty reports whether no diagnostic has been recorded. The emitter
// (spec §7) refuses to run unless this holds.
func (b *Bag) Empty() bool {
	return len(b.order) == 0
}

// Len returns the number of distinct diagnostics recorded.
func (b *Bag) Len() int {
	return len(b.order)
}
