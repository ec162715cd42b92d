// emitter.go implements spec §4.6's traversal: for each typed chunk, build
// its locals layout, then walk the HIR emitting instructions into a Chunk.
// Grounded on the teacher's internal/vm compiler pass structure (one
// recursive emit function keyed by node kind) — here keyed by
// hir.ExprKind instead of an AST node type, since the HIR is what this
// core emits from (spec §1: "the lexer, parser... and the VM... are
// external collaborators").
package emit

import (
	"math"
	"sort"

	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/hir"
	"github.com/modernsh/moshell/internal/native"
	"github.com/modernsh/moshell/internal/token"
	"github.com/modernsh/moshell/internal/typesystem"
)

// Emitter turns one reef's TypedEngine into a Bundle (spec §4.6, §6).
type Emitter struct {
	Typing  *typesystem.Typing
	Catalog *native.Catalog
	Typed   *hir.TypedEngine
	Engine  *engine.Engine

	// Lines resolves byte offsets to source lines for the optional
	// line-mapping attribute (spec §6). Nil is legal — every chunk is then
	// emitted with no line mapping at all.
	Lines token.LineProvider

	pool     *ConstantPool
	layouts  map[engine.SourceId]*Layout
	captures map[engine.SourceId][]hir.ResolvedSymbol

	// per-chunk emission state (spec §4.6 "Emission state")
	loopStart    int
	loopStartSet bool
	loopEnds     []Placeholder
}

// New returns an Emitter over the given reef's typed chunks. lines may be
// nil to omit line-mapping attributes entirely.
func New(typ *typesystem.Typing, cat *native.Catalog, typed *hir.TypedEngine, eng *engine.Engine, lines token.LineProvider) *Emitter {
	return &Emitter{
		Typing: typ, Catalog: cat, Typed: typed, Engine: eng, Lines: lines,
		pool:     NewConstantPool(),
		layouts:  make(map[engine.SourceId]*Layout),
		captures: make(map[engine.SourceId][]hir.ResolvedSymbol),
	}
}

// Run emits every chunk named in order (spec §4.6: "roots first, then
// their inner functions" — order is expected to be the same topological
// order the ascriber consumed) and returns the finished Bundle.
func (e *Emitter) Run(order []engine.SourceId) *Bundle {
	for _, id := range order {
		if chunk, ok := e.Typed.Get(id); ok {
			e.captures[id] = collectCaptures(chunk)
		}
	}

	bundle := &Bundle{Pool: e.pool}
	for _, id := range order {
		chunk, ok := e.Typed.Get(id)
		if !ok {
			continue
		}
		bundle.Chunks = append(bundle.Chunks, e.emitChunk(id, chunk))
		if chunk.IsScript {
			bundle.ExportedSymbols = append(bundle.ExportedSymbols, e.exportedSymbolsOf(id)...)
		}
	}
	return bundle
}

// collectCaptures walks a chunk's body collecting every distinct captured
// variable (a Reference/Assign Var with Kind==VarExternal), in first-seen
// order (spec §4.6 "Captures at call sites": "each function collects all
// external references that resolve to locals of any ancestor").
func collectCaptures(chunk *hir.Chunk) []hir.ResolvedSymbol {
	var out []hir.ResolvedSymbol
	seen := make(map[hir.ResolvedSymbol]bool)
	var walk func(n *hir.TypedExpr)
	walk = func(n *hir.TypedExpr) {
		if n == nil {
			return
		}
		if n.Kind == hir.Reference || n.Kind == hir.Assign {
			if n.Var.Kind == hir.VarExternal && !seen[n.Var.External] {
				seen[n.Var.External] = true
				out = append(out, n.Var.External)
			}
		}
		walk(n.DeclInit)
		walk(n.AssignValue)
		walk(n.Cond)
		walk(n.Then)
		walk(n.Otherwise)
		walk(n.LoopCond)
		walk(n.LoopBody)
		walk(n.ReturnValue)
		walk(n.Receiver)
		walk(n.Inner)
		walk(n.ConvertInner)
		for _, c := range n.Exprs {
			walk(c)
		}
		for _, a := range n.Args {
			walk(a)
		}
		for _, a := range n.ProcessArgs {
			walk(a)
		}
		for _, r := range n.Redirs {
			walk(r.Operand)
		}
	}
	walk(chunk.Body)
	return out
}

// buildLayout implements spec §4.6 "Locals layout": parameters first (in
// declaration order), then captured variables (each reference-sized). Any
// further local discovered only inside the body (Read, ForIn, a Match
// binding — constructs that don't route through ascribeVarDecl's typed
// Declare node) is assigned a reference-sized slot on first encounter,
// since this core doesn't thread per-local type information through HIR
// outside of Declare/Param.
func (e *Emitter) buildLayout(id engine.SourceId, chunk *hir.Chunk) *Layout {
	layout := NewLayout()
	assigned := make(map[engine.LocalId]bool)

	for _, p := range chunk.Params {
		layout.Add(p.Local, SizeOfRef(e.Typing, p.Type))
		assigned[p.Local] = true
	}
	for _, cap := range e.captures[id] {
		local := e.captureLocalId(cap)
		if !assigned[local] {
			layout.Add(local, Reference)
			assigned[local] = true
		}
	}

	collectDeclares(chunk.Body, func(local engine.LocalId, ty typesystem.TypeRef) {
		if !assigned[local] {
			layout.Add(local, SizeOfRef(e.Typing, ty))
			assigned[local] = true
		}
	})

	env := e.Engine.Get(id)
	for _, sym := range env.Locals() {
		if !assigned[sym.ID] {
			layout.Add(sym.ID, Reference)
			assigned[sym.ID] = true
		}
	}

	return layout
}

// captureLocalId assigns a synthetic, chunk-local LocalId to a capture for
// layout purposes; captures live at offsets past every genuine local of
// this chunk, keyed by their own (source, local) identity rather than
// colliding with this chunk's LocalId numbering.
func (e *Emitter) captureLocalId(cap hir.ResolvedSymbol) engine.LocalId {
	return engine.LocalId(1<<30 + int(cap.Source)<<16 + int(cap.Local))
}

func collectDeclares(n *hir.TypedExpr, record func(engine.LocalId, typesystem.TypeRef)) {
	if n == nil {
		return
	}
	if n.Kind == hir.Declare {
		record(n.DeclLocal, n.DeclInit.Type)
	}
	collectDeclares(n.DeclInit, record)
	collectDeclares(n.AssignValue, record)
	collectDeclares(n.Cond, record)
	collectDeclares(n.Then, record)
	collectDeclares(n.Otherwise, record)
	collectDeclares(n.LoopCond, record)
	collectDeclares(n.LoopBody, record)
	collectDeclares(n.ReturnValue, record)
	collectDeclares(n.Receiver, record)
	collectDeclares(n.Inner, record)
	collectDeclares(n.ConvertInner, record)
	for _, c := range n.Exprs {
		collectDeclares(c, record)
	}
	for _, a := range n.Args {
		collectDeclares(a, record)
	}
	for _, a := range n.ProcessArgs {
		collectDeclares(a, record)
	}
	for _, r := range n.Redirs {
		collectDeclares(r.Operand, record)
	}
}

func (e *Emitter) exportedSymbolsOf(id engine.SourceId) []ExportedSymbol {
	var out []ExportedSymbol
	env := e.Engine.Get(id)
	layout := e.layouts[id]
	for _, sym := range env.Locals() {
		if off, ok := layout.Offset(sym.ID); ok {
			out = append(out, ExportedSymbol{Name: sym.Name, NameIndex: uint32(e.pool.Intern(sym.Name)), LocalOffset: uint32(off)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// emitChunk implements spec §4.6's per-chunk traversal.
func (e *Emitter) emitChunk(id engine.SourceId, chunk *hir.Chunk) *Chunk {
	layout := e.buildLayout(id, chunk)
	e.layouts[id] = layout

	out := NewChunk(chunkName(id, chunk))
	out.ParametersByteCount = uint32(paramsByteCount(chunk, layout))
	out.ReturnByteCount = byte(SizeOfRef(e.Typing, chunk.Return))

	e.loopStartSet = false
	e.loopEnds = nil
	e.emitExpr(out, layout, id, chunk.Body, true)
	out.WriteOp(Return, 0)

	out.LocalsByteCount = uint32(layout.ByteCount())
	return out
}

func chunkName(id engine.SourceId, chunk *hir.Chunk) string {
	if chunk.IsScript {
		return "<script>"
	}
	return ""
}

func paramsByteCount(chunk *hir.Chunk, layout *Layout) int {
	total := 0
	for _, p := range chunk.Params {
		if sz, ok := layout.Size(p.Local); ok {
			total += int(sz)
		}
	}
	return total
}

// line resolves n's source line via the optional LineProvider (spec §6:
// "Line mappings ... optional; omitted entirely if the caller supplies no
// LineProvider"). Returns 0 (no mapping recorded) when either is absent.
func (e *Emitter) line(id engine.SourceId, n *hir.TypedExpr) uint32 {
	if n == nil || e.Lines == nil {
		return 0
	}
	contentID := string(e.Engine.ContentOf(id))
	ln, ok := e.Lines.Line(contentID, n.Span.Start)
	if !ok {
		return 0
	}
	return uint32(ln)
}

// emitExpr is the main recursive emission function (spec §4.6 "Key
// emissions"). useValues mirrors the emission-state flag of the same name:
// when false, a value-producing node may omit pushing its result.
func (e *Emitter) emitExpr(out *Chunk, layout *Layout, id engine.SourceId, n *hir.TypedExpr, useValues bool) {
	if n == nil {
		return
	}
	switch n.Kind {
	case hir.Literal:
		e.emitLiteral(out, id, n, useValues)

	case hir.Reference:
		e.emitGet(out, layout, id, n)
		if !useValues {
			e.emitPop(out, layout, id, n.Type, e.line(id, n))
		}

	case hir.Block:
		for i, c := range n.Exprs {
			e.emitExpr(out, layout, id, c, useValues && i == len(n.Exprs)-1)
		}

	case hir.Declare:
		e.emitExpr(out, layout, id, n.DeclInit, true)
		e.emitSet(out, layout, id, n.DeclLocal, n.DeclInit.Type, e.line(id, n))

	case hir.Assign:
		e.emitExpr(out, layout, id, n.AssignValue, true)
		e.emitAssignTarget(out, layout, id, n)

	case hir.Conditional:
		e.emitExpr(out, layout, id, n.Cond, true)
		p1 := out.ReserveJump(IfNotJump, e.line(id, n))
		e.emitExpr(out, layout, id, n.Then, useValues)
		p2 := out.ReserveJump(Jump, 0)
		out.PatchJump(p1, out.Len())
		if n.Otherwise != nil {
			e.emitExpr(out, layout, id, n.Otherwise, useValues)
		}
		out.PatchJump(p2, out.Len())

	case hir.ConditionalLoop:
		prevStart, prevSet, prevEnds := e.loopStart, e.loopStartSet, e.loopEnds
		e.loopStart = out.Len()
		e.loopStartSet = true
		e.loopEnds = nil
		if n.LoopCond != nil {
			e.emitExpr(out, layout, id, n.LoopCond, true)
			end := out.ReserveJump(IfNotJump, e.line(id, n))
			e.loopEnds = append(e.loopEnds, end)
		}
		e.emitExpr(out, layout, id, n.LoopBody, false)
		out.WriteJumpTo(Jump, e.loopStart, 0)
		for _, p := range e.loopEnds {
			out.PatchJump(p, out.Len())
		}
		e.loopStart, e.loopStartSet, e.loopEnds = prevStart, prevSet, prevEnds

	case hir.Continue:
		if e.loopStartSet {
			out.WriteJumpTo(Jump, e.loopStart, e.line(id, n))
		}

	case hir.Break:
		if e.loopStartSet {
			p := out.ReserveJump(Jump, e.line(id, n))
			e.loopEnds = append(e.loopEnds, p)
		}

	case hir.Return:
		if n.ReturnValue != nil {
			e.emitExpr(out, layout, id, n.ReturnValue, true)
		}
		out.WriteOp(Return, e.line(id, n))

	case hir.FunctionCall:
		for _, a := range n.Args {
			e.emitExpr(out, layout, id, a, true)
		}
		for _, cap := range e.capturesOf(n) {
			e.emitCapturePush(out, layout, id, cap)
		}
		out.WriteOp(Invoke, e.line(id, n))
		out.WriteU32(uint32(e.pool.InternSignature(n.Def)), 0)
		if !useValues && n.Type != (typesystem.TypeRef{}) {
			e.emitPop(out, layout, id, n.Type, 0)
		}

	case hir.MethodCall:
		e.emitExpr(out, layout, id, n.Receiver, true)
		for _, a := range n.Args {
			e.emitExpr(out, layout, id, a, true)
		}
		if n.Def.Kind == typesystem.DefNative {
			if op, ok := e.opcodeForNative(n.Def.Native); ok {
				out.WriteOp(op, e.line(id, n))
			} else {
				out.WriteOp(Invoke, e.line(id, n))
				out.WriteU32(uint32(n.Def.Native), 0)
			}
		} else {
			out.WriteOp(Invoke, e.line(id, n))
			out.WriteU32(uint32(e.pool.InternSignature(n.Def)), 0)
		}
		if !useValues {
			e.emitPop(out, layout, id, n.Type, 0)
		}

	case hir.ProcessCall:
		for _, a := range n.ProcessArgs {
			e.emitExpr(out, layout, id, a, true)
		}
		out.WriteOp(Spawn, e.line(id, n))
		out.WriteByte(byte(len(n.ProcessArgs)), 0)
		if !useValues {
			e.emitPop(out, layout, id, n.Type, 0)
		}

	case hir.Pipeline:
		for _, c := range n.Exprs {
			e.emitExpr(out, layout, id, c, false)
		}

	case hir.Redirect:
		e.emitExpr(out, layout, id, n.Inner, useValues)
		for _, r := range n.Redirs {
			e.emitExpr(out, layout, id, r.Operand, true)
			e.emitPop(out, layout, id, r.Operand.Type, 0)
		}

	case hir.Capture:
		for _, c := range n.Exprs {
			e.emitExpr(out, layout, id, c, false)
		}
		if useValues {
			out.WriteOp(PushString, e.line(id, n))
			out.WriteU32(uint32(e.pool.Intern("")), 0)
		}

	case hir.Convert:
		e.emitExpr(out, layout, id, n.ConvertInner, true)
		e.emitConvert(out, n.ConvertInner.Type, n.ConvertInto, e.line(id, n))

	case hir.Noop:
		// nothing to emit

	default:
		// unreachable for a fully-ascribed HIR
	}
}

// capturesOf resolves the callee chunk's recorded capture list for a
// FunctionCall node (spec §4.6: "captured variables as implicit trailing
// arguments").
func (e *Emitter) capturesOf(call *hir.TypedExpr) []hir.ResolvedSymbol {
	if call.Def.Kind != typesystem.DefUser {
		return nil
	}
	return e.captures[call.Def.User]
}

func (e *Emitter) emitCapturePush(out *Chunk, layout *Layout, id engine.SourceId, cap hir.ResolvedSymbol) {
	if cap.Source == id {
		if off, ok := layout.Offset(cap.Local); ok {
			out.WriteOp(GetRef, 0)
			out.WriteU32(uint32(off), 0)
			return
		}
	}
	// Captured from an ancestor further up than the immediate caller's own
	// frame: re-expressed as a capture of the caller's own layout, added by
	// buildLayout's capture pass.
	if off, ok := layout.Offset(e.captureLocalId(cap)); ok {
		out.WriteOp(GetRef, 0)
		out.WriteU32(uint32(off), 0)
	}
}

func (e *Emitter) emitLiteral(out *Chunk, id engine.SourceId, n *hir.TypedExpr, useValues bool) {
	if !useValues {
		return
	}
	prim, _ := e.primOf(n.Type)
	switch prim {
	case typesystem.Int:
		out.WriteOp(PushInt, e.line(id, n))
		out.WriteU64(uint64(n.Value.Int), 0)
	case typesystem.Float:
		out.WriteOp(PushFloat, e.line(id, n))
		out.WriteU64(float64bits(n.Value.Float), 0)
	case typesystem.String:
		out.WriteOp(PushString, e.line(id, n))
		out.WriteU32(uint32(e.pool.Intern(n.Value.String)), 0)
	case typesystem.Bool:
		out.WriteOp(PushByte, e.line(id, n))
		b := byte(0)
		if n.Value.Bool {
			b = 1
		}
		out.WriteByte(b, 0)
	default:
		out.WriteOp(PushByte, e.line(id, n))
		out.WriteByte(0, 0)
	}
}

// opcodeForNative resolves a lang-reef NativeId to its opcode via the
// fixed nativeOpByName table (opcodes.go), keyed by "Receiver.Name" the
// same way native.Catalog keys its own method lookup.
func (e *Emitter) opcodeForNative(id typesystem.NativeId) (Opcode, bool) {
	m, ok := e.Catalog.MethodByID(id)
	if !ok {
		return 0, false
	}
	op, ok := nativeOpByName[m.Receiver.String()+"."+m.Name]
	return op, ok
}

func (e *Emitter) primOf(ref typesystem.TypeRef) (typesystem.Prim, bool) {
	t := e.Typing.Get(ref.ID)
	if t.Kind != typesystem.KindPrimitive {
		return 0, false
	}
	return t.Prim, true
}

func (e *Emitter) emitGet(out *Chunk, layout *Layout, id engine.SourceId, n *hir.TypedExpr) {
	switch n.Var.Kind {
	case hir.VarLocal:
		e.emitGetLocal(out, layout, n.Var.Local, n.Type, e.line(id, n))
	case hir.VarExternal:
		if off, ok := layout.Offset(e.captureLocalId(n.Var.External)); ok {
			out.WriteOp(GetRef, e.line(id, n))
			out.WriteU32(uint32(off), 0)
		}
	}
}

func (e *Emitter) emitGetLocal(out *Chunk, layout *Layout, local engine.LocalId, ty typesystem.TypeRef, ln uint32) {
	off, ok := layout.Offset(local)
	if !ok {
		return
	}
	switch SizeOfRef(e.Typing, ty) {
	case Byte:
		out.WriteOp(GetByte, ln)
	case QWord:
		out.WriteOp(GetQWord, ln)
	default:
		out.WriteOp(GetRef, ln)
	}
	out.WriteU32(uint32(off), 0)
}

func (e *Emitter) emitSet(out *Chunk, layout *Layout, id engine.SourceId, local engine.LocalId, ty typesystem.TypeRef, ln uint32) {
	off, ok := layout.Offset(local)
	if !ok {
		off = layout.Add(local, SizeOfRef(e.Typing, ty))
	}
	switch SizeOfRef(e.Typing, ty) {
	case Byte:
		out.WriteOp(SetByte, ln)
	case QWord:
		out.WriteOp(SetQWord, ln)
	default:
		out.WriteOp(SetRef, ln)
	}
	out.WriteU32(uint32(off), 0)
}

func (e *Emitter) emitAssignTarget(out *Chunk, layout *Layout, id engine.SourceId, n *hir.TypedExpr) {
	switch n.Var.Kind {
	case hir.VarLocal:
		e.emitSet(out, layout, id, n.Var.Local, n.AssignValue.Type, e.line(id, n))
	case hir.VarExternal:
		off, ok := layout.Offset(e.captureLocalId(n.Var.External))
		if !ok {
			off = layout.Add(e.captureLocalId(n.Var.External), Reference)
		}
		out.WriteOp(SetRef, e.line(id, n))
		out.WriteU32(uint32(off), 0)
	}
}

func (e *Emitter) emitPop(out *Chunk, layout *Layout, id engine.SourceId, ty typesystem.TypeRef, ln uint32) {
	switch SizeOfRef(e.Typing, ty) {
	case Byte:
		out.WriteOp(PopByte, ln)
	case QWord:
		out.WriteOp(PopQWord, ln)
	case Zero:
		// nothing was pushed
	default:
		out.WriteOp(PopRef, ln)
	}
}

func (e *Emitter) emitConvert(out *Chunk, from, into typesystem.TypeRef, ln uint32) {
	fromPrim, _ := e.primOf(from)
	intoPrim, _ := e.primOf(into)
	switch {
	case fromPrim == typesystem.ExitCode && intoPrim == typesystem.Bool:
		out.WriteOp(ConvertByteToInt, ln)
	case fromPrim == typesystem.Int && intoPrim == typesystem.Float:
		out.WriteOp(ConvertIntToFloat, ln)
	case fromPrim == typesystem.Int && intoPrim == typesystem.String:
		out.WriteOp(ConvertIntToStr, ln)
	case fromPrim == typesystem.Float && intoPrim == typesystem.String:
		out.WriteOp(ConvertFloatToStr, ln)
	case fromPrim == typesystem.Bool && intoPrim == typesystem.String:
		out.WriteOp(ConvertByteToStr, ln)
	case fromPrim == typesystem.ExitCode && intoPrim == typesystem.Int:
		out.WriteOp(ConvertByteToInt, ln)
	case fromPrim == typesystem.Int && intoPrim == typesystem.ExitCode:
		out.WriteOp(ConvertIntToByte, ln)
	}
}

// float64bits reinterprets f's IEEE-754 representation as a uint64, for
// PushFloat's 8-byte immediate (spec §3 "big-endian 64-bit ... floats").
func float64bits(f float64) uint64 {
	return math.Float64bits(f)
}
