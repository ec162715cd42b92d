package emit

import (
	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/typesystem"
)

// ValueStackSize is how many bytes one local/operand-stack slot occupies
// (spec §4.6 "Locals layout").
type ValueStackSize int

const (
	Zero      ValueStackSize = 0
	Byte      ValueStackSize = 1
	QWord     ValueStackSize = 8
	Reference ValueStackSize = 8 // a pointer-sized slot for strings/aggregates
)

// SizeOf maps a primitive type to its slot size (spec §4.6: "Byte for
// Bool/ExitCode, QWord for Int/Float, Reference for strings and
// aggregates, Zero for Unit/Nothing").
func SizeOf(p typesystem.Prim) ValueStackSize {
	switch p {
	case typesystem.Bool, typesystem.ExitCode:
		return Byte
	case typesystem.Int, typesystem.Float:
		return QWord
	case typesystem.String:
		return Reference
	case typesystem.Unit, typesystem.Nothing:
		return Zero
	default: // Error, Unknown
		return Reference
	}
}

// SizeOfRef resolves a TypeRef to its slot size via the reef's Typing
// table, falling back to Reference for anything that isn't a primitive
// (function values, the result of a leaked polytype already diagnosed).
func SizeOfRef(typ *typesystem.Typing, ref typesystem.TypeRef) ValueStackSize {
	t := typ.Get(ref.ID)
	if t.Kind != typesystem.KindPrimitive {
		return Reference
	}
	return SizeOf(t.Prim)
}

// Layout assigns each LocalId a byte offset within a chunk's stack frame
// (spec §4.6): parameters first in declaration order, then captured
// variables, each a reference-sized slot.
type Layout struct {
	offsets map[engine.LocalId]int
	sizes   map[engine.LocalId]ValueStackSize
	cursor  int
}

// NewLayout returns an empty Layout.
func NewLayout() *Layout {
	return &Layout{offsets: make(map[engine.LocalId]int), sizes: make(map[engine.LocalId]ValueStackSize)}
}

// Add assigns the next offset to local, sized size, and returns it.
func (l *Layout) Add(local engine.LocalId, size ValueStackSize) int {
	off := l.cursor
	l.offsets[local] = off
	l.sizes[local] = size
	l.cursor += int(size)
	return off
}

// Offset returns local's assigned byte offset.
func (l *Layout) Offset(local engine.LocalId) (int, bool) {
	off, ok := l.offsets[local]
	return off, ok
}

// Size returns local's assigned slot size.
func (l *Layout) Size(local engine.LocalId) (ValueStackSize, bool) {
	sz, ok := l.sizes[local]
	return sz, ok
}

// ByteCount is the chunk's total stack frame size in bytes.
func (l *Layout) ByteCount() int {
	return l.cursor
}

// LineMapping pairs one instruction offset with its 1-based source line
// (spec §4.6 "Line mappings", §6 "optional line-mapping attribute").
type LineMapping struct {
	Offset uint32
	Line   uint32
}

// Chunk is one compiled chunk: a chunk's instruction stream plus the
// framing metadata the bytecode output format serializes alongside it
// (spec §6 "Chunks:").
type Chunk struct {
	Name                string
	Code                []byte
	LocalsByteCount     uint32
	ParametersByteCount uint32
	ReturnByteCount     byte
	Lines               []LineMapping // omits consecutive duplicates (spec §4.6)

	lastLine uint32
}

// NewChunk returns an empty Chunk named name.
func NewChunk(name string) *Chunk {
	return &Chunk{Name: name, Code: make([]byte, 0, 64)}
}

// Len is the current instruction-byte offset — the position the next
// emitted byte will occupy.
func (c *Chunk) Len() int {
	return len(c.Code)
}

// WriteByte appends one raw byte, recording a line mapping if line is
// nonzero and differs from the last recorded line (spec §4.6: "compressed
// by omitting consecutive duplicates").
func (c *Chunk) WriteByte(b byte, line uint32) {
	if line != 0 && line != c.lastLine {
		c.Lines = append(c.Lines, LineMapping{Offset: uint32(len(c.Code)), Line: line})
		c.lastLine = line
	}
	c.Code = append(c.Code, b)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op Opcode, line uint32) {
	c.WriteByte(byte(op), line)
}

// WriteU32 appends a big-endian 32-bit operand (spec §3: "big-endian
// 32-bit indices/offsets").
func (c *Chunk) WriteU32(v uint32, line uint32) {
	c.WriteByte(byte(v>>24), line)
	c.WriteByte(byte(v>>16), 0)
	c.WriteByte(byte(v>>8), 0)
	c.WriteByte(byte(v), 0)
}

// WriteU64 appends a big-endian 64-bit operand (spec §3: "big-endian
// 64-bit integers/floats").
func (c *Chunk) WriteU64(v uint64, line uint32) {
	for i := 0; i < 8; i++ {
		shift := uint(56 - i*8)
		l := uint32(0)
		if i == 0 {
			l = line
		}
		c.WriteByte(byte(v>>shift), l)
	}
}

// Placeholder is a jump operand position reserved for later patching
// (spec §3 "A Placeholder holds a position where a jump offset is later
// patched").
type Placeholder int

// ReserveJump emits op followed by a zeroed 32-bit placeholder operand and
// returns its position for later patching via PatchJump.
func (c *Chunk) ReserveJump(op Opcode, line uint32) Placeholder {
	c.WriteOp(op, line)
	pos := Placeholder(len(c.Code))
	c.WriteU32(0, 0)
	return pos
}

// PatchJump overwrites the 32-bit operand at p with target, the absolute
// instruction offset the jump should land on.
func (c *Chunk) PatchJump(p Placeholder, target int) {
	off := int(p)
	v := uint32(target)
	c.Code[off] = byte(v >> 24)
	c.Code[off+1] = byte(v >> 16)
	c.Code[off+2] = byte(v >> 8)
	c.Code[off+3] = byte(v)
}

// WriteJumpTo emits op followed by the already-known absolute target
// (spec §4.6 "Continue: Jump enclosingLoopStart") — unlike ReserveJump,
// no later patch is needed since the backward target is known up front.
func (c *Chunk) WriteJumpTo(op Opcode, target int, line uint32) {
	c.WriteOp(op, line)
	c.WriteU32(uint32(target), 0)
}
