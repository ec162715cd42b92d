// bundle.go implements spec §3 "Constant pool and bytecodeand §6 "Bytecode
// output format": the wire format the emitter's caller receives. Grounded
// on the teacher's internal/vm/bundle.go — the Serialize/DeserializeAny
// magic-number-plus-version envelope and the Stats()-style summary are
// kept in spirit; everything execution-related (RunBundle, self-contained
// binary packing, multi-command dispatch) is dropped since running
// bytecode is this core's explicit non-goal (spec §1).
package emit

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
)

// ConstantPool is the ordered, deduplicating string pool (spec §3
// "Constant pool and bytecode": "an ordered set (deduplicating by value)
// of strings").
type ConstantPool struct {
	values []string
	index  map[string]int
}

// NewConstantPool returns an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{index: make(map[string]int)}
}

// Intern returns s's index in the pool, appending it if this is the first
// occurrence.
func (p *ConstantPool) Intern(s string) int {
	if idx, ok := p.index[s]; ok {
		return idx
	}
	idx := len(p.values)
	p.values = append(p.values, s)
	p.index[s] = idx
	return idx
}

// Len returns the number of distinct entries interned so far.
func (p *ConstantPool) Len() int {
	return len(p.values)
}

// Bytes returns the total byte length of every interned string, for
// Stats().
func (p *ConstantPool) Bytes() int {
	total := 0
	for _, v := range p.values {
		total += len(v)
	}
	return total
}

// InternSignature interns a human-readable signature string for def and
// returns its constant-pool index. Interning is by rendered text, so
// definitions whose text coincides share one entry.
func (p *ConstantPool) InternSignature(def interface{ String() string }) int {
	return p.Intern(def.String())
}

// ExportedSymbol is one entry of the exported-symbol table (spec §6 item
// 3: "count × (u32 name_index, u32 local_offset)").
type ExportedSymbol struct {
	Name        string
	NameIndex   uint32
	LocalOffset uint32
}

// Bundle is the complete output of one reef's emission pass: every
// chunk's bytecode plus the shared constant pool and exported-symbol
// table (spec §3 "The constant pool and bytecode buffers are owned by the
// emitter and consumed by the caller as a byte blob").
type Bundle struct {
	Pool            *ConstantPool
	Chunks          []*Chunk
	ExportedSymbols []ExportedSymbol
	DynamicSymbols  []uint32 // constant-pool indices (spec §6 item 2)
}

// magic is the bytecode format's leading marker, distinguishing this
// core's output from the teacher's "FXYB" funxy bundles.
var magic = [4]byte{'M', 'S', 'H', 'B'}

const formatVersion byte = 0x01

// Write serializes the bundle per spec §6 "Bytecode output format", all
// integers big-endian.
func (b *Bundle) Write(w interface{ Write([]byte) (int, error) }) error {
	buf := new(bytes.Buffer)
	buf.Write(magic[:])
	buf.WriteByte(formatVersion)

	writeU32 := func(v uint32) { _ = binary.Write(buf, binary.BigEndian, v) }
	writeU64 := func(v uint64) { _ = binary.Write(buf, binary.BigEndian, v) }

	// Chunk names are written below as pool indices, so they must already
	// be in the pool when it is serialized.
	for _, c := range b.Chunks {
		b.Pool.Intern(c.Name)
	}

	// 1. Constant pool: u32 count, then count entries of u64 length + bytes.
	writeU32(uint32(len(b.Pool.values)))
	for _, s := range b.Pool.values {
		writeU64(uint64(len(s)))
		buf.WriteString(s)
	}

	// 2. Dynamic symbol list: u32 count, then count x u32 constant-pool indices.
	writeU32(uint32(len(b.DynamicSymbols)))
	for _, idx := range b.DynamicSymbols {
		writeU32(idx)
	}

	// 3. Exported symbol table: u32 count, then count x (u32 name_index, u32 local_offset).
	sorted := append([]ExportedSymbol(nil), b.ExportedSymbols...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	writeU32(uint32(len(sorted)))
	for _, sym := range sorted {
		writeU32(sym.NameIndex)
		writeU32(sym.LocalOffset)
	}

	// 4. Chunks, sequentially.
	writeU32(uint32(len(b.Chunks)))
	for _, c := range b.Chunks {
		writeU32(uint32(b.Pool.Intern(c.Name)))
		writeU32(c.LocalsByteCount)
		writeU32(c.ParametersByteCount)
		buf.WriteByte(c.ReturnByteCount)
		writeU32(uint32(len(c.Code)))
		buf.Write(c.Code)

		attrFlags := byte(0)
		if len(c.Lines) > 0 {
			attrFlags |= 1
		}
		buf.WriteByte(attrFlags)
		if attrFlags&1 != 0 {
			writeU32(uint32(len(c.Lines)))
			for _, lm := range c.Lines {
				writeU32(lm.Offset)
				writeU32(lm.Line)
			}
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// Stats summarizes a compiled bundle for logs and tests — constant-pool
// size, chunk count, and total instruction bytes, in human-readable units
// (spec's DOMAIN STACK: go-humanize backs this the way it backs any
// size-reporting CLI output).
func (b *Bundle) Stats() string {
	instrBytes := 0
	for _, c := range b.Chunks {
		instrBytes += len(c.Code)
	}
	return fmt.Sprintf(
		"%s chunks, %s constant-pool bytes (%s entries), %s instruction bytes",
		humanize.Comma(int64(len(b.Chunks))),
		humanize.Bytes(uint64(b.Pool.Bytes())),
		humanize.Comma(int64(b.Pool.Len())),
		humanize.Bytes(uint64(instrBytes)),
	)
}
