package emit

import (
	"testing"

	"github.com/modernsh/moshell/internal/engine"
	"github.com/modernsh/moshell/internal/typesystem"
)

func TestSizeOf(t *testing.T) {
	cases := map[typesystem.Prim]ValueStackSize{
		typesystem.Bool:     Byte,
		typesystem.ExitCode: Byte,
		typesystem.Int:      QWord,
		typesystem.Float:    QWord,
		typesystem.String:   Reference,
		typesystem.Unit:     Zero,
		typesystem.Nothing:  Zero,
		typesystem.Error:    Reference,
	}
	for prim, want := range cases {
		if got := SizeOf(prim); got != want {
			t.Errorf("SizeOf(%s) = %d, want %d", prim, got, want)
		}
	}
}

func TestSizeOfRefFallsBackForNonPrimitive(t *testing.T) {
	typ := typesystem.NewTyping(0)
	fnRef := typ.Add(typesystem.Type{Kind: typesystem.KindFunction}, "")
	if got := SizeOfRef(typ, fnRef); got != Reference {
		t.Errorf("SizeOfRef() for a Function type = %d, want Reference", got)
	}
	intRef := typ.Add(typesystem.Type{Kind: typesystem.KindPrimitive, Prim: typesystem.Int}, "")
	if got := SizeOfRef(typ, intRef); got != QWord {
		t.Errorf("SizeOfRef() for Int = %d, want QWord", got)
	}
}

func TestLayoutAddAndLookup(t *testing.T) {
	l := NewLayout()
	offA := l.Add(0, QWord)
	offB := l.Add(1, Byte)
	if offA != 0 || offB != 8 {
		t.Errorf("offsets = %d, %d, want 0, 8", offA, offB)
	}
	if got, ok := l.Offset(1); !ok || got != 8 {
		t.Errorf("Offset(1) = %d, %v", got, ok)
	}
	if got, ok := l.Size(0); !ok || got != QWord {
		t.Errorf("Size(0) = %d, %v", got, ok)
	}
	if l.ByteCount() != 9 {
		t.Errorf("ByteCount() = %d, want 9", l.ByteCount())
	}
}

func TestLayoutMissingLocal(t *testing.T) {
	l := NewLayout()
	if _, ok := l.Offset(engine.LocalId(5)); ok {
		t.Errorf("Offset() of an unassigned local should report ok=false")
	}
}

func TestWriteByteRecordsLineOnlyOnChange(t *testing.T) {
	c := NewChunk("main")
	c.WriteByte(0x01, 10)
	c.WriteByte(0x02, 10) // same line: no new mapping
	c.WriteByte(0x03, 11) // new line
	if len(c.Lines) != 2 {
		t.Fatalf("Lines = %+v, want 2 entries", c.Lines)
	}
	if c.Lines[0] != (LineMapping{Offset: 0, Line: 10}) {
		t.Errorf("Lines[0] = %+v", c.Lines[0])
	}
	if c.Lines[1] != (LineMapping{Offset: 2, Line: 11}) {
		t.Errorf("Lines[1] = %+v", c.Lines[1])
	}
}

func TestWriteByteZeroLineNeverRecords(t *testing.T) {
	c := NewChunk("main")
	c.WriteByte(0x01, 0)
	c.WriteByte(0x02, 0)
	if len(c.Lines) != 0 {
		t.Errorf("Lines = %+v, want none", c.Lines)
	}
}

func TestWriteU32BigEndian(t *testing.T) {
	c := NewChunk("main")
	c.WriteU32(0x01020304, 1)
	want := []byte{0x01, 0x02, 0x03, 0x04}
	if string(c.Code) != string(want) {
		t.Errorf("WriteU32() = %x, want %x", c.Code, want)
	}
}

func TestWriteU64BigEndian(t *testing.T) {
	c := NewChunk("main")
	c.WriteU64(0x0102030405060708, 1)
	want := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	if string(c.Code) != string(want) {
		t.Errorf("WriteU64() = %x, want %x", c.Code, want)
	}
}

func TestReserveJumpAndPatchJump(t *testing.T) {
	c := NewChunk("main")
	ph := c.ReserveJump(IfJump, 1)
	c.WriteOp(Return, 2)
	target := c.Len()
	c.PatchJump(ph, target)

	// opcode byte + 4-byte operand reserved
	operand := uint32(c.Code[1])<<24 | uint32(c.Code[2])<<16 | uint32(c.Code[3])<<8 | uint32(c.Code[4])
	if int(operand) != target {
		t.Errorf("patched operand = %d, want %d", operand, target)
	}
}

func TestWriteJumpToEmitsAbsoluteTargetImmediately(t *testing.T) {
	c := NewChunk("main")
	c.WriteJumpTo(Jump, 42, 1)
	if c.Code[0] != byte(Jump) {
		t.Fatalf("Code[0] = %d, want opcode Jump", c.Code[0])
	}
	operand := uint32(c.Code[1])<<24 | uint32(c.Code[2])<<16 | uint32(c.Code[3])<<8 | uint32(c.Code[4])
	if operand != 42 {
		t.Errorf("operand = %d, want 42", operand)
	}
}
