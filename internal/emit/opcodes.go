// Package emit implements spec §4.6 "Bytecode Emitter": it traverses a
// reef's typed chunks (internal/hir) and produces a self-contained byte
// stream plus a constant pool. Grounded on the teacher's
// internal/vm/opcodes.go — the table-driven Opcode/OpcodeNames idiom is
// kept; the vocabulary itself is replaced end to end with spec §6's fixed
// opcode set, since this core emits for moshell's stack machine, not
// funxy's closure-and-trait VM.
package emit

// Opcode is a single emitted instruction (spec §6 "Opcode set").
type Opcode byte

const (
	// Immediates
	PushByte   Opcode = iota // 1-byte immediate
	PushInt                  // 8-byte big-endian immediate
	PushFloat                // 8-byte big-endian immediate (IEEE-754 bits)
	PushString               // 4-byte constant-pool index

	// Locals, by slot size
	GetByte
	SetByte
	GetQWord
	SetQWord
	GetRef
	SetRef
	PopByte
	PopQWord
	PopRef

	// Calls
	Spawn  // shell-style call: argc follows as 1 byte
	Invoke // call: 4-byte operand, a constant-pool signature index (or the NativeId of a native with no opcode of its own)

	// Control flow — IfJump/IfNotJump/Jump take a 32-bit absolute target; Return has no operand
	IfJump
	IfNotJump
	Jump
	Return

	// Numeric ops
	IntAdd
	IntSub
	IntMul
	IntDiv
	IntMod
	IntNeg
	FloatAdd
	FloatSub
	FloatMul
	FloatDiv
	FloatMod
	FloatNeg

	// Comparisons
	IntEqual
	IntLessThan
	IntLessEqual
	IntGreaterThan
	IntGreaterEqual
	FloatEqual
	FloatLessThan
	FloatLessEqual
	FloatGreaterThan
	FloatGreaterEqual
	StringEqual

	// Conversions
	ConvertByteToInt
	ConvertIntToByte
	ConvertIntToFloat
	ConvertIntToStr
	ConvertFloatToStr
	ConvertByteToStr
	Concat

	// Boolean inversion is `x XOR 1` (spec §6), not a dedicated NOT opcode.
	BXor
)

// OpcodeNames maps an Opcode to its mnemonic, for disassembly and tests.
var OpcodeNames = map[Opcode]string{
	PushByte:   "PushByte",
	PushInt:    "PushInt",
	PushFloat:  "PushFloat",
	PushString: "PushString",

	GetByte:  "GetByte",
	SetByte:  "SetByte",
	GetQWord: "GetQWord",
	SetQWord: "SetQWord",
	GetRef:   "GetRef",
	SetRef:   "SetRef",
	PopByte:  "PopByte",
	PopQWord: "PopQWord",
	PopRef:   "PopRef",

	Spawn:  "Spawn",
	Invoke: "Invoke",

	IfJump:    "IfJump",
	IfNotJump: "IfNotJump",
	Jump:      "Jump",
	Return:    "Return",

	IntAdd: "IntAdd", IntSub: "IntSub", IntMul: "IntMul", IntDiv: "IntDiv", IntMod: "IntMod", IntNeg: "IntNeg",
	FloatAdd: "FloatAdd", FloatSub: "FloatSub", FloatMul: "FloatMul", FloatDiv: "FloatDiv", FloatMod: "FloatMod", FloatNeg: "FloatNeg",

	IntEqual: "IntEqual", IntLessThan: "IntLessThan", IntLessEqual: "IntLessEqual",
	IntGreaterThan: "IntGreaterThan", IntGreaterEqual: "IntGreaterEqual",
	FloatEqual: "FloatEqual", FloatLessThan: "FloatLessThan", FloatLessEqual: "FloatLessEqual",
	FloatGreaterThan: "FloatGreaterThan", FloatGreaterEqual: "FloatGreaterEqual",
	StringEqual: "StringEqual",

	ConvertByteToInt:  "ConvertByteToInt",
	ConvertIntToByte:  "ConvertIntToByte",
	ConvertIntToFloat: "ConvertIntToFloat",
	ConvertIntToStr:   "ConvertIntToStr",
	ConvertFloatToStr: "ConvertFloatToStr",
	ConvertByteToStr:  "ConvertByteToStr",
	Concat:            "Concat",

	BXor: "BXor",
}

// NativeOpcodeTable maps a lang-reef NativeId (internal/native.Method.ID)
// to an opcode. Nothing in this package builds or reads one: the emitter
// maps a native to its opcode by receiver and name through nativeOpByName
// (see Emitter.opcodeForNative), since the catalog's method order is
// data-driven (catalog.yaml) rather than fixed at compile time.
type NativeOpcodeTable map[int]Opcode

// nativeOpByName resolves one catalog entry (receiver, method name) to its
// opcode. Entries absent here have no direct opcode and are left for the
// runtime's method-dispatch fallback (not this core's concern, spec §1
// Non-goals: "executing bytecode").
var nativeOpByName = map[string]Opcode{
	"Int.plus":  IntAdd,
	"Int.sub":   IntSub,
	"Int.mul":   IntMul,
	"Int.div":   IntDiv,
	"Int.mod":   IntMod,
	"Int.neg":   IntNeg,
	"Int.eq":    IntEqual,
	"Int.lt":    IntLessThan,
	"Int.le":    IntLessEqual,
	"Int.gt":    IntGreaterThan,
	"Int.ge":    IntGreaterEqual,
	"Float.plus": FloatAdd,
	"Float.sub":  FloatSub,
	"Float.mul":  FloatMul,
	"Float.div":  FloatDiv,
	"Float.mod":  FloatMod,
	"Float.neg":  FloatNeg,
	"Float.eq":   FloatEqual,
	"Float.lt":   FloatLessThan,
	"Float.le":   FloatLessEqual,
	"Float.gt":   FloatGreaterThan,
	"Float.ge":   FloatGreaterEqual,
	"String.eq":     StringEqual,
	"String.concat": Concat,
	"Bool.not":      BXor,
}
