package vm

import (
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Opcode metadata tests
// ---------------------------------------------------------------------------

func TestOpcodeInfo(t *testing.T) {
	tests := []struct {
		op           Opcode
		name         string
		operandBytes int
	}{
		{OpNOP, "NOP", 0},
		{OpPOP, "POP", 0},
		{OpDUP, "DUP", 0},
		{OpPushNil, "PUSH_NIL", 0},
		{OpPushSelf, "PUSH_SELF", 0},
		{OpPushInt8, "PUSH_INT8", 1},
		{OpPushLiteral, "PUSH_LITERAL", 2},
		{OpPushTemp, "PUSH_TEMP", 1},
		{OpPushField, "PUSH_FIELD", 2},
		{OpStoreTemp, "STORE_TEMP", 1},
		{OpStoreStatic, "STORE_STATIC", 2},
		{OpSend, "SEND", 3},
		{OpInvokeDelegate, "INVOKE_DELEGATE", 3},
		{OpJumpFalse, "JUMP_FALSE", 2},
		{OpReturnTop, "RETURN_TOP", 0},
		{OpCreateArray, "CREATE_ARRAY", 3},
		{OpMakeHandle, "MAKE_HANDLE", 2},
	}

	for _, tt := range tests {
		info := tt.op.Info()
		if info.Name != tt.name {
			t.Errorf("%s: Name = %q, want %q", tt.op, info.Name, tt.name)
		}
		if info.OperandBytes != tt.operandBytes {
			t.Errorf("%s: OperandBytes = %d, want %d", tt.op, info.OperandBytes, tt.operandBytes)
		}
	}
}

func TestUnknownOpcode(t *testing.T) {
	op := Opcode(0xFF)
	if op.Valid() {
		t.Error("0xFF should not be valid")
	}
	if !strings.HasPrefix(op.Info().Name, "UNKNOWN_") {
		t.Errorf("unknown opcode should have UNKNOWN_ prefix, got %q", op.Info().Name)
	}
}

func TestOpcodeByName(t *testing.T) {
	op, ok := OpcodeByName("invoke_delegate")
	if !ok || op != OpInvokeDelegate {
		t.Errorf("OpcodeByName(invoke_delegate) = %v, %v", op, ok)
	}
	if _, ok := OpcodeByName("bogus"); ok {
		t.Error("OpcodeByName(bogus) should fail")
	}
}

// ---------------------------------------------------------------------------
// BytecodeBuilder tests
// ---------------------------------------------------------------------------

func TestBytecodeBuilderOperands(t *testing.T) {
	b := NewBytecodeBuilder()
	b.Emit(OpNOP)
	b.EmitByte(OpPushTemp, 3)
	b.EmitInt8(OpPushInt8, -1)
	b.EmitUint16(OpPushField, 0x0102)
	b.EmitWithCount(OpSend, 0x0304, 2)

	want := []byte{0x00, 0x20, 3, 0x14, 0xFF, 0x21, 0x02, 0x01, 0x30, 0x04, 0x03, 2}
	got := b.Bytes()
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("byte %d = 0x%02X, want 0x%02X", i, got[i], want[i])
		}
	}
	if b.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", b.Len(), len(want))
	}
}

// ---------------------------------------------------------------------------
// Decode / Encode
// ---------------------------------------------------------------------------

func TestDecodeJumpTargetsAreInstructionIndexes(t *testing.T) {
	instrs := []Instruction{
		Ins(OpPushTemp, 0),       // 0
		Ins(OpJumpFalse, 4),      // 1
		Ins(OpPushInt8, 1),       // 2
		Ins(OpReturnTop),         // 3
		Ins(OpPushInt8, -2),      // 4
		Ins(OpReturnTop),         // 5
		Ins(OpJump, 0),           // 6 (backwards)
		Ins(OpSend, 7, 2),        // 7
		Ins(OpCreateArray, 1, 3), // 8
	}
	code, err := Encode(instrs)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(code)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != len(instrs) {
		t.Fatalf("decoded %d instructions, want %d", len(decoded), len(instrs))
	}
	for i := range instrs {
		if decoded[i] != instrs[i] {
			t.Errorf("instruction %d = %+v, want %+v", i, decoded[i], instrs[i])
		}
	}
}

func TestDecodeJumpToEnd(t *testing.T) {
	instrs := []Instruction{Ins(OpJump, 1)}
	code, err := Encode(instrs)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(code)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded[0].A != 1 {
		t.Errorf("jump target = %d, want 1 (end)", decoded[0].A)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		code []byte
	}{
		{"unknown opcode", []byte{0xEE}},
		{"truncated operand", []byte{byte(OpPushField), 0x01}},
		{"mid-instruction jump", []byte{byte(OpJump), 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		if _, err := Decode(tt.code); err == nil {
			t.Errorf("%s: Decode should fail", tt.name)
		}
	}
}

func TestEncodeRangeErrors(t *testing.T) {
	tests := []struct {
		name string
		in   Instruction
	}{
		{"int8 overflow", Ins(OpPushInt8, 200)},
		{"temp overflow", Ins(OpStoreTemp, 256)},
		{"literal overflow", Ins(OpPushLiteral, 0x10000)},
		{"argc overflow", Ins(OpSend, 0, 300)},
		{"jump past end", Ins(OpJump, 5)},
	}
	for _, tt := range tests {
		if _, err := Encode([]Instruction{tt.in}); err == nil {
			t.Errorf("%s: Encode should fail", tt.name)
		}
	}
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

func TestDisassemble(t *testing.T) {
	ct := NewClassTable()
	c := ct.MustDefine("Sample", "")
	foo, _ := c.AddField(&Field{Name: "foo", Type: TypeString})

	m := NewMethod("getFoo", false, nil, TypeString)
	lit := m.AddLiteral(FieldLiteral(foo))
	code, err := Encode([]Instruction{Ins(OpPushSelf), Ins(OpPushField, lit), Ins(OpReturnTop)})
	if err != nil {
		t.Fatal(err)
	}
	m.Bytecode = code
	c.AddMethod(m)

	got := Disassemble(m)
	want := "0000  PUSH_SELF\n0001  PUSH_FIELD Sample.foo\n0002  RETURN_TOP"
	if got != want {
		t.Errorf("Disassemble =\n%s\nwant\n%s", got, want)
	}
}
