package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack Operations
const (
	OpNOP Opcode = 0x00 // no operation
	OpPOP Opcode = 0x01 // discard top of stack
	OpDUP Opcode = 0x02 // duplicate top of stack
)

// Push Constants
const (
	OpPushNil     Opcode = 0x10 // push nil
	OpPushTrue    Opcode = 0x11 // push true
	OpPushFalse   Opcode = 0x12 // push false
	OpPushSelf    Opcode = 0x13 // push self
	OpPushInt8    Opcode = 0x14 // push 8-bit signed integer
	OpPushLiteral Opcode = 0x16 // push int/string literal (16-bit index)
)

// Variable and Field Operations
const (
	OpPushTemp    Opcode = 0x20 // push temporary/argument (8-bit index)
	OpPushField   Opcode = 0x21 // pop receiver, push its field (16-bit field literal)
	OpPushStatic  Opcode = 0x22 // push static field (16-bit field literal)
	OpStoreTemp   Opcode = 0x23 // pop into temporary (8-bit index)
	OpStoreField  Opcode = 0x24 // pop value and receiver, store field (16-bit field literal)
	OpStoreStatic Opcode = 0x25 // pop value into static field (16-bit field literal)
)

// Invocations. Every invocation pops its receiver (unless static) and
// arguments, and pushes a result only when the method returns non-void.
const (
	OpSend           Opcode = 0x30 // virtual send (16-bit method literal, 8-bit argc)
	OpSendSuper      Opcode = 0x31 // send starting at the superclass of the running method's class
	OpInvokeStatic   Opcode = 0x32 // invoke a static method (16-bit method literal, 8-bit argc)
	OpInvokeDelegate Opcode = 0x33 // invoke exactly the referenced method, without dispatch
)

// Control Flow
const (
	OpJump      Opcode = 0x60 // unconditional jump (16-bit offset)
	OpJumpTrue  Opcode = 0x61 // pop, jump if true (16-bit offset)
	OpJumpFalse Opcode = 0x62 // pop, jump if false (16-bit offset)
	OpJumpNil   Opcode = 0x63 // pop, jump if nil (16-bit offset)
)

// Returns
const (
	OpReturnTop  Opcode = 0x70 // return top of stack
	OpReturnSelf Opcode = 0x71 // return self
	OpReturnNil  Opcode = 0x72 // return nil
)

// Object Creation
const (
	OpCreateArray Opcode = 0x90 // create array from stack (16-bit type literal, 8-bit size)
	OpNew         Opcode = 0x91 // push a new instance (16-bit class literal)
	OpMakeHandle  Opcode = 0xA0 // push a handle (16-bit handle literal); bound handles pop their receiver
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpNOP: {"NOP", 0},
	OpPOP: {"POP", 0},
	OpDUP: {"DUP", 0},

	OpPushNil:     {"PUSH_NIL", 0},
	OpPushTrue:    {"PUSH_TRUE", 0},
	OpPushFalse:   {"PUSH_FALSE", 0},
	OpPushSelf:    {"PUSH_SELF", 0},
	OpPushInt8:    {"PUSH_INT8", 1},
	OpPushLiteral: {"PUSH_LITERAL", 2},

	OpPushTemp:    {"PUSH_TEMP", 1},
	OpPushField:   {"PUSH_FIELD", 2},
	OpPushStatic:  {"PUSH_STATIC", 2},
	OpStoreTemp:   {"STORE_TEMP", 1},
	OpStoreField:  {"STORE_FIELD", 2},
	OpStoreStatic: {"STORE_STATIC", 2},

	OpSend:           {"SEND", 3},
	OpSendSuper:      {"SEND_SUPER", 3},
	OpInvokeStatic:   {"INVOKE_STATIC", 3},
	OpInvokeDelegate: {"INVOKE_DELEGATE", 3},

	OpJump:      {"JUMP", 2},
	OpJumpTrue:  {"JUMP_TRUE", 2},
	OpJumpFalse: {"JUMP_FALSE", 2},
	OpJumpNil:   {"JUMP_NIL", 2},

	OpReturnTop:  {"RETURN_TOP", 0},
	OpReturnSelf: {"RETURN_SELF", 0},
	OpReturnNil:  {"RETURN_NIL", 0},

	OpCreateArray: {"CREATE_ARRAY", 3},
	OpNew:         {"NEW", 2},
	OpMakeHandle:  {"MAKE_HANDLE", 2},
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		m[info.Name] = op
	}
	return m
}()

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), OperandBytes: 0}
}

// Valid reports whether op is a known opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeTable[op]
	return ok
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// OpcodeByName returns the opcode with the given upper-case name.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodesByName[strings.ToUpper(name)]
	return op, ok
}

// IsJump reports whether op transfers control to a target offset.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJump, OpJumpTrue, OpJumpFalse, OpJumpNil:
		return true
	}
	return false
}

// IsInvoke reports whether op calls a method.
func (op Opcode) IsInvoke() bool {
	switch op {
	case OpSend, OpSendSuper, OpInvokeStatic, OpInvokeDelegate:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Decoded instructions
// ---------------------------------------------------------------------------

// Instruction is a decoded instruction. For jumps A holds the index of the
// target instruction, not a byte offset, so instruction lists can be spliced
// and re-encoded.
type Instruction struct {
	Op Opcode
	A  int // index, literal, int8 value or jump target
	B  int // argc or array size
}

// Ins is shorthand for building an Instruction.
func Ins(op Opcode, operands ...int) Instruction {
	in := Instruction{Op: op}
	if len(operands) > 0 {
		in.A = operands[0]
	}
	if len(operands) > 1 {
		in.B = operands[1]
	}
	return in
}

// Decode converts bytecode into an instruction list.
func Decode(code []byte) ([]Instruction, error) {
	var (
		out     []Instruction
		offsets []int
		index   = make(map[int]int)
		rawJump = make(map[int]int)
	)
	for pos := 0; pos < len(code); {
		op := Opcode(code[pos])
		if !op.Valid() {
			return nil, fmt.Errorf("decode: unknown opcode 0x%02X at %04d", byte(op), pos)
		}
		n := op.Info().OperandBytes
		if pos+1+n > len(code) {
			return nil, fmt.Errorf("decode: truncated %s at %04d", op, pos)
		}
		operands := code[pos+1 : pos+1+n]
		in := Instruction{Op: op}
		switch n {
		case 1:
			if op == OpPushInt8 {
				in.A = int(int8(operands[0]))
			} else {
				in.A = int(operands[0])
			}
		case 2:
			v := binary.LittleEndian.Uint16(operands)
			if op.IsJump() {
				rawJump[len(out)] = pos + 3 + int(int16(v))
			} else {
				in.A = int(v)
			}
		case 3:
			in.A = int(binary.LittleEndian.Uint16(operands))
			in.B = int(operands[2])
		}
		index[pos] = len(out)
		offsets = append(offsets, pos)
		out = append(out, in)
		pos += 1 + n
	}
	// The end of the code is a valid jump target (falls off into the
	// implicit return).
	index[len(code)] = len(out)
	for i, target := range rawJump {
		ti, ok := index[target]
		if !ok {
			return nil, fmt.Errorf("decode: jump at %04d targets mid-instruction offset %04d", offsets[i], target)
		}
		out[i].A = ti
	}
	return out, nil
}

// Encode converts an instruction list back into bytecode.
func Encode(instrs []Instruction) ([]byte, error) {
	offsets := make([]int, len(instrs)+1)
	pos := 0
	for i, in := range instrs {
		if !in.Op.Valid() {
			return nil, fmt.Errorf("encode: unknown opcode 0x%02X at instruction %d", byte(in.Op), i)
		}
		offsets[i] = pos
		pos += 1 + in.Op.Info().OperandBytes
	}
	offsets[len(instrs)] = pos

	b := NewBytecodeBuilder()
	for i, in := range instrs {
		switch n := in.Op.Info().OperandBytes; n {
		case 0:
			b.Emit(in.Op)
		case 1:
			if in.Op == OpPushInt8 {
				if in.A < -128 || in.A > 127 {
					return nil, fmt.Errorf("encode: %s operand %d out of range", in.Op, in.A)
				}
				b.EmitInt8(in.Op, int8(in.A))
			} else {
				if in.A < 0 || in.A > 0xFF {
					return nil, fmt.Errorf("encode: %s operand %d out of range", in.Op, in.A)
				}
				b.EmitByte(in.Op, byte(in.A))
			}
		case 2:
			if in.Op.IsJump() {
				if in.A < 0 || in.A > len(instrs) {
					return nil, fmt.Errorf("encode: %s at instruction %d targets %d", in.Op, i, in.A)
				}
				rel := offsets[in.A] - (offsets[i] + 3)
				if rel < -32768 || rel > 32767 {
					return nil, fmt.Errorf("encode: jump at instruction %d out of range", i)
				}
				b.EmitUint16(in.Op, uint16(int16(rel)))
			} else {
				if in.A < 0 || in.A > 0xFFFF {
					return nil, fmt.Errorf("encode: %s operand %d out of range", in.Op, in.A)
				}
				b.EmitUint16(in.Op, uint16(in.A))
			}
		case 3:
			if in.A < 0 || in.A > 0xFFFF || in.B < 0 || in.B > 0xFF {
				return nil, fmt.Errorf("encode: %s operands %d,%d out of range", in.Op, in.A, in.B)
			}
			b.EmitWithCount(in.Op, uint16(in.A), uint8(in.B))
		}
	}
	return b.Bytes(), nil
}

// ---------------------------------------------------------------------------
// BytecodeBuilder: Helper for constructing bytecode
// ---------------------------------------------------------------------------

// BytecodeBuilder helps construct bytecode sequences.
type BytecodeBuilder struct {
	bytes []byte
}

// NewBytecodeBuilder creates a new bytecode builder.
func NewBytecodeBuilder() *BytecodeBuilder {
	return &BytecodeBuilder{
		bytes: make([]byte, 0, 64),
	}
}

// Bytes returns the constructed bytecode.
func (b *BytecodeBuilder) Bytes() []byte {
	return b.bytes
}

// Len returns the current length.
func (b *BytecodeBuilder) Len() int {
	return len(b.bytes)
}

// Emit appends an opcode with no operands.
func (b *BytecodeBuilder) Emit(op Opcode) {
	b.bytes = append(b.bytes, byte(op))
}

// EmitByte appends an opcode with a single byte operand.
func (b *BytecodeBuilder) EmitByte(op Opcode, operand byte) {
	b.bytes = append(b.bytes, byte(op), operand)
}

// EmitInt8 appends an opcode with a signed 8-bit operand.
func (b *BytecodeBuilder) EmitInt8(op Opcode, operand int8) {
	b.bytes = append(b.bytes, byte(op), byte(operand))
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *BytecodeBuilder) EmitUint16(op Opcode, operand uint16) {
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// EmitWithCount appends an invocation or CREATE_ARRAY instruction.
func (b *BytecodeBuilder) EmitWithCount(op Opcode, literal uint16, count uint8) {
	b.bytes = append(b.bytes, byte(op), byte(literal), byte(literal>>8), count)
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// Disassemble returns a listing of a bytecode method, one instruction per
// line, with literal operands rendered by name.
func Disassemble(m *CompiledMethod) string {
	if m.IsNative() {
		return "<native>"
	}
	instrs, err := Decode(m.Bytecode)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	lines := make([]string, len(instrs))
	for i, in := range instrs {
		lines[i] = fmt.Sprintf("%04d  %s", i, formatInstruction(m, in))
	}
	return strings.Join(lines, "\n")
}

func formatInstruction(m *CompiledMethod, in Instruction) string {
	name := in.Op.String()
	lit := func(idx int) string {
		if idx < 0 || idx >= len(m.Literals) {
			return fmt.Sprintf("#%d?", idx)
		}
		return m.Literals[idx].String()
	}
	switch in.Op {
	case OpPushInt8, OpPushTemp, OpStoreTemp:
		return fmt.Sprintf("%s %d", name, in.A)
	case OpPushLiteral, OpPushField, OpPushStatic, OpStoreField, OpStoreStatic, OpNew, OpMakeHandle:
		return fmt.Sprintf("%s %s", name, lit(in.A))
	case OpSend, OpSendSuper, OpInvokeStatic, OpInvokeDelegate:
		return fmt.Sprintf("%s %s argc=%d", name, lit(in.A), in.B)
	case OpCreateArray:
		return fmt.Sprintf("%s %s size=%d", name, lit(in.A), in.B)
	case OpJump, OpJumpTrue, OpJumpFalse, OpJumpNil:
		return fmt.Sprintf("%s -> %04d", name, in.A)
	default:
		return name
	}
}
