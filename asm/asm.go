// Package asm assembles and disassembles method bodies in a line-oriented
// text form. The lexer is shared with parameter pragmas.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/substitute/vm"
)

// SyntaxError reports a malformed assembly line.
type SyntaxError struct {
	Pos     Position
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("asm %s: %s", e.Pos, e.Message)
}

// Body is an assembled method body.
type Body struct {
	Bytecode []byte
	Literals []vm.Literal
	// NumTemps is one more than the highest temporary referenced.
	NumTemps int
}

// AssembleMethod assembles src into m, replacing its body. NumTemps never
// drops below the parameter count.
func AssembleMethod(m *vm.CompiledMethod, src string) error {
	body, err := Assemble(src)
	if err != nil {
		return fmt.Errorf("%s: %w", m, err)
	}
	m.Bytecode = body.Bytecode
	m.Literals = body.Literals
	m.NumTemps = max(body.NumTemps, len(m.Params))
	m.Source = src
	return nil
}

// Assemble translates assembly text into a method body.
//
// Each line holds at most one instruction: a lower-case opcode name followed
// by its operands. A line of the form "name:" defines a label that jumps may
// target. Member operands are qualified names (Sample.foo, String.concat:),
// resolved later against a class table. Two pseudo-instructions pick an
// encoding: "push_int N" and "push_string 'text'".
func Assemble(src string) (*Body, error) {
	a := &assembler{labels: make(map[string]int), m: vm.NewMethod("", false, nil, vm.TypeVoid)}
	if err := a.parse(NewLexer(src).Tokens()); err != nil {
		return nil, err
	}
	for i, ref := range a.fixups {
		target, ok := a.labels[ref.Literal]
		if !ok {
			return nil, &SyntaxError{Pos: ref.Pos, Message: fmt.Sprintf("undefined label %s", ref.Literal)}
		}
		a.instrs[i].A = target
	}
	code, err := vm.Encode(a.instrs)
	if err != nil {
		return nil, err
	}
	return &Body{Bytecode: code, Literals: a.m.Literals, NumTemps: a.temps}, nil
}

type assembler struct {
	m      *vm.CompiledMethod // literal pool
	instrs []vm.Instruction
	labels map[string]int
	fixups map[int]Token // instruction index -> label reference
	temps  int
}

func (a *assembler) parse(tokens []Token) error {
	a.fixups = make(map[int]Token)
	for len(tokens) > 0 {
		end := 0
		for end < len(tokens) && tokens[end].Type != TokenNewline && tokens[end].Type != TokenEOF {
			end++
		}
		line := tokens[:end]
		if end < len(tokens) {
			end++
		}
		tokens = tokens[end:]
		if len(line) == 0 {
			continue
		}
		if err := a.line(line); err != nil {
			return err
		}
	}
	return nil
}

func (a *assembler) line(toks []Token) error {
	for _, tok := range toks {
		if tok.Type == TokenError {
			return &SyntaxError{Pos: tok.Pos, Message: tok.Literal}
		}
	}
	head := toks[0]
	if head.Type == TokenKeyword {
		if len(toks) != 1 {
			return &SyntaxError{Pos: toks[1].Pos, Message: fmt.Sprintf("unexpected %s after label", toks[1])}
		}
		if _, dup := a.labels[head.Literal]; dup {
			return &SyntaxError{Pos: head.Pos, Message: fmt.Sprintf("duplicate label %s", head.Literal)}
		}
		a.labels[head.Literal] = len(a.instrs)
		return nil
	}
	if head.Type != TokenIdentifier {
		return &SyntaxError{Pos: head.Pos, Message: fmt.Sprintf("expected instruction, got %s", head)}
	}
	in, err := a.instruction(head, toks[1:])
	if err != nil {
		return err
	}
	a.instrs = append(a.instrs, in)
	return nil
}

// operands checks the operand count and types of an instruction.
func operands(head Token, args []Token, want ...TokenType) error {
	if len(args) != len(want) {
		return &SyntaxError{Pos: head.Pos, Message: fmt.Sprintf("%s takes %d operands, got %d", head.Literal, len(want), len(args))}
	}
	for i, tt := range want {
		if args[i].Type != tt {
			return &SyntaxError{Pos: args[i].Pos, Message: fmt.Sprintf("%s: operand %d must be %s, got %s", head.Literal, i+1, strings.ToLower(tt.String()), args[i])}
		}
	}
	return nil
}

func intOperand(tok Token, lo, hi int) (int, error) {
	n, err := strconv.Atoi(tok.Literal)
	if err != nil || n < lo || n > hi {
		return 0, &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("operand %s out of range %d..%d", tok.Literal, lo, hi)}
	}
	return n, nil
}

// member splits a qualified reference into class and member names.
func member(tok Token) (string, string, error) {
	i := strings.IndexByte(tok.Literal, '.')
	if i <= 0 || i == len(tok.Literal)-1 {
		return "", "", &SyntaxError{Pos: tok.Pos, Message: fmt.Sprintf("expected Class.member, got %s", tok.Literal)}
	}
	return tok.Literal[:i], tok.Literal[i+1:], nil
}

func (a *assembler) instruction(head Token, args []Token) (vm.Instruction, error) {
	switch head.Literal {
	case "push_int":
		if err := operands(head, args, TokenInteger); err != nil {
			return vm.Instruction{}, err
		}
		n, err := strconv.ParseInt(args[0].Literal, 10, 64)
		if err != nil {
			return vm.Instruction{}, &SyntaxError{Pos: args[0].Pos, Message: err.Error()}
		}
		if n >= -128 && n <= 127 {
			return vm.Ins(vm.OpPushInt8, int(n)), nil
		}
		return vm.Ins(vm.OpPushLiteral, a.m.AddLiteral(vm.IntLiteral(n))), nil
	case "push_string":
		if err := operands(head, args, TokenString); err != nil {
			return vm.Instruction{}, err
		}
		return vm.Ins(vm.OpPushLiteral, a.m.AddLiteral(vm.StringLiteral(args[0].Literal))), nil
	}

	op, ok := vm.OpcodeByName(head.Literal)
	if !ok || head.Literal != strings.ToLower(head.Literal) {
		return vm.Instruction{}, &SyntaxError{Pos: head.Pos, Message: fmt.Sprintf("unknown instruction %s", head.Literal)}
	}

	switch op {
	case vm.OpPushInt8:
		if err := operands(head, args, TokenInteger); err != nil {
			return vm.Instruction{}, err
		}
		n, err := intOperand(args[0], -128, 127)
		return vm.Ins(op, n), err

	case vm.OpPushLiteral:
		if len(args) == 1 && args[0].Type == TokenString {
			return vm.Ins(op, a.m.AddLiteral(vm.StringLiteral(args[0].Literal))), nil
		}
		if err := operands(head, args, TokenInteger); err != nil {
			return vm.Instruction{}, err
		}
		n, err := strconv.ParseInt(args[0].Literal, 10, 64)
		if err != nil {
			return vm.Instruction{}, &SyntaxError{Pos: args[0].Pos, Message: err.Error()}
		}
		return vm.Ins(op, a.m.AddLiteral(vm.IntLiteral(n))), nil

	case vm.OpPushTemp, vm.OpStoreTemp:
		if err := operands(head, args, TokenInteger); err != nil {
			return vm.Instruction{}, err
		}
		n, err := intOperand(args[0], 0, 255)
		a.temps = max(a.temps, n+1)
		return vm.Ins(op, n), err

	case vm.OpPushField, vm.OpStoreField, vm.OpPushStatic, vm.OpStoreStatic:
		if err := operands(head, args, TokenIdentifier); err != nil {
			return vm.Instruction{}, err
		}
		class, name, err := member(args[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Ins(op, a.m.AddLiteral(vm.Literal{Kind: vm.LitField, Class: class, Member: name})), nil

	case vm.OpSend, vm.OpSendSuper, vm.OpInvokeStatic, vm.OpInvokeDelegate:
		if err := operands(head, args, TokenIdentifier, TokenInteger); err != nil {
			return vm.Instruction{}, err
		}
		class, sel, err := member(args[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		argc, err := intOperand(args[1], 0, 255)
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Ins(op, a.m.AddLiteral(vm.Literal{Kind: vm.LitMethod, Class: class, Member: sel}), argc), nil

	case vm.OpJump, vm.OpJumpTrue, vm.OpJumpFalse, vm.OpJumpNil:
		if err := operands(head, args, TokenIdentifier); err != nil {
			return vm.Instruction{}, err
		}
		a.fixups[len(a.instrs)] = args[0]
		return vm.Ins(op), nil

	case vm.OpCreateArray:
		if err := operands(head, args, TokenIdentifier, TokenInteger); err != nil {
			return vm.Instruction{}, err
		}
		t := vm.Type(args[0].Literal)
		if !t.IsArray() {
			t = vm.ArrayOf(t)
		}
		size, err := intOperand(args[1], 0, 255)
		return vm.Ins(op, a.m.AddLiteral(vm.StringLiteral(string(t))), size), err

	case vm.OpNew:
		if err := operands(head, args, TokenIdentifier); err != nil {
			return vm.Instruction{}, err
		}
		return vm.Ins(op, a.m.AddLiteral(vm.Literal{Kind: vm.LitClass, Class: args[0].Literal})), nil

	case vm.OpMakeHandle:
		return a.makeHandle(head, args)

	default:
		if err := operands(head, args); err != nil {
			return vm.Instruction{}, err
		}
		return vm.Ins(op), nil
	}
}

var handleKinds = map[string]vm.HandleKind{
	"selfcall": vm.HandleSelfCall,
	"getter":   vm.HandleGetter,
	"setter":   vm.HandleSetter,
}

// makeHandle parses "make_handle kind Class.member [bound]".
func (a *assembler) makeHandle(head Token, args []Token) (vm.Instruction, error) {
	bound := len(args) == 3 && args[2].Type == TokenIdentifier && args[2].Literal == "bound"
	if bound {
		args = args[:2]
	}
	if err := operands(head, args, TokenIdentifier, TokenIdentifier); err != nil {
		return vm.Instruction{}, err
	}
	kind, ok := handleKinds[args[0].Literal]
	if !ok {
		return vm.Instruction{}, &SyntaxError{Pos: args[0].Pos, Message: fmt.Sprintf("unknown handle kind %s", args[0].Literal)}
	}
	class, name, err := member(args[1])
	if err != nil {
		return vm.Instruction{}, err
	}
	lit := vm.Literal{Kind: vm.LitHandle, Handle: kind, Class: class, Member: name, Bound: bound}
	return vm.Ins(vm.OpMakeHandle, a.m.AddLiteral(lit)), nil
}
