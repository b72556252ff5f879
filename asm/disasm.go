package asm

import (
	"fmt"
	"strings"

	"github.com/chazu/substitute/vm"
)

// Disassemble renders m as assembly text that Assemble accepts. Jump
// targets become labels named L<index>.
func Disassemble(m *vm.CompiledMethod) (string, error) {
	if m.IsNative() {
		return "", fmt.Errorf("%s is native", m)
	}
	instrs, err := vm.Decode(m.Bytecode)
	if err != nil {
		return "", fmt.Errorf("%s: %w", m, err)
	}

	targets := make(map[int]bool)
	for _, in := range instrs {
		if in.Op.IsJump() {
			targets[in.A] = true
		}
	}

	var sb strings.Builder
	for i, in := range instrs {
		if targets[i] {
			fmt.Fprintf(&sb, "L%d:\n", i)
		}
		line, err := format(m, in)
		if err != nil {
			return "", fmt.Errorf("%s: instruction %d: %w", m, i, err)
		}
		sb.WriteString("    ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	if targets[len(instrs)] {
		fmt.Fprintf(&sb, "L%d:\n", len(instrs))
	}
	return sb.String(), nil
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func format(m *vm.CompiledMethod, in vm.Instruction) (string, error) {
	name := strings.ToLower(in.Op.String())
	lit := func() (vm.Literal, error) {
		if in.A < 0 || in.A >= len(m.Literals) {
			return vm.Literal{}, fmt.Errorf("missing literal %d", in.A)
		}
		return m.Literals[in.A], nil
	}

	switch in.Op {
	case vm.OpPushInt8, vm.OpPushTemp, vm.OpStoreTemp:
		return fmt.Sprintf("%s %d", name, in.A), nil

	case vm.OpJump, vm.OpJumpTrue, vm.OpJumpFalse, vm.OpJumpNil:
		return fmt.Sprintf("%s L%d", name, in.A), nil

	case vm.OpPushLiteral:
		l, err := lit()
		if err != nil {
			return "", err
		}
		if l.Kind == vm.LitString {
			return "push_string " + quote(l.Str), nil
		}
		return fmt.Sprintf("push_literal %d", l.Int), nil

	case vm.OpPushField, vm.OpStoreField, vm.OpPushStatic, vm.OpStoreStatic:
		l, err := lit()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s.%s", name, l.Class, l.Member), nil

	case vm.OpSend, vm.OpSendSuper, vm.OpInvokeStatic, vm.OpInvokeDelegate:
		l, err := lit()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s.%s %d", name, l.Class, l.Member, in.B), nil

	case vm.OpCreateArray:
		l, err := lit()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s %s %d", name, l.Str, in.B), nil

	case vm.OpNew:
		l, err := lit()
		if err != nil {
			return "", err
		}
		return name + " " + l.Class, nil

	case vm.OpMakeHandle:
		l, err := lit()
		if err != nil {
			return "", err
		}
		s := fmt.Sprintf("%s %s %s.%s", name, l.Handle, l.Class, l.Member)
		if l.Bound {
			s += " bound"
		}
		return s, nil

	default:
		return name, nil
	}
}
