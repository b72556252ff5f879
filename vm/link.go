package vm

import "fmt"

// ResolveClass resolves a class literal.
func (ct *ClassTable) ResolveClass(lit Literal) (*Class, error) {
	c := ct.Lookup(lit.Class)
	if c == nil {
		return nil, fmt.Errorf("unknown class %s", lit.Class)
	}
	return c, nil
}

// ResolveField resolves a field literal. The field may be declared by the
// named class or one of its superclasses.
func (ct *ClassTable) ResolveField(lit Literal) (*Field, error) {
	if lit.Kind != LitField {
		return nil, fmt.Errorf("literal %s is a %s, not a field", lit, lit.Kind)
	}
	c, err := ct.ResolveClass(lit)
	if err != nil {
		return nil, err
	}
	f := c.LookupField(lit.Member)
	if f == nil {
		return nil, fmt.Errorf("unknown field %s.%s", lit.Class, lit.Member)
	}
	return f, nil
}

// ResolveMethod resolves a method literal against the named class, walking
// up the superclass chain.
func (ct *ClassTable) ResolveMethod(lit Literal) (*CompiledMethod, error) {
	if lit.Kind != LitMethod {
		return nil, fmt.Errorf("literal %s is a %s, not a method", lit, lit.Kind)
	}
	c, err := ct.ResolveClass(lit)
	if err != nil {
		return nil, err
	}
	m := c.LookupMethod(lit.Member)
	if m == nil {
		return nil, fmt.Errorf("unknown method %s.%s", lit.Class, lit.Member)
	}
	return m, nil
}

// Verify checks that every literal of m resolves and that every instruction
// references a literal of the right kind.
func (ct *ClassTable) Verify(m *CompiledMethod) error {
	if m.IsNative() {
		return nil
	}
	instrs, err := Decode(m.Bytecode)
	if err != nil {
		return fmt.Errorf("%s: %w", m, err)
	}
	for i, in := range instrs {
		want, ok := literalOperand[in.Op]
		if !ok {
			if (in.Op == OpPushTemp || in.Op == OpStoreTemp) && in.A >= m.NumTemps {
				return fmt.Errorf("%s: instruction %d uses temp %d of %d", m, i, in.A, m.NumTemps)
			}
			continue
		}
		if in.A >= len(m.Literals) {
			return fmt.Errorf("%s: instruction %d references missing literal %d", m, i, in.A)
		}
		lit := m.Literals[in.A]
		if !want(lit.Kind) {
			return fmt.Errorf("%s: instruction %d (%s) cannot use %s literal %s", m, i, in.Op, lit.Kind, lit)
		}
		switch lit.Kind {
		case LitField:
			_, err = ct.ResolveField(lit)
		case LitMethod:
			_, err = ct.ResolveMethod(lit)
		case LitClass:
			_, err = ct.ResolveClass(lit)
		}
		if err != nil {
			return fmt.Errorf("%s: instruction %d: %w", m, i, err)
		}
	}
	return nil
}

var literalOperand = map[Opcode]func(LiteralKind) bool{
	OpPushLiteral:    func(k LiteralKind) bool { return k == LitInt || k == LitString },
	OpPushField:      isKind(LitField),
	OpPushStatic:     isKind(LitField),
	OpStoreField:     isKind(LitField),
	OpStoreStatic:    isKind(LitField),
	OpSend:           isKind(LitMethod),
	OpSendSuper:      isKind(LitMethod),
	OpInvokeStatic:   isKind(LitMethod),
	OpInvokeDelegate: isKind(LitMethod),
	OpCreateArray:    isKind(LitString),
	OpNew:            isKind(LitClass),
	OpMakeHandle:     isKind(LitHandle),
}

func isKind(want LiteralKind) func(LiteralKind) bool {
	return func(k LiteralKind) bool { return k == want }
}
