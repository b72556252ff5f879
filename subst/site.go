package subst

import (
	"fmt"

	"github.com/chazu/substitute/vm"
)

// AccessKind classifies an access site.
type AccessKind uint8

const (
	Read AccessKind = iota
	Write
	Invoke
)

// String returns a human-readable name for AccessKind.
func (k AccessKind) String() string {
	switch k {
	case Read:
		return "read"
	case Write:
		return "write"
	case Invoke:
		return "invoke"
	default:
		return fmt.Sprintf("AccessKind(%d)", k)
	}
}

// AccessSite describes one field or method access inside a method body.
// Sites are created by ScanSites and are not modified afterwards.
type AccessSite struct {
	Kind AccessKind

	// Owner is the class named by the instruction; Declaring is the class
	// that declares the member, Owner or one of its superclasses.
	Owner     *vm.Class
	Declaring *vm.Class

	Field  *vm.Field          // set for Read and Write
	Method *vm.CompiledMethod // set for Invoke

	Static bool

	Enclosing *vm.CompiledMethod
	Index     int // instruction index in the decoded body

	// discarded is set when the access's value is popped straight away by
	// an instruction no jump targets.
	discarded bool

	instr   vm.Instruction
	literal vm.Literal
}

// Member returns the accessed member's name.
func (s *AccessSite) Member() string {
	if s.Field != nil {
		return s.Field.Name
	}
	return s.Method.Selector()
}

// HasReceiver reports whether the access consumes a receiver.
func (s *AccessSite) HasReceiver() bool {
	return !s.Static
}

// ReceiverType returns the static type of the access's receiver.
func (s *AccessSite) ReceiverType() vm.Type {
	return s.Owner.Type()
}

// ResultType returns the type of the value the access leaves on the stack:
// the field type for reads, void for writes, the return type for
// invocations.
func (s *AccessSite) ResultType() vm.Type {
	switch s.Kind {
	case Read:
		return s.Field.Type
	case Write:
		return vm.TypeVoid
	default:
		if s.Method.Returns.IsVoid() {
			return vm.TypeVoid
		}
		return s.Method.Returns
	}
}

// ArgumentTypes returns the types of the operands the access consumes,
// excluding its receiver.
func (s *AccessSite) ArgumentTypes() []vm.Type {
	switch s.Kind {
	case Read:
		return nil
	case Write:
		return []vm.Type{s.Field.Type}
	default:
		return s.Method.ParamTypes()
	}
}

// ValueDiscarded reports whether the value the access produces is popped
// immediately, so a rewrite may leave no value in its place.
func (s *AccessSite) ValueDiscarded() bool {
	return s.discarded
}

// EnclosingClass returns the class declaring the method that contains the
// site.
func (s *AccessSite) EnclosingClass() *vm.Class {
	return s.Enclosing.Class()
}

// String identifies the site for diagnostics, e.g.
// "Sample.run:@2 write Sample.foo".
func (s *AccessSite) String() string {
	return fmt.Sprintf("%s@%d %s %s.%s", s.Enclosing, s.Index, s.Kind, s.Declaring.Name, s.Member())
}

// ScanSites decodes m and returns one site per field access and method
// invocation in instruction order. Delegate invocations inserted by a
// rewrite are not sites.
func ScanSites(ct *vm.ClassTable, m *vm.CompiledMethod) ([]*AccessSite, error) {
	if m.IsNative() {
		return nil, nil
	}
	instrs, err := vm.Decode(m.Bytecode)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}

	targets := make(map[int]bool)
	for _, in := range instrs {
		if in.Op.IsJump() {
			targets[in.A] = true
		}
	}

	var sites []*AccessSite
	for i, in := range instrs {
		var kind AccessKind
		switch in.Op {
		case vm.OpPushField, vm.OpPushStatic:
			kind = Read
		case vm.OpStoreField, vm.OpStoreStatic:
			kind = Write
		case vm.OpSend, vm.OpSendSuper, vm.OpInvokeStatic:
			kind = Invoke
		default:
			continue
		}
		if in.A >= len(m.Literals) {
			return nil, fmt.Errorf("%s: instruction %d references missing literal %d", m, i, in.A)
		}
		lit := m.Literals[in.A]
		owner, err := ct.ResolveClass(lit)
		if err != nil {
			return nil, fmt.Errorf("%s: instruction %d: %w", m, i, err)
		}
		site := &AccessSite{Kind: kind, Owner: owner, Enclosing: m, Index: i, instr: in, literal: lit}

		if kind == Invoke {
			target, err := ct.ResolveMethod(lit)
			if err != nil {
				return nil, fmt.Errorf("%s: instruction %d: %w", m, i, err)
			}
			if in.B != target.Arity() {
				return nil, fmt.Errorf("%s: instruction %d passes %d arguments to %s, which takes %d", m, i, in.B, target, target.Arity())
			}
			site.Method = target
			site.Declaring = target.Class()
			site.Static = in.Op == vm.OpInvokeStatic
		} else {
			f, err := ct.ResolveField(lit)
			if err != nil {
				return nil, fmt.Errorf("%s: instruction %d: %w", m, i, err)
			}
			static := in.Op == vm.OpPushStatic || in.Op == vm.OpStoreStatic
			if static != f.Static {
				return nil, fmt.Errorf("%s: instruction %d: %s used on field %s", m, i, in.Op, f)
			}
			site.Field = f
			site.Declaring = f.Class()
			site.Static = static
		}
		if next := i + 1; next < len(instrs) && instrs[next].Op == vm.OpPOP && !targets[next] {
			site.discarded = !site.ResultType().IsVoid()
		}
		sites = append(sites, site)
	}
	return sites, nil
}
