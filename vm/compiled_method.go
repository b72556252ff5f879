package vm

import "fmt"

// ---------------------------------------------------------------------------
// CompiledMethod: Bytecode-based or native method implementation
// ---------------------------------------------------------------------------

// Param describes one declared method parameter. Pragma carries free-form
// metadata attached to the parameter; the substitution engine reads its
// binding requests from it.
type Param struct {
	Name   string
	Type   Type
	Pragma string
}

// NativeFunc implements a method in Go. A returned error propagates to the
// caller of Interpreter.Invoke unchanged.
type NativeFunc func(it *Interpreter, receiver Value, args []Value) (Value, error)

// CompiledMethod represents a method: its signature plus either bytecode
// or a native implementation.
type CompiledMethod struct {
	selector string
	class    *Class

	IsStatic bool
	Params   []Param
	Returns  Type

	// NumTemps counts temporaries including parameters, which occupy the
	// first len(Params) slots.
	NumTemps int
	Literals []Literal
	Bytecode []byte

	Native NativeFunc

	Source string
}

// NewMethod creates a bytecode method with the given selector and signature.
// NumTemps is initialised to the parameter count.
func NewMethod(selector string, static bool, params []Param, returns Type) *CompiledMethod {
	return &CompiledMethod{
		selector: selector,
		IsStatic: static,
		Params:   params,
		Returns:  returns,
		NumTemps: len(params),
	}
}

// NewNativeMethod creates a method implemented by fn.
func NewNativeMethod(selector string, static bool, params []Param, returns Type, fn NativeFunc) *CompiledMethod {
	m := NewMethod(selector, static, params, returns)
	m.Native = fn
	return m
}

// Selector returns the method's selector.
func (m *CompiledMethod) Selector() string {
	return m.selector
}

// Class returns the defining class (nil for detached methods).
func (m *CompiledMethod) Class() *Class {
	return m.class
}

// Arity returns the number of declared parameters (not including self).
func (m *CompiledMethod) Arity() int {
	return len(m.Params)
}

// IsNative reports whether the method is implemented in Go.
func (m *CompiledMethod) IsNative() bool {
	return m.Native != nil
}

// ParamTypes returns the declared parameter types in order.
func (m *CompiledMethod) ParamTypes() []Type {
	out := make([]Type, len(m.Params))
	for i, p := range m.Params {
		out[i] = p.Type
	}
	return out
}

// String returns the qualified method name.
func (m *CompiledMethod) String() string {
	if m.class == nil {
		return m.selector
	}
	return m.class.Name + "." + m.selector
}

// Clone returns a detached copy of m sharing no mutable slices with it.
// The copy keeps m's defining class.
func (m *CompiledMethod) Clone() *CompiledMethod {
	c := *m
	c.Params = append([]Param(nil), m.Params...)
	c.Literals = append([]Literal(nil), m.Literals...)
	c.Bytecode = append([]byte(nil), m.Bytecode...)
	return &c
}

// AddLiteral appends a literal unless an equal one is already present, and
// returns its index.
func (m *CompiledMethod) AddLiteral(lit Literal) int {
	for i, existing := range m.Literals {
		if existing.Equal(lit) {
			return i
		}
	}
	m.Literals = append(m.Literals, lit)
	return len(m.Literals) - 1
}

// GetLiteral returns the literal at the given index.
// Panics if index is out of range.
func (m *CompiledMethod) GetLiteral(index int) Literal {
	if index < 0 || index >= len(m.Literals) {
		panic("CompiledMethod.GetLiteral: index out of range")
	}
	return m.Literals[index]
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

// LiteralKind distinguishes entries of a method's constant pool.
type LiteralKind uint8

const (
	LitInt LiteralKind = iota
	LitString
	LitClass
	LitField
	LitMethod
	LitHandle
)

// String returns a human-readable name for LiteralKind.
func (k LiteralKind) String() string {
	switch k {
	case LitInt:
		return "int"
	case LitString:
		return "string"
	case LitClass:
		return "class"
	case LitField:
		return "field"
	case LitMethod:
		return "method"
	case LitHandle:
		return "handle"
	default:
		return fmt.Sprintf("LiteralKind(%d)", k)
	}
}

// HandleKind distinguishes the handles a LitHandle literal creates.
type HandleKind uint8

const (
	HandleSelfCall HandleKind = iota
	HandleGetter
	HandleSetter
)

// String returns a human-readable name for HandleKind.
func (k HandleKind) String() string {
	switch k {
	case HandleSelfCall:
		return "selfcall"
	case HandleGetter:
		return "getter"
	case HandleSetter:
		return "setter"
	default:
		return fmt.Sprintf("HandleKind(%d)", k)
	}
}

// Literal is a constant pool entry. Member references are stored by name so
// that a method body can be serialised; Link resolves them against a class
// table.
type Literal struct {
	Kind   LiteralKind `cbor:"1,keyasint"`
	Int    int64       `cbor:"2,keyasint,omitempty"`
	Str    string      `cbor:"3,keyasint,omitempty"`
	Class  string      `cbor:"4,keyasint,omitempty"`
	Member string      `cbor:"5,keyasint,omitempty"`
	Handle HandleKind  `cbor:"6,keyasint,omitempty"`
	Bound  bool        `cbor:"7,keyasint,omitempty"`
}

// IntLiteral returns an int constant.
func IntLiteral(v int64) Literal { return Literal{Kind: LitInt, Int: v} }

// StringLiteral returns a String constant.
func StringLiteral(s string) Literal { return Literal{Kind: LitString, Str: s} }

// ClassLiteral references a class.
func ClassLiteral(c *Class) Literal { return Literal{Kind: LitClass, Class: c.Name} }

// FieldLiteral references a field.
func FieldLiteral(f *Field) Literal {
	return Literal{Kind: LitField, Class: f.class.Name, Member: f.Name}
}

// MethodLiteral references a method by declaring class and selector.
func MethodLiteral(m *CompiledMethod) Literal {
	return Literal{Kind: LitMethod, Class: m.class.Name, Member: m.selector}
}

// HandleLiteral describes a handle created by MAKE_HANDLE. For bound handles
// the receiver is taken from the operand stack.
func HandleLiteral(kind HandleKind, class *Class, member string, bound bool) Literal {
	return Literal{Kind: LitHandle, Handle: kind, Class: class.Name, Member: member, Bound: bound}
}

// Equal reports whether two literals denote the same constant.
func (l Literal) Equal(other Literal) bool {
	return l == other
}

// String renders the literal for disassembly.
func (l Literal) String() string {
	switch l.Kind {
	case LitInt:
		return fmt.Sprintf("%d", l.Int)
	case LitString:
		return fmt.Sprintf("%q", l.Str)
	case LitClass:
		return l.Class
	case LitField, LitMethod:
		return l.Class + "." + l.Member
	case LitHandle:
		s := fmt.Sprintf("%s(%s.%s)", l.Handle, l.Class, l.Member)
		if l.Bound {
			s += " bound"
		}
		return s
	default:
		return l.Kind.String()
	}
}
