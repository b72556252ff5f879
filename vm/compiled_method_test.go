package vm

import (
	"reflect"
	"testing"
)

// ---------------------------------------------------------------------------
// CompiledMethod creation tests
// ---------------------------------------------------------------------------

func TestNewMethod(t *testing.T) {
	params := []Param{{Name: "key", Type: TypeString}, {Name: "value", Type: TypeInt, Pragma: "current"}}
	m := NewMethod("at:put:", false, params, TypeVoid)

	if m.Selector() != "at:put:" {
		t.Errorf("Selector() = %q, want %q", m.Selector(), "at:put:")
	}
	if m.Arity() != 2 {
		t.Errorf("Arity() = %d, want 2", m.Arity())
	}
	if m.NumTemps != 2 {
		t.Errorf("NumTemps = %d, want 2", m.NumTemps)
	}
	if m.IsNative() {
		t.Error("bytecode method reports native")
	}
	if got := m.ParamTypes(); !reflect.DeepEqual(got, []Type{TypeString, TypeInt}) {
		t.Errorf("ParamTypes() = %v", got)
	}
	if m.Class() != nil {
		t.Error("detached method has a class")
	}
	if m.String() != "at:put:" {
		t.Errorf("String() = %q for a detached method", m.String())
	}
}

func TestCompiledMethodClass(t *testing.T) {
	ct := NewClassTable()
	c := ct.MustDefine("Counter", "")
	m := NewNativeMethod("bump", false, nil, TypeInt, func(*Interpreter, Value, []Value) (Value, error) {
		return int64(1), nil
	})
	c.AddMethod(m)

	if m.Class() != c {
		t.Error("AddMethod did not set the defining class")
	}
	if m.String() != "Counter.bump" {
		t.Errorf("String() = %q, want %q", m.String(), "Counter.bump")
	}
	if !m.IsNative() {
		t.Error("native method does not report native")
	}
}

// ---------------------------------------------------------------------------
// Literal pool tests
// ---------------------------------------------------------------------------

func TestCompiledMethodLiterals(t *testing.T) {
	m := NewMethod("run", false, nil, TypeVoid)

	a := m.AddLiteral(StringLiteral("hello"))
	b := m.AddLiteral(IntLiteral(42))
	c := m.AddLiteral(StringLiteral("hello"))

	if a != 0 || b != 1 {
		t.Errorf("indices = %d, %d, want 0, 1", a, b)
	}
	if c != a {
		t.Errorf("duplicate literal got index %d, want %d", c, a)
	}
	if len(m.Literals) != 2 {
		t.Errorf("len(Literals) = %d, want 2", len(m.Literals))
	}
	if got := m.GetLiteral(1); got.Int != 42 {
		t.Errorf("GetLiteral(1) = %v", got)
	}
}

func TestCompiledMethodLiteralPanic(t *testing.T) {
	m := NewMethod("run", false, nil, TypeVoid)
	defer func() {
		if recover() == nil {
			t.Error("GetLiteral out of range did not panic")
		}
	}()
	m.GetLiteral(0)
}

func TestLiteralString(t *testing.T) {
	ct := NewClassTable()
	c := ct.MustDefine("Point", "")
	f, err := c.AddField(&Field{Name: "x", Type: TypeInt})
	if err != nil {
		t.Fatal(err)
	}
	m := NewMethod("norm", false, nil, TypeInt)
	c.AddMethod(m)

	tests := []struct {
		lit  Literal
		want string
	}{
		{IntLiteral(-7), "-7"},
		{StringLiteral("a b"), `"a b"`},
		{ClassLiteral(c), "Point"},
		{FieldLiteral(f), "Point.x"},
		{MethodLiteral(m), "Point.norm"},
		{HandleLiteral(HandleGetter, c, "x", false), "getter(Point.x)"},
		{HandleLiteral(HandleSelfCall, c, "norm", true), "selfcall(Point.norm) bound"},
	}
	for _, tt := range tests {
		if got := tt.lit.String(); got != tt.want {
			t.Errorf("%s literal String() = %q, want %q", tt.lit.Kind, got, tt.want)
		}
	}
	if FieldLiteral(f).Equal(MethodLiteral(m)) {
		t.Error("field and method literals compare equal")
	}
}

func TestLiteralKindString(t *testing.T) {
	if LitHandle.String() != "handle" {
		t.Errorf("LitHandle.String() = %q", LitHandle.String())
	}
	if got := LiteralKind(99).String(); got != "LiteralKind(99)" {
		t.Errorf("unknown kind = %q", got)
	}
	if got := HandleKind(9).String(); got != "HandleKind(9)" {
		t.Errorf("unknown handle kind = %q", got)
	}
}
