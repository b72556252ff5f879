package vm

import "strings"

// ---------------------------------------------------------------------------
// Type: static type descriptors
// ---------------------------------------------------------------------------

// Type names a static type. Primitive types are lower case, reference types
// are class names, and array types carry a "[]" suffix per dimension.
type Type string

// Well-known types.
const (
	TypeVoid   Type = "void"
	TypeInt    Type = "int"
	TypeBool   Type = "bool"
	TypeObject Type = "Object"
	TypeString Type = "String"
	TypeHandle Type = "Handle"
)

// ArrayOf returns the array type whose components are t.
func ArrayOf(t Type) Type {
	return t + "[]"
}

// IsVoid reports whether t is the void type (or unset).
func (t Type) IsVoid() bool {
	return t == TypeVoid || t == ""
}

// IsPrimitive reports whether values of t are not references.
func (t Type) IsPrimitive() bool {
	return t == TypeInt || t == TypeBool
}

// IsReference reports whether t can hold nil.
func (t Type) IsReference() bool {
	return !t.IsVoid() && !t.IsPrimitive()
}

// IsArray reports whether t is an array type.
func (t Type) IsArray() bool {
	return strings.HasSuffix(string(t), "[]")
}

// Elem returns the component type of an array type, or "" otherwise.
func (t Type) Elem() Type {
	if !t.IsArray() {
		return ""
	}
	return t[:len(t)-2]
}

// Zero returns the neutral default value of t: 0 for int, false for bool,
// nil for references and void.
func (t Type) Zero() Value {
	switch t {
	case TypeInt:
		return int64(0)
	case TypeBool:
		return false
	default:
		return nil
	}
}

// String implements the Stringer interface.
func (t Type) String() string {
	if t == "" {
		return string(TypeVoid)
	}
	return string(t)
}

// ---------------------------------------------------------------------------
// Assignability
// ---------------------------------------------------------------------------

// Assignable reports whether a value of static type from can be passed where
// to is declared, without a run-time check.
func (ct *ClassTable) Assignable(from, to Type) bool {
	if from.IsVoid() || to.IsVoid() {
		return false
	}
	if from == to {
		return true
	}
	if from.IsPrimitive() || to.IsPrimitive() {
		return false
	}
	if to == TypeObject {
		return true
	}
	if from.IsArray() || to.IsArray() {
		if !from.IsArray() || !to.IsArray() {
			return false
		}
		fe, te := from.Elem(), to.Elem()
		if fe.IsPrimitive() || te.IsPrimitive() {
			return fe == te
		}
		return ct.Assignable(fe, te)
	}
	src := ct.Lookup(string(from))
	dst := ct.Lookup(string(to))
	if src == nil || dst == nil {
		return false
	}
	return src.IsSubclassOf(dst)
}

// TypeOf returns the run-time type of a value.
func (ct *ClassTable) TypeOf(v Value) Type {
	switch x := v.(type) {
	case nil:
		return TypeObject
	case int64:
		return TypeInt
	case bool:
		return TypeBool
	case string:
		return TypeString
	case *Handle:
		return TypeHandle
	case *Array:
		return x.Type
	case *Object:
		return Type(x.class.Name)
	default:
		return TypeObject
	}
}
