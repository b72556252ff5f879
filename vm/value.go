package vm

import (
	"fmt"
	"strings"
)

// Value is any value the interpreter manipulates.
//
// Representation:
//   - nil: the nil reference (also the value of void expressions)
//   - int64: int
//   - bool: bool
//   - string: String
//   - *Object: instance of a user class
//   - *Array: array of values
//   - *Handle: invokable method or field handle
type Value = any

// Array is a fixed-length sequence of values with a static component type.
type Array struct {
	Type  Type
	Elems []Value
}

// NewArray creates an array of the given type holding elems.
func NewArray(t Type, elems []Value) *Array {
	return &Array{Type: t, Elems: elems}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.Elems)
}

// At returns the element at index i.
func (a *Array) At(i int) Value {
	return a.Elems[i]
}

// FormatValue renders a value for diagnostics and CLI output.
func FormatValue(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", x)
	case *Array:
		parts := make([]string, len(x.Elems))
		for i, e := range x.Elems {
			parts[i] = FormatValue(e)
		}
		return "#(" + strings.Join(parts, " ") + ")"
	case *Object:
		return "a " + x.class.Name
	case *Handle:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
