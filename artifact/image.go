// Package artifact encodes class tables, rewritten bodies and their
// recorded originals included, as content-addressed CBOR images.
package artifact

import (
	"sort"

	"github.com/chazu/substitute/vm"
)

// FormatVersion is the image layout written by Marshal.
const FormatVersion = 1

// Image is a serialisable snapshot of the user classes of a class table.
// Bootstrap classes are not included; Link recreates them.
type Image struct {
	Version uint8   `cbor:"1,keyasint"`
	Project string  `cbor:"2,keyasint,omitempty"`
	Classes []Class `cbor:"3,keyasint"`
}

// Class is the image of one class. Classes appear after their superclass.
type Class struct {
	Name      string   `cbor:"1,keyasint"`
	Super     string   `cbor:"2,keyasint,omitempty"`
	Fields    []Field  `cbor:"3,keyasint,omitempty"`
	Methods   []Method `cbor:"4,keyasint,omitempty"`
	Originals []Method `cbor:"5,keyasint,omitempty"` // sorted by selector
}

// Field is the image of a field declaration.
type Field struct {
	Name   string `cbor:"1,keyasint"`
	Type   string `cbor:"2,keyasint"`
	Static bool   `cbor:"3,keyasint,omitempty"`
	Final  bool   `cbor:"4,keyasint,omitempty"`
	Init   *Value `cbor:"5,keyasint,omitempty"`
}

// Value is a field initialiser. At most one member is set.
type Value struct {
	Int  *int64  `cbor:"1,keyasint,omitempty"`
	Bool *bool   `cbor:"2,keyasint,omitempty"`
	Str  *string `cbor:"3,keyasint,omitempty"`
}

// Method is the image of a method. Native methods carry no body; Link
// takes their implementation from a NativeResolver.
type Method struct {
	Selector string       `cbor:"1,keyasint"`
	Static   bool         `cbor:"2,keyasint,omitempty"`
	Params   []Param      `cbor:"3,keyasint,omitempty"`
	Returns  string       `cbor:"4,keyasint,omitempty"`
	NumTemps int          `cbor:"5,keyasint,omitempty"`
	Literals []vm.Literal `cbor:"6,keyasint,omitempty"`
	Bytecode []byte       `cbor:"7,keyasint,omitempty"`
	Native   bool         `cbor:"8,keyasint,omitempty"`
}

// Param is the image of a method parameter.
type Param struct {
	Name   string `cbor:"1,keyasint,omitempty"`
	Type   string `cbor:"2,keyasint"`
	Pragma string `cbor:"3,keyasint,omitempty"`
}

// bootstrapNames lists the classes every class table starts with.
var bootstrapNames = func() map[string]bool {
	names := make(map[string]bool)
	for _, c := range vm.NewClassTable().All() {
		names[c.Name] = true
	}
	return names
}()

// Snapshot captures the user classes of ct.
func Snapshot(ct *vm.ClassTable, project string) *Image {
	img := &Image{Version: FormatVersion, Project: project}
	for _, c := range ct.All() {
		if bootstrapNames[c.Name] {
			continue
		}
		img.Classes = append(img.Classes, snapshotClass(c))
	}
	return img
}

func snapshotClass(c *vm.Class) Class {
	out := Class{Name: c.Name}
	if c.Superclass != nil && c.Superclass.Name != string(vm.TypeObject) {
		out.Super = c.Superclass.Name
	}
	for _, f := range c.Fields {
		out.Fields = append(out.Fields, Field{
			Name:   f.Name,
			Type:   string(f.Type),
			Static: f.Static,
			Final:  f.Final,
			Init:   snapshotValue(f.Init),
		})
	}
	for _, m := range c.Methods() {
		out.Methods = append(out.Methods, snapshotMethod(m))
	}
	originals := c.Originals()
	sort.Slice(originals, func(i, j int) bool {
		return originals[i].Selector() < originals[j].Selector()
	})
	for _, m := range originals {
		out.Originals = append(out.Originals, snapshotMethod(m))
	}
	return out
}

func snapshotMethod(m *vm.CompiledMethod) Method {
	out := Method{
		Selector: m.Selector(),
		Static:   m.IsStatic,
		Returns:  string(m.Returns),
		Native:   m.IsNative(),
	}
	for _, p := range m.Params {
		out.Params = append(out.Params, Param{Name: p.Name, Type: string(p.Type), Pragma: p.Pragma})
	}
	if !out.Native {
		out.NumTemps = m.NumTemps
		out.Literals = append([]vm.Literal(nil), m.Literals...)
		out.Bytecode = append([]byte(nil), m.Bytecode...)
	}
	return out
}

func snapshotValue(v vm.Value) *Value {
	switch x := v.(type) {
	case int64:
		return &Value{Int: &x}
	case bool:
		return &Value{Bool: &x}
	case string:
		return &Value{Str: &x}
	default:
		return nil
	}
}

func (v *Value) value() vm.Value {
	switch {
	case v == nil:
		return nil
	case v.Int != nil:
		return *v.Int
	case v.Bool != nil:
		return *v.Bool
	case v.Str != nil:
		return *v.Str
	default:
		return nil
	}
}
