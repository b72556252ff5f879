package artifact

import (
	"fmt"

	"github.com/chazu/substitute/vm"
)

// NativeResolver supplies the implementation of a native method.
type NativeResolver func(class, selector string) (vm.NativeFunc, bool)

// FromTable resolves natives to the methods of the same name in ct.
func FromTable(ct *vm.ClassTable) NativeResolver {
	return func(class, selector string) (vm.NativeFunc, bool) {
		c := ct.Lookup(class)
		if c == nil {
			return nil, false
		}
		if m := c.Method(selector); m != nil && m.IsNative() {
			return m.Native, true
		}
		if m := c.Original(selector); m != nil && m.IsNative() {
			return m.Native, true
		}
		return nil, false
	}
}

// Link rebuilds a class table from img. Every bytecode body, original
// bodies included, is verified against the rebuilt table.
func Link(img *Image, natives NativeResolver) (*vm.ClassTable, error) {
	ct := vm.NewClassTable()
	for _, c := range img.Classes {
		class, err := ct.Define(c.Name, c.Super)
		if err != nil {
			return nil, err
		}
		for _, f := range c.Fields {
			fld := &vm.Field{Name: f.Name, Type: vm.Type(f.Type), Static: f.Static, Final: f.Final, Init: f.Init.value()}
			if _, err := class.AddField(fld); err != nil {
				return nil, err
			}
		}
	}

	var bodies []*vm.CompiledMethod
	for _, c := range img.Classes {
		class := ct.Lookup(c.Name)
		for _, m := range c.Methods {
			cm, err := linkMethod(class, m, natives)
			if err != nil {
				return nil, err
			}
			class.AddMethod(cm)
			bodies = append(bodies, cm)
		}
		for _, m := range c.Originals {
			cm, err := linkMethod(class, m, natives)
			if err != nil {
				return nil, err
			}
			class.SetOriginal(cm)
			bodies = append(bodies, cm)
		}
	}
	for _, m := range bodies {
		if err := ct.Verify(m); err != nil {
			return nil, fmt.Errorf("artifact: %w", err)
		}
	}
	return ct, nil
}

func linkMethod(class *vm.Class, m Method, natives NativeResolver) (*vm.CompiledMethod, error) {
	params := make([]vm.Param, len(m.Params))
	for i, p := range m.Params {
		params[i] = vm.Param{Name: p.Name, Type: vm.Type(p.Type), Pragma: p.Pragma}
	}
	returns := vm.Type(m.Returns)
	if m.Native {
		var fn vm.NativeFunc
		ok := natives != nil
		if ok {
			fn, ok = natives(class.Name, m.Selector)
		}
		if !ok {
			return nil, fmt.Errorf("artifact: no native for %s.%s", class.Name, m.Selector)
		}
		return vm.NewNativeMethod(m.Selector, m.Static, params, returns, fn), nil
	}
	cm := vm.NewMethod(m.Selector, m.Static, params, returns)
	if m.NumTemps < len(params) {
		return nil, fmt.Errorf("artifact: %s.%s has %d temps for %d params", class.Name, m.Selector, m.NumTemps, len(params))
	}
	cm.NumTemps = m.NumTemps
	cm.Literals = m.Literals
	cm.Bytecode = m.Bytecode
	return cm, nil
}
