package plan

import (
	"fmt"
	"strings"

	"github.com/chazu/substitute/asm"
	"github.com/chazu/substitute/subst"
	"github.com/chazu/substitute/vm"
)

// Natives maps native names used by Method.Native to implementations.
type Natives map[string]vm.NativeFunc

// Program is a compiled plan: a populated class table and the substitution
// to apply to it.
type Program struct {
	Classes      *vm.ClassTable
	Substitution *subst.Substitution
	Entry        *vm.CompiledMethod // nil when the plan names no entry
}

// Compile defines the plan's classes in a fresh class table and builds its
// substitution. Classes are defined in file order, so a superclass must
// appear before its subclasses. Native methods are looked up in natives,
// then in Builtins.
func (p *Plan) Compile(natives Natives) (*Program, error) {
	ct := vm.NewClassTable()
	for _, c := range p.Classes {
		if err := defineClass(ct, c); err != nil {
			return nil, err
		}
	}
	var methods []*vm.CompiledMethod
	for _, c := range p.Classes {
		class := ct.Lookup(c.Name)
		for _, m := range c.Methods {
			cm, err := compileMethod(ct, class, m, natives)
			if err != nil {
				return nil, fmt.Errorf("class %s: %w", c.Name, err)
			}
			class.AddMethod(cm)
			methods = append(methods, cm)
		}
	}
	for _, m := range methods {
		if err := ct.Verify(m); err != nil {
			return nil, err
		}
	}

	sub, err := p.substitution(ct)
	if err != nil {
		return nil, err
	}
	prog := &Program{Classes: ct, Substitution: sub}
	if p.Project.Entry != "" {
		prog.Entry, err = lookupMethod(ct, p.Project.Entry)
		if err != nil {
			return nil, fmt.Errorf("entry: %w", err)
		}
		if !prog.Entry.IsStatic {
			return nil, fmt.Errorf("entry %s is not static", prog.Entry)
		}
	}
	log.Debugf("compiled %d classes, %d methods, %d substitutions", len(p.Classes), len(methods), len(p.Substitutions))
	return prog, nil
}

func defineClass(ct *vm.ClassTable, c Class) error {
	if c.Name == "" {
		return fmt.Errorf("class without a name")
	}
	class, err := ct.Define(c.Name, c.Super)
	if err != nil {
		return err
	}
	for _, f := range c.Fields {
		t, err := parseType(ct, f.Type)
		if err != nil {
			return fmt.Errorf("class %s: field %s: %w", c.Name, f.Name, err)
		}
		init, err := initValue(t, f.Init)
		if err != nil {
			return fmt.Errorf("class %s: field %s: %w", c.Name, f.Name, err)
		}
		if _, err := class.AddField(&vm.Field{Name: f.Name, Type: t, Static: f.Static, Final: f.Final, Init: init}); err != nil {
			return err
		}
	}
	return nil
}

func compileMethod(ct *vm.ClassTable, class *vm.Class, m Method, natives Natives) (*vm.CompiledMethod, error) {
	if m.Selector == "" {
		return nil, fmt.Errorf("method without a selector")
	}
	returns := vm.TypeVoid
	if m.Returns != "" {
		t, err := parseType(ct, m.Returns)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", m.Selector, err)
		}
		returns = t
	}
	params := make([]vm.Param, len(m.Params))
	for i, p := range m.Params {
		t, err := parseType(ct, p.Type)
		if err != nil {
			return nil, fmt.Errorf("method %s: param %d: %w", m.Selector, i, err)
		}
		if t.IsVoid() {
			return nil, fmt.Errorf("method %s: param %d cannot be void", m.Selector, i)
		}
		params[i] = vm.Param{Name: p.Name, Type: t, Pragma: p.Pragma}
	}

	switch {
	case m.Native != "" && m.Body != "":
		return nil, fmt.Errorf("method %s: has both a body and a native", m.Selector)
	case m.Native != "":
		fn, ok := natives[m.Native]
		if !ok {
			fn, ok = Builtins[m.Native]
		}
		if !ok {
			return nil, fmt.Errorf("method %s: unknown native %q", m.Selector, m.Native)
		}
		return vm.NewNativeMethod(m.Selector, m.Static, params, returns, fn), nil
	default:
		cm := vm.NewMethod(m.Selector, m.Static, params, returns)
		if err := asm.AssembleMethod(cm, m.Body); err != nil {
			return nil, err
		}
		return cm, nil
	}
}

// parseType checks that a type name denotes void, a primitive or a defined
// class, possibly as an array. An empty name is void.
func parseType(ct *vm.ClassTable, name string) (vm.Type, error) {
	t := vm.Type(name)
	base := t
	for base.IsArray() {
		base = base.Elem()
	}
	switch {
	case base == "" && t != "":
		return "", fmt.Errorf("malformed type %q", name)
	case base.IsVoid() && t.IsArray():
		return "", fmt.Errorf("array of void")
	case base.IsVoid(), base.IsPrimitive():
		return t, nil
	case ct.Lookup(string(base)) == nil:
		return "", fmt.Errorf("unknown type %s", name)
	}
	return t, nil
}

// initValue converts a decoded TOML initialiser to a value of type t.
func initValue(t vm.Type, v any) (vm.Value, error) {
	if v == nil {
		return nil, nil
	}
	var ok bool
	switch t {
	case vm.TypeInt:
		_, ok = v.(int64)
	case vm.TypeBool:
		_, ok = v.(bool)
	case vm.TypeString, vm.TypeObject:
		_, ok = v.(string)
	}
	if !ok {
		return nil, fmt.Errorf("initial value %v does not fit %s", v, t)
	}
	return v, nil
}

func lookupMethod(ct *vm.ClassTable, ref string) (*vm.CompiledMethod, error) {
	i := strings.IndexByte(ref, '.')
	if i <= 0 || i == len(ref)-1 {
		return nil, fmt.Errorf("expected Class.selector, got %q", ref)
	}
	m, err := ct.ResolveMethod(vm.Literal{Kind: vm.LitMethod, Class: ref[:i], Member: ref[i+1:]})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ---------------------------------------------------------------------------
// Substitutions
// ---------------------------------------------------------------------------

func (p *Plan) substitution(ct *vm.ClassTable) (*subst.Substitution, error) {
	sub := subst.Strict()
	if p.Build.Mode == "relaxed" {
		sub = subst.Relaxed()
	}
	sub.Workers(p.Build.Workers)

	// Delegates are shared by every rule naming them.
	delegates := make(map[string]*subst.Delegate)
	for i, s := range p.Substitutions {
		sel, err := s.selector()
		if err != nil {
			return nil, fmt.Errorf("substitution %d: %w", i, err)
		}
		for _, glob := range []string{s.In, s.On} {
			if err := subst.ValidGlob(glob); err != nil {
				return nil, fmt.Errorf("substitution %d: pattern %q: %w", i, glob, err)
			}
		}
		if len(s.Chain) == 0 {
			return nil, fmt.Errorf("substitution %d: empty chain", i)
		}
		steps := make([]subst.Step, len(s.Chain))
		for j, ref := range s.Chain {
			if ref == "original" {
				steps[j] = subst.Original()
				continue
			}
			d, ok := delegates[ref]
			if !ok {
				m, err := lookupMethod(ct, ref)
				if err != nil {
					return nil, fmt.Errorf("substitution %d: step %d: %w", i, j, err)
				}
				if d, err = subst.To(m); err != nil {
					return nil, fmt.Errorf("substitution %d: step %d: %w", i, j, err)
				}
				delegates[ref] = d
			}
			steps[j] = d
		}
		sub.Member(sel).ReplaceWithChain(steps...).In(subst.NameMatches(s.In)).On(subst.NameMatches(s.On))
	}
	return sub, nil
}

func (s Substitution) selector() (*subst.MemberSelector, error) {
	var sel *subst.MemberSelector
	switch {
	case s.Field != "" && s.Method != "":
		return nil, fmt.Errorf("both field and method given")
	case s.Field != "":
		if err := subst.ValidGlob(s.Field); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", s.Field, err)
		}
		sel = subst.Field(subst.NameMatches(s.Field))
		switch s.Access {
		case "":
		case "read":
			sel = sel.OnRead()
		case "write":
			sel = sel.OnWrite()
		default:
			return nil, fmt.Errorf("access %q: want read or write", s.Access)
		}
	case s.Method != "":
		if err := subst.ValidGlob(s.Method); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", s.Method, err)
		}
		if s.Access != "" {
			return nil, fmt.Errorf("access applies to fields only")
		}
		sel = subst.Method(subst.NameMatches(s.Method))
	default:
		return nil, fmt.Errorf("neither field nor method given")
	}
	if s.DeclaredBy != "" {
		if err := subst.ValidGlob(s.DeclaredBy); err != nil {
			return nil, fmt.Errorf("pattern %q: %w", s.DeclaredBy, err)
		}
		sel = sel.DeclaredBy(subst.NameMatches(s.DeclaredBy))
	}
	return sel, nil
}
