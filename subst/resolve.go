package subst

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/chazu/substitute/vm"
)

// ---------------------------------------------------------------------------
// Emitted code
// ---------------------------------------------------------------------------

// TempKind names the temporaries a binding may read. Slots are assigned by
// the rewriter, so resolved code refers to them symbolically.
type TempKind uint8

const (
	TempParam    TempKind = iota // parameter of the enclosing method
	TempReceiver                 // spilled receiver of the access
	TempOperand                  // spilled operand of the access
	TempCurrent                  // value threaded between chain steps
)

// Temp is a symbolic temporary.
type Temp struct {
	Kind  TempKind
	Index int
}

// Instr is an instruction emitted by a binding. When Lit is set the
// rewriter interns it and uses its index as A; when Temp is set the
// rewriter uses the temporary's slot as A.
type Instr struct {
	Op   vm.Opcode
	A, B int
	Lit  *vm.Literal
	Temp *Temp
}

func op(o vm.Opcode) Instr { return Instr{Op: o} }

func withLit(o vm.Opcode, lit vm.Literal, b int) Instr {
	return Instr{Op: o, Lit: &lit, B: b}
}

func pushTemp(kind TempKind, index int) Instr {
	return Instr{Op: vm.OpPushTemp, Temp: &Temp{Kind: kind, Index: index}}
}

// pushZero pushes the neutral default of t.
func pushZero(t vm.Type) Instr {
	switch t {
	case vm.TypeInt:
		return Instr{Op: vm.OpPushInt8}
	case vm.TypeBool:
		return op(vm.OpPushFalse)
	default:
		return op(vm.OpPushNil)
	}
}

// ---------------------------------------------------------------------------
// Resolution results
// ---------------------------------------------------------------------------

// ResolvedBinding is the outcome of resolving one parameter request at one
// site: code that pushes exactly one value of Type.
type ResolvedBinding struct {
	Param   int
	Request ParameterRequest
	Type    vm.Type
	Emit    []Instr
}

// ResolvedStep is a chain step validated against a site.
type ResolvedStep struct {
	// Delegate is nil for the original access.
	Delegate *Delegate
	// Receiver pushes the delegate's receiver; empty for static delegates
	// and the original access.
	Receiver []Instr
	Bindings []ResolvedBinding
	Returns  vm.Type
}

// IsOriginal reports whether the step re-executes the original access.
func (s *ResolvedStep) IsOriginal() bool {
	return s.Delegate == nil
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

// Resolver validates chain steps against access sites. It reads the class
// table but never modifies it, so one Resolver may serve many goroutines.
type Resolver struct {
	Classes *vm.ClassTable
}

// NewResolver creates a resolver over ct.
func NewResolver(ct *vm.ClassTable) *Resolver {
	return &Resolver{Classes: ct}
}

// ResolveStep resolves every parameter of step at site. current is the
// type of the value threaded from the previous step (void if none).
func (r *Resolver) ResolveStep(step Step, site *AccessSite, current vm.Type) (*ResolvedStep, error) {
	switch s := step.(type) {
	case originalStep:
		return &ResolvedStep{Returns: site.ResultType()}, nil
	case *Delegate:
		return r.resolveDelegate(s, site, current)
	default:
		return nil, configErr(ErrMalformedPragma, "unknown chain step %T", step)
	}
}

func (r *Resolver) resolveDelegate(d *Delegate, site *AccessSite, current vm.Type) (*ResolvedStep, error) {
	m := d.Method
	if len(d.Requests) != len(m.Params) {
		return nil, configErr(ErrMalformedPragma, "delegate %s takes %d parameters, %d binding requests given", m, len(m.Params), len(d.Requests))
	}
	if r.Classes.Lookup(m.Class().Name) != m.Class() {
		return nil, configErr(ErrUnsatisfiable, "delegate %s is declared by a class outside the class table", m)
	}

	rs := &ResolvedStep{Delegate: d, Returns: m.Returns}
	if rs.Returns.IsVoid() {
		rs.Returns = vm.TypeVoid
	}
	if !m.IsStatic {
		if site.Enclosing.IsStatic {
			return nil, configErr(ErrUnsatisfiable, "instance delegate %s used in static method %s", m, site.Enclosing)
		}
		if !site.EnclosingClass().IsSubclassOf(m.Class()) {
			return nil, configErr(ErrShapeMismatch, "instance delegate %s cannot receive a %s", m, site.EnclosingClass().Name)
		}
		rs.Receiver = []Instr{op(vm.OpPushSelf)}
	}

	for i, req := range d.Requests {
		b, err := r.resolveBinding(req, m.Params[i].Type, site, current)
		if err != nil {
			ce := err.(*ConfigError)
			ce.Param = i
			return nil, ce
		}
		b.Param = i
		b.Request = req
		rs.Bindings = append(rs.Bindings, *b)
	}
	log.Debugf("%s: resolved %s with %d bindings", site, m, len(rs.Bindings))
	return rs, nil
}

// resolveBinding is exhaustive over Strategy; every branch either returns
// code pushing one value assignable to param or a *ConfigError.
func (r *Resolver) resolveBinding(req ParameterRequest, param vm.Type, site *AccessSite, current vm.Type) (*ResolvedBinding, error) {
	switch req.Strategy {
	case StrategyArgument:
		return r.bindArgument(req, param, site)
	case StrategyThis:
		return r.bindThis(req, param, site)
	case StrategyAllArguments:
		return r.bindAllArguments(req, param, site)
	case StrategySelfCallHandle:
		return r.bindSelfCall(req, param, site)
	case StrategyFieldValue, StrategyFieldGetterHandle, StrategyFieldSetterHandle:
		return r.bindField(req, param, site)
	case StrategyUnused:
		return &ResolvedBinding{Type: param, Emit: []Instr{pushZero(param)}}, nil
	case StrategyStubValue:
		if param != vm.TypeObject {
			return nil, configErr(ErrShapeMismatch, "stub value needs an Object parameter, not %s", param)
		}
		return &ResolvedBinding{Type: param, Emit: []Instr{pushZero(site.ResultType())}}, nil
	case StrategyCurrent:
		if current.IsVoid() {
			return nil, configErr(ErrUnsatisfiable, "no current value: previous step returns void")
		}
		if err := r.assignable(current, param); err != nil {
			return nil, err
		}
		return &ResolvedBinding{Type: current, Emit: []Instr{pushTemp(TempCurrent, 0)}}, nil
	default:
		return nil, configErr(ErrMalformedPragma, "unknown strategy %s", req.Strategy)
	}
}

func (r *Resolver) assignable(from, to vm.Type) error {
	if !r.Classes.Assignable(from, to) {
		return configErr(ErrShapeMismatch, "%s is not assignable to %s", from, to)
	}
	return nil
}

// operands returns the types of the values the source exposes and the
// code pushing each of them.
func operands(source Source, site *AccessSite) ([]vm.Type, []Instr) {
	if source == EnclosingMethod {
		types := site.Enclosing.ParamTypes()
		pushes := make([]Instr, len(types))
		for i := range types {
			pushes[i] = pushTemp(TempParam, i)
		}
		return types, pushes
	}
	types := site.ArgumentTypes()
	pushes := make([]Instr, len(types))
	for i := range types {
		pushes[i] = pushTemp(TempOperand, i)
	}
	return types, pushes
}

// receiver returns the type of the source's receiver and the code pushing
// it, or ok=false when there is none.
func receiver(source Source, site *AccessSite) (t vm.Type, push Instr, ok bool) {
	if source == EnclosingMethod {
		if site.Enclosing.IsStatic {
			return "", Instr{}, false
		}
		return site.EnclosingClass().Type(), op(vm.OpPushSelf), true
	}
	if !site.HasReceiver() {
		return "", Instr{}, false
	}
	return site.ReceiverType(), pushTemp(TempReceiver, 0), true
}

func (r *Resolver) bindArgument(req ParameterRequest, param vm.Type, site *AccessSite) (*ResolvedBinding, error) {
	types, pushes := operands(req.Source, site)
	if req.Index >= len(types) {
		if req.Optional {
			return &ResolvedBinding{Type: param, Emit: []Instr{pushZero(param)}}, nil
		}
		return nil, configErr(ErrUnsatisfiable, "argument %d of %s out of range (%d available)", req.Index, req.Source, len(types))
	}
	if err := r.assignable(types[req.Index], param); err != nil {
		return nil, err
	}
	return &ResolvedBinding{Type: types[req.Index], Emit: []Instr{pushes[req.Index]}}, nil
}

func (r *Resolver) bindThis(req ParameterRequest, param vm.Type, site *AccessSite) (*ResolvedBinding, error) {
	t, push, ok := receiver(req.Source, site)
	if !ok {
		if req.Optional {
			return &ResolvedBinding{Type: param, Emit: []Instr{pushZero(param)}}, nil
		}
		return nil, configErr(ErrUnsatisfiable, "no receiver in %s", req.Source)
	}
	if err := r.assignable(t, param); err != nil {
		return nil, err
	}
	return &ResolvedBinding{Type: t, Emit: []Instr{push}}, nil
}

func (r *Resolver) bindAllArguments(req ParameterRequest, param vm.Type, site *AccessSite) (*ResolvedBinding, error) {
	if !param.IsArray() {
		return nil, configErr(ErrShapeMismatch, "all arguments need an array parameter, not %s", param)
	}
	elem := param.Elem()

	types, pushes := operands(req.Source, site)
	if req.IncludeSelf {
		if t, push, ok := receiver(req.Source, site); ok {
			types = append([]vm.Type{t}, types...)
			pushes = append([]Instr{push}, pushes...)
		}
	}
	if len(types) == 0 && req.NullIfEmpty {
		return &ResolvedBinding{Type: param, Emit: []Instr{op(vm.OpPushNil)}}, nil
	}
	if len(types) > 0xFF {
		return nil, configErr(ErrUnsatisfiable, "%d arguments exceed the array limit", len(types))
	}
	for i, t := range types {
		if !r.Classes.Assignable(t, elem) {
			return nil, configErr(ErrShapeMismatch, "element %d: %s is not assignable to %s", i, t, elem)
		}
	}
	emit := append(pushes, withLit(vm.OpCreateArray, vm.StringLiteral(string(param)), len(types)))
	return &ResolvedBinding{Type: param, Emit: emit}, nil
}

func (r *Resolver) bindSelfCall(req ParameterRequest, param vm.Type, site *AccessSite) (*ResolvedBinding, error) {
	if err := r.assignable(vm.TypeHandle, param); err != nil {
		return nil, err
	}
	enclosing := site.Enclosing
	if req.Bound && enclosing.IsStatic {
		return nil, configErr(ErrUnsatisfiable, "bound self-call handle in static method %s", enclosing)
	}
	var emit []Instr
	if req.Bound {
		emit = append(emit, op(vm.OpPushSelf))
	}
	lit := vm.HandleLiteral(vm.HandleSelfCall, site.EnclosingClass(), enclosing.Selector(), req.Bound)
	emit = append(emit, withLit(vm.OpMakeHandle, lit, 0))
	return &ResolvedBinding{Type: vm.TypeHandle, Emit: emit}, nil
}

func (r *Resolver) bindField(req ParameterRequest, param vm.Type, site *AccessSite) (*ResolvedBinding, error) {
	f, err := r.lookupField(req, site)
	if err != nil {
		return nil, err
	}
	if !f.Static && site.Enclosing.IsStatic {
		return nil, configErr(ErrUnsatisfiable, "instance field %s accessed from static method %s", f, site.Enclosing)
	}

	if req.Strategy == StrategyFieldValue {
		if err := r.assignable(f.Type, param); err != nil {
			return nil, err
		}
		if f.Static {
			return &ResolvedBinding{Type: f.Type, Emit: []Instr{withLit(vm.OpPushStatic, vm.FieldLiteral(f), 0)}}, nil
		}
		return &ResolvedBinding{Type: f.Type, Emit: []Instr{
			op(vm.OpPushSelf),
			withLit(vm.OpPushField, vm.FieldLiteral(f), 0),
		}}, nil
	}

	if err := r.assignable(vm.TypeHandle, param); err != nil {
		return nil, err
	}
	kind := vm.HandleGetter
	if req.Strategy == StrategyFieldSetterHandle {
		if f.Final {
			return nil, configErr(ErrUnsatisfiable, "field %s is final", f)
		}
		kind = vm.HandleSetter
	}
	var emit []Instr
	if !f.Static {
		emit = append(emit, op(vm.OpPushSelf))
	}
	emit = append(emit, withLit(vm.OpMakeHandle, vm.HandleLiteral(kind, f.Class(), f.Name, !f.Static), 0))
	return &ResolvedBinding{Type: vm.TypeHandle, Emit: emit}, nil
}

// lookupField finds the field a field strategy names. An explicit
// declaring type must be the enclosing class or one of its superclasses;
// without one the search starts at the enclosing class.
func (r *Resolver) lookupField(req ParameterRequest, site *AccessSite) (*vm.Field, error) {
	enclosing := site.EnclosingClass()
	name := req.Name
	if name == "" {
		name = propertyName(site.Enclosing.Selector())
	}
	if name == "" && site.Field != nil {
		name = site.Field.Name
	}
	if name == "" {
		return nil, configErr(ErrUnsatisfiable, "cannot infer a field name from %s", site.Enclosing)
	}

	if req.DeclaringType != "" {
		dc := r.Classes.Lookup(req.DeclaringType)
		if dc == nil {
			return nil, configErr(ErrUnsatisfiable, "unknown class %s", req.DeclaringType)
		}
		if !enclosing.IsSubclassOf(dc) {
			return nil, configErr(ErrUnsatisfiable, "%s is not %s or one of its superclasses", dc.Name, enclosing.Name)
		}
		f := dc.DeclaredField(name)
		if f == nil {
			return nil, configErr(ErrUnsatisfiable, "%s declares no field %s", dc.Name, name)
		}
		return f, nil
	}
	f := enclosing.LookupField(name)
	if f == nil {
		return nil, configErr(ErrUnsatisfiable, "no field %s visible from %s", name, enclosing.Name)
	}
	return f, nil
}

// propertyName derives a field name from an accessor selector:
// getFoo, isFoo and setFoo: all name foo. Other selectors give "".
func propertyName(selector string) string {
	name := strings.TrimSuffix(selector, ":")
	if strings.Contains(name, ":") {
		return ""
	}
	for _, prefix := range []string{"get", "is", "set"} {
		rest, ok := strings.CutPrefix(name, prefix)
		if !ok || rest == "" {
			continue
		}
		first, size := utf8.DecodeRuneInString(rest)
		if !unicode.IsUpper(first) {
			continue
		}
		return string(unicode.ToLower(first)) + rest[size:]
	}
	return ""
}
