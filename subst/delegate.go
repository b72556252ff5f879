package subst

import (
	"fmt"

	"github.com/chazu/substitute/vm"
)

// Delegate is a chain step that invokes a method whose parameters are bound
// from the call context. Delegates are immutable and may be shared between
// chains and substitutions.
type Delegate struct {
	Method   *vm.CompiledMethod
	Requests []ParameterRequest
}

// To declares a delegate whose binding requests are read from the pragmas
// of m's parameters.
func To(m *vm.CompiledMethod) (*Delegate, error) {
	if err := checkDelegateMethod(m); err != nil {
		return nil, err
	}
	reqs := make([]ParameterRequest, len(m.Params))
	for i, p := range m.Params {
		r, err := ParsePragma(p.Pragma)
		if err != nil {
			if ce, ok := err.(*ConfigError); ok {
				ce.Param = i
				ce.Reason = fmt.Sprintf("delegate %s: %s", m, ce.Reason)
			}
			return nil, err
		}
		reqs[i] = r
	}
	return &Delegate{Method: m, Requests: reqs}, nil
}

// MustTo is like To but panics on error. Intended for setup code.
func MustTo(m *vm.CompiledMethod) *Delegate {
	d, err := To(m)
	if err != nil {
		panic(err)
	}
	return d
}

// ToWith declares a delegate with explicit binding requests, one per
// parameter of m, ignoring any pragmas.
func ToWith(m *vm.CompiledMethod, reqs ...ParameterRequest) (*Delegate, error) {
	if err := checkDelegateMethod(m); err != nil {
		return nil, err
	}
	if len(reqs) != len(m.Params) {
		return nil, configErr(ErrMalformedPragma, "delegate %s takes %d parameters, %d binding requests given", m, len(m.Params), len(reqs))
	}
	for i, r := range reqs {
		if err := r.Validate(); err != nil {
			ce := err.(*ConfigError)
			ce.Param = i
			ce.Reason = fmt.Sprintf("delegate %s: %s", m, ce.Reason)
			return nil, ce
		}
	}
	return &Delegate{Method: m, Requests: append([]ParameterRequest(nil), reqs...)}, nil
}

func checkDelegateMethod(m *vm.CompiledMethod) error {
	if m == nil {
		return configErr(ErrUnsatisfiable, "nil delegate method")
	}
	if m.Class() == nil {
		return configErr(ErrUnsatisfiable, "delegate %s is not declared by a class", m)
	}
	return nil
}

// String names the delegate's method.
func (d *Delegate) String() string {
	return d.Method.String()
}

func (*Delegate) step() {}
