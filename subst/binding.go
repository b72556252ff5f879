package subst

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Binding strategies
// ---------------------------------------------------------------------------

// Strategy is the source a delegate parameter's value is bound from.
type Strategy uint8

const (
	StrategyArgument Strategy = iota
	StrategyThis
	StrategyAllArguments
	StrategySelfCallHandle
	StrategyFieldValue
	StrategyFieldGetterHandle
	StrategyFieldSetterHandle
	StrategyUnused
	StrategyStubValue
	StrategyCurrent
)

var strategyNames = [...]string{
	StrategyArgument:          "argument",
	StrategyThis:              "this",
	StrategyAllArguments:      "allArguments",
	StrategySelfCallHandle:    "selfCallHandle",
	StrategyFieldValue:        "fieldValue",
	StrategyFieldGetterHandle: "fieldGetterHandle",
	StrategyFieldSetterHandle: "fieldSetterHandle",
	StrategyUnused:            "unused",
	StrategyStubValue:         "stubValue",
	StrategyCurrent:           "current",
}

// String returns the pragma head naming the strategy.
func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", s)
}

// Source selects whose operands Argument, This and AllArguments read.
type Source uint8

const (
	// SubstitutedElement reads the substituted access's own operands: none
	// for a field read, the assigned value for a write, the arguments of an
	// invocation. Its receiver is the object whose member is accessed.
	SubstitutedElement Source = iota
	// EnclosingMethod reads the parameters and self of the method that
	// contains the access.
	EnclosingMethod
)

// String returns the pragma spelling of the source.
func (s Source) String() string {
	switch s {
	case SubstitutedElement:
		return "substitutedElement"
	case EnclosingMethod:
		return "enclosingMethod"
	default:
		return fmt.Sprintf("Source(%d)", s)
	}
}

// ---------------------------------------------------------------------------
// ParameterRequest
// ---------------------------------------------------------------------------

// ParameterRequest asks for one delegate parameter to be bound with a
// strategy. Options a strategy does not recognise must be left at their
// zero value; Validate rejects them.
type ParameterRequest struct {
	Strategy Strategy

	Index    int    // Argument
	Source   Source // Argument, This, AllArguments
	Optional bool   // Argument, This

	Name          string // field strategies; empty infers the name
	DeclaringType string // field strategies

	Bound bool // SelfCallHandle

	IncludeSelf bool // AllArguments
	NullIfEmpty bool // AllArguments
}

// BindArgument requests operand index of the selected source.
func BindArgument(index int) ParameterRequest {
	return ParameterRequest{Strategy: StrategyArgument, Index: index}
}

// BindThis requests the receiver of the selected source.
func BindThis() ParameterRequest {
	return ParameterRequest{Strategy: StrategyThis}
}

// BindAllArguments requests an array of every operand of the selected
// source.
func BindAllArguments() ParameterRequest {
	return ParameterRequest{Strategy: StrategyAllArguments}
}

// BindSelfCallHandle requests a handle on the enclosing method's original
// body. A bound handle carries the enclosing self.
func BindSelfCallHandle(bound bool) ParameterRequest {
	return ParameterRequest{Strategy: StrategySelfCallHandle, Bound: bound}
}

// BindFieldValue requests the current value of a field. An empty name is
// inferred from the site.
func BindFieldValue(name string) ParameterRequest {
	return ParameterRequest{Strategy: StrategyFieldValue, Name: name}
}

// BindFieldGetter requests a zero-argument handle reading a field.
func BindFieldGetter(name string) ParameterRequest {
	return ParameterRequest{Strategy: StrategyFieldGetterHandle, Name: name}
}

// BindFieldSetter requests a one-argument handle writing a field.
func BindFieldSetter(name string) ParameterRequest {
	return ParameterRequest{Strategy: StrategyFieldSetterHandle, Name: name}
}

// BindUnused binds the parameter's neutral default.
func BindUnused() ParameterRequest {
	return ParameterRequest{Strategy: StrategyUnused}
}

// BindStubValue binds the neutral default of the site's result type.
func BindStubValue() ParameterRequest {
	return ParameterRequest{Strategy: StrategyStubValue}
}

// BindCurrent binds the value threaded from the previous chain step.
func BindCurrent() ParameterRequest {
	return ParameterRequest{Strategy: StrategyCurrent}
}

// From returns a copy of r reading from source.
func (r ParameterRequest) From(source Source) ParameterRequest {
	r.Source = source
	return r
}

// AsOptional returns a copy of r that falls back to a neutral default.
func (r ParameterRequest) AsOptional() ParameterRequest {
	r.Optional = true
	return r
}

// In returns a copy of r that looks its field up on the named class.
func (r ParameterRequest) In(declaringType string) ParameterRequest {
	r.DeclaringType = declaringType
	return r
}

// WithSelf returns a copy of r that prepends the receiver.
func (r ParameterRequest) WithSelf() ParameterRequest {
	r.IncludeSelf = true
	return r
}

// NilIfEmpty returns a copy of r that binds nil instead of an empty array.
func (r ParameterRequest) NilIfEmpty() ParameterRequest {
	r.NullIfEmpty = true
	return r
}

// option names, as spelled in pragmas.
const (
	optIndex         = "index"
	optSource        = "source"
	optOptional      = "optional"
	optName          = "name"
	optDeclaringType = "declaringType"
	optBound         = "bound"
	optIncludeSelf   = "includeSelf"
	optNullIfEmpty   = "nullIfEmpty"
)

// recognised lists the options each strategy accepts.
var recognised = map[Strategy][]string{
	StrategyArgument:          {optIndex, optSource, optOptional},
	StrategyThis:              {optSource, optOptional},
	StrategyAllArguments:      {optSource, optIncludeSelf, optNullIfEmpty},
	StrategySelfCallHandle:    {optBound},
	StrategyFieldValue:        {optName, optDeclaringType},
	StrategyFieldGetterHandle: {optName, optDeclaringType},
	StrategyFieldSetterHandle: {optName, optDeclaringType},
	StrategyUnused:            nil,
	StrategyStubValue:         nil,
	StrategyCurrent:           nil,
}

// set returns the options that differ from their zero value.
func (r ParameterRequest) set() []string {
	var out []string
	if r.Index != 0 {
		out = append(out, optIndex)
	}
	if r.Source != SubstitutedElement {
		out = append(out, optSource)
	}
	if r.Optional {
		out = append(out, optOptional)
	}
	if r.Name != "" {
		out = append(out, optName)
	}
	if r.DeclaringType != "" {
		out = append(out, optDeclaringType)
	}
	if r.Bound {
		out = append(out, optBound)
	}
	if r.IncludeSelf {
		out = append(out, optIncludeSelf)
	}
	if r.NullIfEmpty {
		out = append(out, optNullIfEmpty)
	}
	return out
}

// Validate rejects unknown strategies, options the strategy does not
// recognise and out-of-range values.
func (r ParameterRequest) Validate() error {
	allowed, ok := recognised[r.Strategy]
	if !ok {
		return configErr(ErrMalformedPragma, "unknown strategy %d", r.Strategy)
	}
	for _, opt := range r.set() {
		found := false
		for _, a := range allowed {
			if a == opt {
				found = true
				break
			}
		}
		if !found {
			return configErr(ErrMalformedPragma, "%s does not accept option %s", r.Strategy, opt)
		}
	}
	if r.Index < 0 {
		return configErr(ErrMalformedPragma, "negative argument index %d", r.Index)
	}
	if r.Source > EnclosingMethod {
		return configErr(ErrMalformedPragma, "unknown source %d", r.Source)
	}
	return nil
}

// String renders r in pragma syntax; ParsePragma accepts the result.
func (r ParameterRequest) String() string {
	var sb strings.Builder
	sb.WriteString(r.Strategy.String())
	switch r.Strategy {
	case StrategyArgument:
		fmt.Fprintf(&sb, ": %d", r.Index)
	case StrategyFieldValue, StrategyFieldGetterHandle, StrategyFieldSetterHandle:
		if r.Name != "" {
			fmt.Fprintf(&sb, ": %s", r.Name)
		}
	}
	if r.Source != SubstitutedElement {
		fmt.Fprintf(&sb, " source: %s", r.Source)
	}
	if r.Optional {
		sb.WriteString(" optional: true")
	}
	if r.DeclaringType != "" {
		fmt.Fprintf(&sb, " declaringType: %s", r.DeclaringType)
	}
	if r.Strategy == StrategySelfCallHandle {
		fmt.Fprintf(&sb, " bound: %t", r.Bound)
	}
	if r.IncludeSelf {
		sb.WriteString(" includeSelf: true")
	}
	if r.NullIfEmpty {
		sb.WriteString(" nullIfEmpty: true")
	}
	return sb.String()
}
