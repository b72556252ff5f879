package subst

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel kinds of configuration error, for use with errors.Is.
var (
	// ErrUnsatisfiable means a required binding has no value at the site:
	// a missing field, an index out of range, no receiver.
	ErrUnsatisfiable = errors.New("unsatisfiable binding")
	// ErrShapeMismatch means a value exists but its type cannot be passed
	// where it is requested.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrMalformedPragma means a parameter's binding request could not be
	// parsed or combines options its strategy does not recognise.
	ErrMalformedPragma = errors.New("malformed binding request")
	// ErrUnusedValue means a chain produces no value where the rewritten
	// access's value is still consumed.
	ErrUnusedValue = errors.New("value required")
)

// ConfigError is a build-time failure to apply a substitution. It names
// the first offending site, chain step and delegate parameter; Step and
// Param are -1 when not applicable.
type ConfigError struct {
	Site   *AccessSite
	Step   int
	Param  int
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	var sb strings.Builder
	if e.Site != nil {
		fmt.Fprintf(&sb, "%s: ", e.Site)
	}
	if e.Step >= 0 {
		fmt.Fprintf(&sb, "step %d: ", e.Step)
	}
	if e.Param >= 0 {
		fmt.Fprintf(&sb, "parameter %d: ", e.Param)
	}
	sb.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&sb, " (%v)", e.Err)
	}
	return sb.String()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// configErr builds a ConfigError without site context; callers fill in
// the site, step and parameter as the error travels outwards.
func configErr(kind error, format string, args ...any) *ConfigError {
	return &ConfigError{Step: -1, Param: -1, Reason: fmt.Sprintf(format, args...), Err: kind}
}

// at returns a copy of e attributed to a site and step.
func (e *ConfigError) at(site *AccessSite, step int) *ConfigError {
	c := *e
	if c.Site == nil {
		c.Site = site
	}
	if c.Step < 0 {
		c.Step = step
	}
	return &c
}
