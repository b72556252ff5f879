package subst

import "github.com/chazu/substitute/vm"

// Step is one element of a substitution chain: a *Delegate or Original().
type Step interface {
	step()
}

type originalStep struct{}

func (originalStep) step() {}

func (originalStep) String() string { return "original" }

// Original returns the step that performs the substituted access itself,
// with its own receiver and operands. Its value becomes the current value.
func Original() Step {
	return originalStep{}
}

// Chain is a sequence of steps validated against one site.
type Chain struct {
	Site  *AccessSite
	Steps []*ResolvedStep

	// Result is the terminal step's return type.
	Result vm.Type
	// Discards is set when the terminal step returns void at a site whose
	// value is popped; the rewrite drops that pop.
	Discards bool
}

// BuildChain resolves steps in order against site, threading the current
// value type from each step to the next. The first step sees the neutral
// default of the site's result type.
func BuildChain(r *Resolver, site *AccessSite, steps []Step) (*Chain, error) {
	if len(steps) == 0 {
		return nil, configErr(ErrUnsatisfiable, "empty chain").at(site, -1)
	}
	c := &Chain{Site: site}
	current := site.ResultType()
	for i, s := range steps {
		rs, err := r.ResolveStep(s, site, current)
		if err != nil {
			if ce, ok := err.(*ConfigError); ok {
				return nil, ce.at(site, i)
			}
			return nil, err
		}
		c.Steps = append(c.Steps, rs)
		current = rs.Returns
	}
	c.Result = current

	want := site.ResultType()
	last := len(steps) - 1
	switch {
	case want.IsVoid():
	case current.IsVoid():
		if !site.ValueDiscarded() {
			return nil, configErr(ErrUnusedValue, "chain returns void but %s is used", want).at(site, last)
		}
		c.Discards = true
	case !r.Classes.Assignable(current, want):
		return nil, configErr(ErrShapeMismatch, "chain returns %s, not assignable to %s", current, want).at(site, last)
	}
	return c, nil
}
