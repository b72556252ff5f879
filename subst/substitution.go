package subst

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/substitute/vm"
)

// Substitution is a registry of rules, each replacing the accesses a
// MemberSelector chooses with a chain. Build applies every rule to a
// class table.
//
// When two rules match the same site the one registered first wins.
type Substitution struct {
	strict  bool
	workers int
	rules   []*Rule
}

// Rule is one registered substitution.
type Rule struct {
	Selector *MemberSelector
	Steps    []Step
	Classes  Matcher // enclosing class names
	Methods  Matcher // enclosing method selectors
}

// Strict returns a substitution that fails the whole build on the first
// site it cannot rewrite.
func Strict() *Substitution {
	return &Substitution{strict: true}
}

// Relaxed returns a substitution that leaves unrewritable sites unchanged
// and reports them in Result.Skipped.
func Relaxed() *Substitution {
	return &Substitution{}
}

// IsStrict reports whether s fails on the first unrewritable site.
func (s *Substitution) IsStrict() bool {
	return s.strict
}

// Workers bounds the number of classes rewritten concurrently. Zero uses
// GOMAXPROCS.
func (s *Substitution) Workers(n int) *Substitution {
	s.workers = n
	return s
}

// Rules returns the registered rules in registration order.
func (s *Substitution) Rules() []*Rule {
	return append([]*Rule(nil), s.rules...)
}

// Member starts a rule for the accesses sel chooses.
func (s *Substitution) Member(sel *MemberSelector) *RuleBuilder {
	return &RuleBuilder{s: s, rule: &Rule{Selector: sel, Classes: Any()}}
}

// RuleBuilder completes a rule started by Substitution.Member.
type RuleBuilder struct {
	s    *Substitution
	rule *Rule
}

// ReplaceWithChain sets the steps that replace each chosen access.
func (b *RuleBuilder) ReplaceWithChain(steps ...Step) *RuleBuilder {
	b.rule.Steps = append([]Step(nil), steps...)
	return b
}

// In restricts the rule to methods of classes whose names match m.
func (b *RuleBuilder) In(m Matcher) *RuleBuilder {
	b.rule.Classes = m
	return b
}

// On registers the rule for enclosing methods whose selectors match m.
func (b *RuleBuilder) On(m Matcher) *Substitution {
	b.rule.Methods = m
	b.s.rules = append(b.s.rules, b.rule)
	return b.s
}

func (s *Substitution) ruleFor(c *vm.Class, m *vm.CompiledMethod, site *AccessSite) (int, *Rule) {
	for i, r := range s.rules {
		if r.Classes.Matches(c.Name) && r.Methods.Matches(m.Selector()) && r.Selector.Matches(site) {
			return i, r
		}
	}
	return -1, nil
}

// ---------------------------------------------------------------------------
// Build
// ---------------------------------------------------------------------------

// RewrittenMethod is one method body produced by Build.
type RewrittenMethod struct {
	Class *vm.Class
	// Original is the body the rewrite started from: the recorded original
	// if the method was rewritten before, otherwise the declared body.
	Original *vm.CompiledMethod
	Method   *vm.CompiledMethod
	Sites    []SiteRewrite
}

// SiteRewrite records which rule rewrote a site.
type SiteRewrite struct {
	Site  *AccessSite
	Rule  int
	Steps int
}

// Result is the output of a successful Build. Nothing in the class table
// changes until Install is called.
type Result struct {
	Methods []*RewrittenMethod
	// Skipped lists the sites a relaxed substitution left unchanged.
	Skipped []*ConfigError
}

// Install defines every rewritten method on its class, recording the body
// it replaces as the original unless one is already recorded.
func (r *Result) Install() {
	for _, rm := range r.Methods {
		if rm.Class.Original(rm.Method.Selector()) == nil {
			rm.Class.SetOriginal(rm.Original)
		}
		rm.Class.AddMethod(rm.Method)
	}
}

// Build applies the substitution to every bytecode method of ct. Methods
// that were rewritten before are rewritten again from their recorded
// originals. Classes are processed concurrently; in strict mode the first
// configuration error cancels the build and no result is returned.
func (s *Substitution) Build(ctx context.Context, ct *vm.ClassTable) (*Result, error) {
	classes := ct.All()
	resolver := NewResolver(ct)

	type classResult struct {
		methods []*RewrittenMethod
		skipped []*ConfigError
	}
	results := make([]classResult, len(classes))

	g, ctx := errgroup.WithContext(ctx)
	workers := s.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)

	for ci, c := range classes {
		ci, c := ci, c
		g.Go(func() error {
			for _, m := range c.Methods() {
				if err := ctx.Err(); err != nil {
					return err
				}
				rm, skipped, err := s.buildMethod(ct, resolver, c, m)
				if err != nil {
					return err
				}
				results[ci].skipped = append(results[ci].skipped, skipped...)
				if rm != nil {
					results[ci].methods = append(results[ci].methods, rm)
				}
			}
			if n := len(results[ci].methods); n > 0 {
				log.Infof("rewrote %d methods of %s", n, c.Name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, cr := range results {
		res.Methods = append(res.Methods, cr.methods...)
		res.Skipped = append(res.Skipped, cr.skipped...)
	}
	return res, nil
}

func (s *Substitution) buildMethod(ct *vm.ClassTable, r *Resolver, c *vm.Class, m *vm.CompiledMethod) (*RewrittenMethod, []*ConfigError, error) {
	if m.IsNative() {
		return nil, nil, nil
	}
	source := m
	if orig := c.Original(m.Selector()); orig != nil {
		source = orig
	}
	sites, err := ScanSites(ct, source)
	if err != nil {
		return nil, nil, err
	}

	var (
		chains  []*Chain
		applied []SiteRewrite
		skipped []*ConfigError
	)
	for _, site := range sites {
		idx, rule := s.ruleFor(c, source, site)
		if rule == nil {
			continue
		}
		chain, err := BuildChain(r, site, rule.Steps)
		if err != nil {
			var ce *ConfigError
			if s.strict || !errors.As(err, &ce) {
				return nil, nil, err
			}
			log.Warningf("skipping %s: %s", site, ce)
			skipped = append(skipped, ce)
			continue
		}
		log.Debugf("%s: rule %d, %d steps", site, idx, len(chain.Steps))
		chains = append(chains, chain)
		applied = append(applied, SiteRewrite{Site: site, Rule: idx, Steps: len(chain.Steps)})
	}
	if len(chains) == 0 {
		return nil, skipped, nil
	}

	rewritten, err := Rewriter{}.Rewrite(source, chains)
	if err != nil {
		return nil, nil, err
	}
	if err := ct.Verify(rewritten); err != nil {
		return nil, nil, fmt.Errorf("rewritten %w", err)
	}
	return &RewrittenMethod{Class: c, Original: source, Method: rewritten, Sites: applied}, skipped, nil
}
