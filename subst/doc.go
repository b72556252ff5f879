// Package subst rewrites member accesses inside method bodies into chains
// of delegate invocations.
//
// A substitution selects field reads, field writes or method invocations
// (an AccessSite each) and replaces every selected access with a Chain:
// an ordered list of Steps. A delegation step calls a Delegate method
// whose parameters are bound, one ParameterRequest each, to values drawn
// from the site: the access's operands, its receiver, the enclosing
// method's parameters and self, handles on fields and on the enclosing
// method's original body, or the value returned by the previous step.
//
// Every binding is resolved when the substitution is built. A request that
// cannot be satisfied is a *ConfigError and, in strict mode, no method is
// rewritten at all. Rewritten code therefore never fails while binding its
// arguments; errors raised by delegate bodies reach the caller unchanged.
//
//	sub := subst.Strict()
//	sub.Member(subst.Field(subst.Named("foo")).OnWrite()).
//		ReplaceWithChain(subst.Original(), delegate).
//		On(subst.Named("run:"))
//	result, err := sub.Build(ctx, classes)
//	if err != nil {
//		return err
//	}
//	result.Install()
package subst
