package subst

import (
	"path"
	"strings"
)

// Matcher selects names: member names, method selectors or class names.
type Matcher interface {
	Matches(name string) bool
}

// MatcherFunc adapts a function to a Matcher.
type MatcherFunc func(name string) bool

// Matches calls f(name).
func (f MatcherFunc) Matches(name string) bool {
	return f(name)
}

// Any matches every name.
func Any() Matcher {
	return MatcherFunc(func(string) bool { return true })
}

// None matches no name.
func None() Matcher {
	return MatcherFunc(func(string) bool { return false })
}

// Named matches exactly one name.
func Named(name string) Matcher {
	return MatcherFunc(func(n string) bool { return n == name })
}

// NameStartsWith matches names with the given prefix.
func NameStartsWith(prefix string) Matcher {
	return MatcherFunc(func(n string) bool { return strings.HasPrefix(n, prefix) })
}

// NameMatches matches names against a shell glob ("get*", "set?:").
// A malformed pattern matches nothing; ValidGlob reports the problem.
func NameMatches(pattern string) Matcher {
	return MatcherFunc(func(n string) bool {
		ok, err := path.Match(pattern, n)
		return err == nil && ok
	})
}

// ValidGlob reports whether pattern is a well-formed NameMatches glob.
func ValidGlob(pattern string) error {
	_, err := path.Match(pattern, "")
	return err
}

// Not inverts a matcher.
func Not(m Matcher) Matcher {
	return MatcherFunc(func(n string) bool { return !m.Matches(n) })
}

// AnyOf matches names accepted by at least one of ms.
func AnyOf(ms ...Matcher) Matcher {
	return MatcherFunc(func(n string) bool {
		for _, m := range ms {
			if m.Matches(n) {
				return true
			}
		}
		return false
	})
}
