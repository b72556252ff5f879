package subst

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/substitute/asm"
)

var strategiesByName = func() map[string]Strategy {
	m := make(map[string]Strategy, len(strategyNames))
	for s, name := range strategyNames {
		m[name] = Strategy(s)
	}
	return m
}()

// ParsePragma parses a parameter pragma into a binding request.
//
// A pragma is a strategy head optionally followed by keyword options:
//
//	argument: 1 source: enclosingMethod optional: true
//	allArguments includeSelf: true nullIfEmpty: true
//	selfCallHandle bound: false
//	fieldSetterHandle: count declaringType: Counter
//	current
//
// The argument head requires an index; the field heads take an optional
// field name. selfCallHandle is bound unless "bound: false" is given.
func ParsePragma(text string) (ParameterRequest, error) {
	var toks []asm.Token
	for _, tok := range asm.NewLexer(text).Tokens() {
		switch tok.Type {
		case asm.TokenNewline:
			continue
		case asm.TokenError:
			return ParameterRequest{}, pragmaErr(text, "%s at %s", tok.Literal, tok.Pos)
		}
		toks = append(toks, tok)
	}
	if len(toks) == 0 || toks[0].Type == asm.TokenEOF {
		return ParameterRequest{}, pragmaErr(text, "empty pragma")
	}

	head := toks[0]
	if head.Type != asm.TokenIdentifier && head.Type != asm.TokenKeyword {
		return ParameterRequest{}, pragmaErr(text, "expected a strategy, found %s", head)
	}
	strategy, ok := strategiesByName[head.Literal]
	if !ok {
		return ParameterRequest{}, pragmaErr(text, "unknown strategy %s", head.Literal)
	}
	r := ParameterRequest{Strategy: strategy, Bound: strategy == StrategySelfCallHandle}
	rest := toks[1:]

	if head.Type == asm.TokenKeyword {
		if len(rest) == 0 || rest[0].Type == asm.TokenEOF {
			return ParameterRequest{}, pragmaErr(text, "%s: missing value", head.Literal)
		}
		val := rest[0]
		rest = rest[1:]
		switch strategy {
		case StrategyArgument:
			n, err := intValue(val)
			if err != nil {
				return ParameterRequest{}, pragmaErr(text, "argument: %v", err)
			}
			r.Index = n
		case StrategyFieldValue, StrategyFieldGetterHandle, StrategyFieldSetterHandle:
			if val.Type != asm.TokenIdentifier {
				return ParameterRequest{}, pragmaErr(text, "%s: expected a field name, found %s", head.Literal, val)
			}
			r.Name = val.Literal
		default:
			return ParameterRequest{}, pragmaErr(text, "%s takes no value", head.Literal)
		}
	} else if strategy == StrategyArgument {
		return ParameterRequest{}, pragmaErr(text, "argument requires an index")
	}

	seen := make(map[string]bool)
	for len(rest) > 0 && rest[0].Type != asm.TokenEOF {
		key := rest[0]
		if key.Type != asm.TokenKeyword {
			return ParameterRequest{}, pragmaErr(text, "expected an option, found %s", key)
		}
		if seen[key.Literal] {
			return ParameterRequest{}, pragmaErr(text, "duplicate option %s", key.Literal)
		}
		seen[key.Literal] = true
		if !accepts(strategy, key.Literal) {
			return ParameterRequest{}, pragmaErr(text, "%s does not accept option %s", strategy, key.Literal)
		}
		if len(rest) < 2 || rest[1].Type == asm.TokenEOF {
			return ParameterRequest{}, pragmaErr(text, "option %s: missing value", key.Literal)
		}
		if err := r.setOption(key.Literal, rest[1]); err != nil {
			return ParameterRequest{}, pragmaErr(text, "option %s: %v", key.Literal, err)
		}
		rest = rest[2:]
	}

	if err := r.Validate(); err != nil {
		return ParameterRequest{}, err
	}
	return r, nil
}

func accepts(s Strategy, option string) bool {
	for _, o := range recognised[s] {
		if o == option && o != optIndex && o != optName {
			return true
		}
	}
	return false
}

func (r *ParameterRequest) setOption(key string, val asm.Token) error {
	switch key {
	case optSource:
		if val.Type != asm.TokenIdentifier {
			return fmt.Errorf("expected a source, found %s", val)
		}
		switch val.Literal {
		case "substitutedElement":
			r.Source = SubstitutedElement
		case "enclosingMethod":
			r.Source = EnclosingMethod
		default:
			return fmt.Errorf("unknown source %s", val.Literal)
		}
	case optDeclaringType:
		if val.Type != asm.TokenIdentifier || strings.Contains(val.Literal, ".") {
			return fmt.Errorf("expected a class name, found %s", val)
		}
		r.DeclaringType = val.Literal
	default:
		b, err := boolValue(val)
		if err != nil {
			return err
		}
		switch key {
		case optOptional:
			r.Optional = b
		case optBound:
			r.Bound = b
		case optIncludeSelf:
			r.IncludeSelf = b
		case optNullIfEmpty:
			r.NullIfEmpty = b
		}
	}
	return nil
}

func intValue(tok asm.Token) (int, error) {
	if tok.Type != asm.TokenInteger {
		return 0, fmt.Errorf("expected an integer, found %s", tok)
	}
	n, err := strconv.Atoi(tok.Literal)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func boolValue(tok asm.Token) (bool, error) {
	if tok.Type == asm.TokenIdentifier {
		switch tok.Literal {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	}
	return false, fmt.Errorf("expected true or false, found %s", tok)
}

func pragmaErr(text, format string, args ...any) *ConfigError {
	e := configErr(ErrMalformedPragma, format, args...)
	e.Reason = strconv.Quote(text) + ": " + e.Reason
	return e
}
