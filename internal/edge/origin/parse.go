package origin

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ParseRule converts a configuration string into a Rule:
//
//	"~expr"   case-sensitive regular expression
//	"~*expr"  case-insensitive regular expression
//	"a*b"     wildcard, * matches any run of characters, whole value, case-insensitive
//	other     exact origin
func ParseRule(s string) (Rule, error) {
	switch {
	case s == "":
		return Rule{}, fmt.Errorf("origin rule cannot be empty")
	case strings.HasPrefix(s, "~*"):
		return Pattern("(?i)" + s[2:])
	case strings.HasPrefix(s, "~"):
		return Pattern(s[1:])
	case strings.Contains(s, "*"):
		return PatternOf(compileWildcard(s)), nil
	default:
		return Exact(s), nil
	}
}

// ParseRules converts a list of rule strings. An empty list yields DefaultRules.
// Every invalid entry is reported.
func ParseRules(raw []string) (RuleSet, error) {
	if len(raw) == 0 {
		return DefaultRules(), nil
	}

	rules := make(RuleSet, 0, len(raw))
	var errs []error
	for i, s := range raw {
		r, err := ParseRule(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		rules = append(rules, r)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rules, nil
}

func compileWildcard(s string) *regexp.Regexp {
	parts := strings.Split(s, "*")
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return regexp.MustCompile("(?i)^" + strings.Join(parts, ".*") + "$")
}
