// Package origin decides whether an Origin or Referer header value is
// permitted by an ordered rule set.
//
// Rule kinds:
//
//   - Exact: the value must equal the rule string
//   - Pattern: a regular expression tested against the value (unanchored)
//   - Predicate: an arbitrary func(string) bool
//
// A rule set allows a value when any rule matches. An empty set allows nothing.
package origin

import (
	"fmt"
	"regexp"

	"github.com/toeverything/edge-workers/internal/common/urlutil"
)

// Kind identifies the variant held by a Rule
type Kind int

const (
	KindExact Kind = iota
	KindPattern
	KindPredicate
)

func (k Kind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindPattern:
		return "pattern"
	case KindPredicate:
		return "predicate"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Rule is a single origin rule. Build it with Exact, Pattern or Predicate.
type Rule struct {
	kind  Kind
	exact string
	re    *regexp.Regexp
	pred  func(string) bool
}

func Exact(origin string) Rule {
	return Rule{kind: KindExact, exact: origin}
}

// Pattern compiles expr into a pattern rule
func Pattern(expr string) (Rule, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Rule{}, fmt.Errorf("invalid origin pattern %q: %w", expr, err)
	}
	return Rule{kind: KindPattern, re: re}, nil
}

// MustPattern is Pattern for expressions known at compile time
func MustPattern(expr string) Rule {
	r, err := Pattern(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// PatternOf wraps an already compiled expression
func PatternOf(re *regexp.Regexp) Rule {
	return Rule{kind: KindPattern, re: re}
}

func Predicate(fn func(string) bool) Rule {
	return Rule{kind: KindPredicate, pred: fn}
}

func (r Rule) Kind() Kind {
	return r.kind
}

// Match reports whether value satisfies the rule
func (r Rule) Match(value string) bool {
	switch r.kind {
	case KindExact:
		return value == r.exact
	case KindPattern:
		return r.re != nil && r.re.MatchString(value)
	case KindPredicate:
		return r.pred != nil && r.pred(value)
	default:
		return false
	}
}

func (r Rule) String() string {
	switch r.kind {
	case KindExact:
		return r.exact
	case KindPattern:
		if r.re == nil {
			return "~"
		}
		return "~" + r.re.String()
	default:
		return r.kind.String()
	}
}

// RuleSet is an ordered list of rules evaluated as a logical OR
type RuleSet []Rule

// Allows reports whether any rule matches value
func (rs RuleSet) Allows(value string) bool {
	for _, r := range rs {
		if r.Match(value) {
			return true
		}
	}
	return false
}

// IsAllowed reports whether an Origin header value is permitted
func IsAllowed(value string, rules RuleSet) bool {
	return rules.Allows(value)
}

// IsRefererAllowed extracts the origin of a full referer URL and checks it.
// A referer without a usable origin is never allowed.
func IsRefererAllowed(referer string, rules RuleSet) bool {
	o, ok := urlutil.Origin(referer)
	if !ok {
		return false
	}
	return rules.Allows(o)
}

// DefaultRules returns the built-in production allow list
func DefaultRules() RuleSet {
	return RuleSet{
		Exact("https://affine.pro"),
		Exact("https://app.affine.pro"),
		Exact("https://insider.affine.pro"),
		Exact("https://affine.fail"),
		Exact("https://try-blocksuite.vercel.app"),
		MustPattern(`https?://localhost(:\d+)`),
		MustPattern(`https://.*?-toeverything\.vercel\.app$`),
	}
}
