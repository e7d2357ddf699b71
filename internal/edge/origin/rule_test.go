package origin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRules(t *testing.T) {
	rules := DefaultRules()

	allowed := []string{
		"https://affine.pro",
		"https://app.affine.pro",
		"https://insider.affine.pro",
		"https://affine.fail",
		"https://try-blocksuite.vercel.app",
		"http://localhost:3000",
		"https://localhost:8080",
		"https://blocksuite-git-feat-toeverything.vercel.app",
	}
	for _, o := range allowed {
		assert.True(t, IsAllowed(o, rules), o)
	}

	denied := []string{
		"https://evil.example",
		"http://affine.pro",
		"https://affine.pro.evil.example",
		"http://localhost",
		"https://toeverything.vercel.app",
		"",
		"not an origin",
		"\x00\xff",
	}
	for _, o := range denied {
		assert.False(t, IsAllowed(o, rules), o)
	}
}

func TestIsAllowed_EmptyRuleSet(t *testing.T) {
	assert.False(t, IsAllowed("https://affine.pro", nil))
	assert.False(t, IsAllowed("https://affine.pro", RuleSet{}))
}

func TestIsAllowed_Kinds(t *testing.T) {
	calls := 0
	pred := Predicate(func(v string) bool {
		calls++
		return strings.HasSuffix(v, ".internal.test")
	})

	rules := RuleSet{
		Exact("https://a.test"),
		MustPattern(`^https://b\d\.test$`),
		pred,
	}

	assert.True(t, IsAllowed("https://a.test", rules))
	assert.Equal(t, 0, calls, "first match short-circuits")

	assert.True(t, IsAllowed("https://b7.test", rules))
	assert.True(t, IsAllowed("https://x.internal.test", rules))
	assert.False(t, IsAllowed("https://A.test", rules), "exact is case-sensitive")
	assert.Equal(t, 2, calls)
}

func TestRule_ZeroValuesNeverMatch(t *testing.T) {
	assert.False(t, Rule{kind: KindPattern}.Match("x"))
	assert.False(t, Rule{kind: KindPredicate}.Match("x"))
	assert.False(t, Rule{kind: Kind(42)}.Match("x"))
}

func TestPattern_Invalid(t *testing.T) {
	_, err := Pattern("(")
	require.Error(t, err)
	assert.Panics(t, func() { MustPattern("(") })
}

func TestIsRefererAllowed(t *testing.T) {
	rules := DefaultRules()

	assert.True(t, IsRefererAllowed("https://app.affine.pro/workspace/abc?x=1", rules))
	assert.True(t, IsRefererAllowed("https://affine.pro:443/", rules))
	assert.True(t, IsRefererAllowed("http://localhost:5173/", rules))

	for _, ref := range []string{
		"",
		"not a url",
		"/relative",
		"https://evil.example/https://affine.pro",
		"ftp://affine.pro/",
		"https://affine.pro.evil.example/",
		"://",
		"%zz",
	} {
		assert.NotPanics(t, func() {
			assert.False(t, IsRefererAllowed(ref, rules), ref)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "exact", KindExact.String())
	assert.Equal(t, "pattern", KindPattern.String())
	assert.Equal(t, "predicate", KindPredicate.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
