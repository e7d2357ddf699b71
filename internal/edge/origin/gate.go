package origin

import (
	"github.com/valyala/fasthttp"
)

// Policy selects how Origin and Referer combine
type Policy int

const (
	// GateEither admits a request when its Origin or its Referer is allowed
	GateEither Policy = iota
	// GateStrict rejects a request when a present Origin or a present Referer is not allowed
	GateStrict
)

func (p Policy) String() string {
	if p == GateStrict {
		return "strict"
	}
	return "either"
}

// Gate admits or rejects requests by their declared origin
type Gate struct {
	rules  RuleSet
	policy Policy
}

func NewGate(rules RuleSet, policy Policy) *Gate {
	return &Gate{rules: rules, policy: policy}
}

func (g *Gate) Rules() RuleSet {
	return g.rules
}

// Check evaluates raw header values. Empty means the header was absent.
func (g *Gate) Check(origin, referer string) bool {
	switch g.policy {
	case GateStrict:
		if origin != "" && !IsAllowed(origin, g.rules) {
			return false
		}
		if referer != "" && !IsRefererAllowed(referer, g.rules) {
			return false
		}
		return true
	default:
		return IsAllowed(origin, g.rules) || IsRefererAllowed(referer, g.rules)
	}
}

// Admit evaluates the Origin and Referer headers of ctx
func (g *Gate) Admit(ctx *fasthttp.RequestCtx) bool {
	return g.Check(
		string(ctx.Request.Header.Peek(fasthttp.HeaderOrigin)),
		string(ctx.Request.Header.Referer()),
	)
}
