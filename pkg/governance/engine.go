// Package governance derives the six governance-class decisions for a turn
// from CEL rules.
//
// The engine is fail-closed: a domain with no rule, a rule that fails to
// evaluate, or a rule that yields a non-boolean is reported as Deny.
package governance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/turnkernel/pkg/canonical"
	"github.com/Mindburn-Labs/turnkernel/pkg/gate"
)

// Rule is the policy for one governance domain. Allow is required. Escalate
// is consulted only when Allow is false.
type Rule struct {
	Domain   gate.Domain `json:"domain" yaml:"domain"`
	Allow    string      `json:"allow" yaml:"allow"`
	Escalate string      `json:"escalate,omitempty" yaml:"escalate,omitempty"`
}

// Policy is a full rule set, at most one rule per domain.
type Policy struct {
	Rules []Rule `json:"rules" yaml:"rules"`
}

// DefaultPolicy allows ordinary turns, requires a tenant, a quota slot and an
// identified user for side-effecting intents.
func DefaultPolicy() Policy {
	return Policy{Rules: []Rule{
		{Domain: gate.DomainPolicy, Allow: "true"},
		{Domain: gate.DomainTenant, Allow: `turn.tenant_id != ""`},
		{Domain: gate.DomainGov, Allow: "true"},
		{Domain: gate.DomainQuota, Allow: "turn.quota_ok"},
		{Domain: gate.DomainWork, Allow: "true"},
		{
			Domain:   gate.DomainCapReq,
			Allow:    `!turn.side_effecting || turn.user_id != "unknown"`,
			Escalate: "turn.side_effecting",
		},
	}}
}

// Input is the turn view exposed to rules as the `turn` variable.
type Input struct {
	TenantID      string
	UserID        string
	IntentType    string
	SideEffecting bool
	Channel       string
	QuotaOK       bool
	Attributes    map[string]string
}

func (in Input) activation() map[string]any {
	attrs := make(map[string]any, len(in.Attributes))
	for k, v := range in.Attributes {
		attrs[k] = v
	}
	return map[string]any{"turn": map[string]any{
		"tenant_id":      in.TenantID,
		"user_id":        in.UserID,
		"intent_type":    in.IntentType,
		"side_effecting": in.SideEffecting,
		"channel":        in.Channel,
		"quota_ok":       in.QuotaOK,
		"attributes":     attrs,
	}}
}

// Engine evaluates a compiled Policy.
type Engine struct {
	env    *cel.Env
	rules  map[gate.Domain]Rule
	hash   string
	logger *slog.Logger

	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// NewEngine compiles every rule in p. Unknown domains, duplicate domains and
// rules that do not compile are rejected up front.
func NewEngine(p Policy) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("turn", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("governance: create CEL env: %w", err)
	}
	e := &Engine{
		env:      env,
		rules:    make(map[gate.Domain]Rule, len(p.Rules)),
		logger:   slog.Default().With("component", "governance"),
		prgCache: make(map[string]cel.Program),
	}
	known := make(map[gate.Domain]bool, len(gate.CanonicalDomains))
	for _, d := range gate.CanonicalDomains {
		known[d] = true
	}
	for _, r := range p.Rules {
		if !known[r.Domain] {
			return nil, fmt.Errorf("governance: unknown domain %q", r.Domain)
		}
		if _, dup := e.rules[r.Domain]; dup {
			return nil, fmt.Errorf("governance: duplicate rule for %s", r.Domain)
		}
		if r.Allow == "" {
			return nil, fmt.Errorf("governance: %s: allow expression required", r.Domain)
		}
		for _, expr := range []string{r.Allow, r.Escalate} {
			if expr == "" {
				continue
			}
			if _, err := e.program(expr); err != nil {
				return nil, fmt.Errorf("governance: %s: %w", r.Domain, err)
			}
		}
		e.rules[r.Domain] = r
	}
	hash, err := canonical.ID("policy", p)
	if err != nil {
		return nil, fmt.Errorf("governance: policy hash: %w", err)
	}
	e.hash = hash
	return e, nil
}

// PolicyHash returns a content-addressed id of the active rule set.
func (e *Engine) PolicyHash() string { return e.hash }

// Decide evaluates every domain in canonical order.
func (e *Engine) Decide(ctx context.Context, in Input) gate.GovernanceSet {
	act := in.activation()
	var out gate.GovernanceSet
	for _, d := range gate.CanonicalDomains {
		out = out.With(d, e.decide(ctx, d, act))
	}
	return out
}

func (e *Engine) decide(ctx context.Context, d gate.Domain, act map[string]any) gate.Decision {
	r, ok := e.rules[d]
	if !ok {
		// FAIL-CLOSED: no rule means deny
		return gate.Deny
	}
	allowed, err := e.eval(r.Allow, act)
	if err != nil {
		e.logger.WarnContext(ctx, "governance rule failed, denying", "domain", d, "error", err)
		return gate.Deny
	}
	if allowed {
		return gate.Allow
	}
	if r.Escalate == "" {
		return gate.Deny
	}
	escalate, err := e.eval(r.Escalate, act)
	if err != nil {
		e.logger.WarnContext(ctx, "governance escalation rule failed, denying", "domain", d, "error", err)
		return gate.Deny
	}
	if escalate {
		return gate.Escalate
	}
	return gate.Deny
}

func (e *Engine) eval(expr string, act map[string]any) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(act)
	if err != nil {
		return false, fmt.Errorf("CEL eval error: %w", err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not boolean")
	}
	return b, nil
}

// program returns the cached program for expr, compiling it on first use.
func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.prgCache[expr]; hit {
		return prg, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program error: %w", err)
	}
	e.prgCache[expr] = prg
	return prg, nil
}
