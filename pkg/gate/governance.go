package gate

import "fmt"

// Decision is a governance-class verdict.
type Decision string

const (
	Allow    Decision = "ALLOW"
	Deny     Decision = "DENY"
	Escalate Decision = "ESCALATE"
)

// Valid reports whether d is one of the three verdicts.
func (d Decision) Valid() bool {
	switch d {
	case Allow, Deny, Escalate:
		return true
	default:
		return false
	}
}

// Domain names one governance-class gate.
type Domain string

const (
	DomainPolicy Domain = "policy"
	DomainTenant Domain = "tenant"
	DomainGov    Domain = "gov"
	DomainQuota  Domain = "quota"
	DomainWork   Domain = "work"
	DomainCapReq Domain = "capreq"
)

// CanonicalDomains is the fixed audit order of the six governance domains.
var CanonicalDomains = [...]Domain{DomainPolicy, DomainTenant, DomainGov, DomainQuota, DomainWork, DomainCapReq}

// DomainDecision pairs a domain with its verdict for audit traces.
type DomainDecision struct {
	Domain   Domain   `json:"domain"`
	Decision Decision `json:"decision"`
}

// GovernanceSet holds one verdict per governance domain.
type GovernanceSet struct {
	Policy Decision `json:"policy"`
	Tenant Decision `json:"tenant"`
	Gov    Decision `json:"gov"`
	Quota  Decision `json:"quota"`
	Work   Decision `json:"work"`
	CapReq Decision `json:"capreq"`
}

// AllowAll returns a set where every domain allows.
func AllowAll() GovernanceSet {
	return GovernanceSet{Policy: Allow, Tenant: Allow, Gov: Allow, Quota: Allow, Work: Allow, CapReq: Allow}
}

// Get returns the verdict for d.
func (g GovernanceSet) Get(d Domain) Decision {
	switch d {
	case DomainPolicy:
		return g.Policy
	case DomainTenant:
		return g.Tenant
	case DomainGov:
		return g.Gov
	case DomainQuota:
		return g.Quota
	case DomainWork:
		return g.Work
	case DomainCapReq:
		return g.CapReq
	default:
		return ""
	}
}

// With returns a copy of g with d set to v.
func (g GovernanceSet) With(d Domain, v Decision) GovernanceSet {
	switch d {
	case DomainPolicy:
		g.Policy = v
	case DomainTenant:
		g.Tenant = v
	case DomainGov:
		g.Gov = v
	case DomainQuota:
		g.Quota = v
	case DomainWork:
		g.Work = v
	case DomainCapReq:
		g.CapReq = v
	}
	return g
}

// Ordered returns the six verdicts in canonical order.
func (g GovernanceSet) Ordered() []DomainDecision {
	out := make([]DomainDecision, 0, len(CanonicalDomains))
	for _, d := range CanonicalDomains {
		out = append(out, DomainDecision{Domain: d, Decision: g.Get(d)})
	}
	return out
}

// Contradiction reports whether at least one domain allows while at least
// one other does not.
func (g GovernanceSet) Contradiction() bool {
	var allow, other bool
	for _, d := range CanonicalDomains {
		if g.Get(d) == Allow {
			allow = true
		} else {
			other = true
		}
	}
	return allow && other
}

func (g GovernanceSet) validate() error {
	for _, d := range CanonicalDomains {
		if v := g.Get(d); !v.Valid() {
			return fmt.Errorf("governance.%s: unknown decision %q", d, v)
		}
	}
	return nil
}
