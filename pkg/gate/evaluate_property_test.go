//go:build property
// +build property

package gate

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var decisions = [...]Decision{Allow, Deny, Escalate}

// buildSignals maps generated flags onto Signals. b needs 13 entries and d 6.
func buildSignals(b []bool, d []int) Signals {
	s := Signals{
		SessionActive:          b[0],
		UnderstandingConfident: b[1],
		ConfirmationSatisfied:  b[2],
		PromptPolicyAllowed:    b[3],
		AccessAllowed:          b[4],
		BlueprintReady:         b[5],
		SimulationReady:        b[6],
		IdempotencyClear:       b[7],
		LeaseHeld:              b[8],
		ToolRequested:          b[9],
		SimulationRequested:    b[10],
		Governance: GovernanceSet{
			Policy: decisions[d[0]],
			Tenant: decisions[d[1]],
			Gov:    decisions[d[2]],
			Quota:  decisions[d[3]],
			Work:   decisions[d[4]],
			CapReq: decisions[d[5]],
		},
	}
	if !b[11] {
		s.Outcomes = []UtilizationEntry{{EngineID: "e", OutputID: "o", ActionClass: ActionQueueLearn}}
	}
	if !b[12] {
		s.OptionalBudget = OptionalBudget{Requested: 1, EstimatedLatencyMs: 10}
	}
	return s
}

func TestGateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("execution_allowed iff every gate passed", prop.ForAll(
		func(b []bool, d []int) bool {
			s := buildSignals(b, d)
			out, err := Evaluate(Request{Envelope: testEnvelope(), Signals: s})
			if err != nil {
				return false
			}
			all := true
			for _, r := range out.Results {
				all = all && r.Passed
			}
			return all == out.ExecutionAllowed
		},
		gen.SliceOfN(13, gen.Bool()),
		gen.SliceOfN(6, gen.IntRange(0, 2)),
	))

	properties.Property("root cause is the first failure in precedence", prop.ForAll(
		func(b []bool, d []int) bool {
			s := buildSignals(b, d)
			out, err := Evaluate(Request{Envelope: testEnvelope(), Signals: s})
			if err != nil {
				return false
			}
			for _, n := range Precedence {
				if !out.Passed(n) {
					return out.RootCause == n && out.ReasonCode == n.FailureCode()
				}
			}
			return out.RootCause == "" && out.ReasonCode.IsOK()
		},
		gen.SliceOfN(13, gen.Bool()),
		gen.SliceOfN(6, gen.IntRange(0, 2)),
	))

	properties.Property("contradiction iff mixed allow and non-allow", prop.ForAll(
		func(b []bool, d []int) bool {
			s := buildSignals(b, d)
			out, err := Evaluate(Request{Envelope: testEnvelope(), Signals: s})
			if err != nil {
				return false
			}
			var allow, other int
			for _, d := range out.Governance {
				if d.Decision == Allow {
					allow++
				} else {
					other++
				}
			}
			want := allow > 0 && other > 0
			return out.ContradictionDetected == want && (!want || !out.ExecutionAllowed)
		},
		gen.SliceOfN(13, gen.Bool()),
		gen.SliceOfN(6, gen.IntRange(0, 2)),
	))

	properties.Property("dispatch flags are exclusive and narrower than requests", prop.ForAll(
		func(b []bool, d []int) bool {
			s := buildSignals(b, d)
			out, err := Evaluate(Request{Envelope: testEnvelope(), Signals: s})
			if err != nil {
				return false
			}
			if out.ToolDispatchAllowed && out.SimulationDispatchAllowed {
				return false
			}
			if out.ToolDispatchAllowed && (!s.ToolRequested || s.SimulationRequested) {
				return false
			}
			return !out.SimulationDispatchAllowed || (s.SimulationRequested && out.ExecutionAllowed)
		},
		gen.SliceOfN(13, gen.Bool()),
		gen.SliceOfN(6, gen.IntRange(0, 2)),
	))

	properties.TestingRun(t)
}
