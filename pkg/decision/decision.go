// Package decision resolves exactly one next move per turn from the gate
// outcome and the turn's requested moves.
//
// Checks run in a fixed order: envelope, clarify-owner precedence,
// one-turn-one-move, moves against the gate outcome, gate precedence,
// requested-move priority.
package decision

import (
	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/gate"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
)

// Moves are the per-turn requested-move flags. At most one may be set.
type Moves struct {
	Chat       bool `json:"chat"`
	Clarify    bool `json:"clarify"`
	Confirm    bool `json:"confirm"`
	Explain    bool `json:"explain"`
	Wait       bool `json:"wait"`
	Tool       bool `json:"tool"`
	Simulation bool `json:"simulation"`
}

// Count returns how many flags are set.
func (m Moves) Count() int {
	n := 0
	for _, b := range [...]bool{m.Chat, m.Clarify, m.Confirm, m.Explain, m.Wait, m.Tool, m.Simulation} {
		if b {
			n++
		}
	}
	return n
}

// Request is the decision capability input.
type Request struct {
	Envelope     contracts.Envelope `json:"envelope"`
	Gates        *gate.Outcome      `json:"gates"`
	Moves        Moves              `json:"moves"`
	ClarifyOwner string             `json:"clarify_owner,omitempty"`
}

// Assertions are the audit guarantees of a well-formed outcome.
type Assertions struct {
	Deterministic         bool `json:"deterministic"`
	NoAutonomousExecution bool `json:"no_autonomous_execution"`
	Auditable             bool `json:"auditable"`
}

func holds() Assertions {
	return Assertions{Deterministic: true, NoAutonomousExecution: true, Auditable: true}
}

// Outcome is the resolved next move.
type Outcome struct {
	NextMove         contracts.Move  `json:"next_move"`
	FailClosed       bool            `json:"fail_closed"`
	DispatchAllowed  bool            `json:"dispatch_allowed"`
	ExecutionAllowed bool            `json:"execution_allowed"`
	ReasonCode       reasoncode.Code `json:"reason_code"`
	RootCause        gate.Name       `json:"root_cause,omitempty"`
	Assertions       Assertions      `json:"assertions"`
}

// Compute resolves the next move for req.
//
// Turn-shape violations are returned as *contracts.Refusal. A dispatch move
// whose dispatch flag is not set by the gate outcome is an internal pipeline
// error, because it means the two stages disagree about the contract.
func Compute(req Request) (*Outcome, error) {
	// 1. Structure
	if r := req.Envelope.Check(contracts.CapabilityDecision); r != nil {
		return nil, r
	}

	// 2. Clarify-owner precedence
	if req.Moves.Clarify && req.ClarifyOwner != contracts.ClarifyEngineID {
		return nil, contracts.Refuse(contracts.CapabilityDecision, reasoncode.TurnClarifyOwnerPrecedence,
			"clarify owner %q is not %s", req.ClarifyOwner, contracts.ClarifyEngineID)
	}
	if !req.Moves.Clarify && req.ClarifyOwner != "" {
		return nil, contracts.Refuse(contracts.CapabilityDecision, reasoncode.TurnClarifyOwnerPrecedence,
			"clarify owner set without a clarify request")
	}

	// 3. One turn, one move
	if n := req.Moves.Count(); n > 1 {
		return nil, contracts.Refuse(contracts.CapabilityDecision, reasoncode.TurnOneTurnOneMove,
			"%d moves requested", n)
	}

	// 4. Moves against the gate outcome
	if err := validate(req); err != nil {
		return nil, contracts.SchemaRefusal(contracts.CapabilityDecision, err)
	}
	g := req.Gates

	out := &Outcome{ExecutionAllowed: g.ExecutionAllowed, Assertions: holds()}

	// 5. Gate precedence: the first failing gate picks the move.
	for _, n := range gate.Precedence {
		if g.Passed(n) {
			continue
		}
		out.FailClosed = true
		out.RootCause = n
		out.ReasonCode = n.FailureCode()
		switch n {
		case gate.NameSession:
			out.NextMove = contracts.MoveWait
		case gate.NameUnderstanding:
			out.NextMove = contracts.MoveClarify
		case gate.NameConfirmation:
			out.NextMove = contracts.MoveConfirm
		default:
			out.NextMove = contracts.MoveRefuse
		}
		return out, nil
	}

	// 6. All gates passed: resolve the requested move by priority.
	out.ReasonCode = reasoncode.OKMoveResolved
	m := req.Moves
	switch {
	case m.Simulation:
		out.NextMove = contracts.MoveDispatchSimulation
		out.DispatchAllowed = g.SimulationDispatchAllowed
	case m.Tool:
		out.NextMove = contracts.MoveDispatchTool
		out.DispatchAllowed = g.ToolDispatchAllowed
	case m.Confirm:
		out.NextMove = contracts.MoveConfirm
	case m.Clarify:
		out.NextMove = contracts.MoveClarify
	case m.Wait:
		out.NextMove = contracts.MoveWait
	case m.Explain:
		out.NextMove = contracts.MoveExplain
	default:
		out.NextMove = contracts.MoveRespond
	}
	if out.NextMove.IsDispatch() && !out.DispatchAllowed {
		return nil, contracts.Internal(contracts.CapabilityDecision,
			"%s resolved but gate outcome does not allow dispatch", out.NextMove)
	}
	return out, nil
}

func validate(req Request) error {
	var v contracts.Validator
	g := req.Gates
	if g == nil {
		v.Add("gates", contracts.CodeRequired, "gate outcome is required")
		return v.Err()
	}
	if len(g.Results) != len(gate.Precedence) {
		v.Add("gates.results", contracts.CodeInvalidValue, "%d results, want %d", len(g.Results), len(gate.Precedence))
	}
	if g.ToolRequested != req.Moves.Tool {
		v.Add("moves.tool", contracts.CodeConflict, "tool=%t but gate outcome tool_requested=%t", req.Moves.Tool, g.ToolRequested)
	}
	if g.SimulationRequested != req.Moves.Simulation {
		v.Add("moves.simulation", contracts.CodeConflict, "simulation=%t but gate outcome simulation_requested=%t", req.Moves.Simulation, g.SimulationRequested)
	}
	v.OptionalText("clarify_owner", req.ClarifyOwner, contracts.MaxIDLen)
	return v.Err()
}
