// Package kernel runs one conversational turn end to end.
//
// Process validates the turn, verifies identity, evaluates the admission
// gates, resolves the next move, builds the directive and persists the next
// thread state. Turns on the same thread are serialized by refusal, never by
// queueing: a second concurrent turn is refused with TURN_IN_FLIGHT.
package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Mindburn-Labs/turnkernel/pkg/canonical"
	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/decision"
	"github.com/Mindburn-Labs/turnkernel/pkg/directive"
	"github.com/Mindburn-Labs/turnkernel/pkg/gate"
	"github.com/Mindburn-Labs/turnkernel/pkg/governance"
	"github.com/Mindburn-Labs/turnkernel/pkg/identity"
	"github.com/Mindburn-Labs/turnkernel/pkg/ledger"
	"github.com/Mindburn-Labs/turnkernel/pkg/observability"
	"github.com/Mindburn-Labs/turnkernel/pkg/reasoncode"
	"github.com/Mindburn-Labs/turnkernel/pkg/resume"
	"github.com/Mindburn-Labs/turnkernel/pkg/store"
	"github.com/Mindburn-Labs/turnkernel/pkg/thread"
)

// Kernel is the per-process turn pipeline. It is safe for concurrent use
// across threads.
type Kernel struct {
	store      store.ThreadStore
	governance *governance.Engine
	tokens     *identity.TokenManager
	ledger     *ledger.Ledger
	limiter    *TenantLimiter
	clock      resume.Clock
	resume     resume.Policy
	telemetry  *observability.Provider
	guard      *inflight
	logger     *slog.Logger
}

// New creates a kernel over st with the default governance policy, an
// in-memory dispatch ledger, no tenant limiter and telemetry disabled.
func New(st store.ThreadStore) (*Kernel, error) {
	if st == nil {
		return nil, errors.New("kernel: thread store is required")
	}
	gov, err := governance.NewEngine(governance.DefaultPolicy())
	if err != nil {
		return nil, fmt.Errorf("kernel: default governance: %w", err)
	}
	tel, err := observability.New(context.Background(), nil)
	if err != nil {
		return nil, fmt.Errorf("kernel: telemetry: %w", err)
	}
	return &Kernel{
		store:      st,
		governance: gov,
		ledger:     ledger.New(),
		clock:      resume.NewMonotonicClock(),
		resume:     resume.DefaultPolicy(),
		telemetry:  tel,
		guard:      newInflight(),
		logger:     slog.Default().With("component", "kernel"),
	}, nil
}

// WithGovernance replaces the governance engine.
func (k *Kernel) WithGovernance(e *governance.Engine) *Kernel {
	k.governance = e
	return k
}

// WithIdentity sets the verifier for text-session tokens. Without one, text
// turns are refused.
func (k *Kernel) WithIdentity(tm *identity.TokenManager) *Kernel {
	k.tokens = tm
	return k
}

// WithLedger replaces the dispatch ledger. A nil ledger disables
// idempotency tracking.
func (k *Kernel) WithLedger(l *ledger.Ledger) *Kernel {
	k.ledger = l
	return k
}

// WithLimiter sets the per-tenant turn limiter feeding the quota domain.
func (k *Kernel) WithLimiter(l *TenantLimiter) *Kernel {
	k.limiter = l
	return k
}

// WithClock overrides the monotonic clock used for resume expiry.
func (k *Kernel) WithClock(c resume.Clock) *Kernel {
	k.clock = c
	return k
}

// WithResumePolicy replaces the interruption policy.
func (k *Kernel) WithResumePolicy(p resume.Policy) *Kernel {
	k.resume = p.Normalize()
	return k
}

// WithTelemetry replaces the observability provider.
func (k *Kernel) WithTelemetry(p *observability.Provider) *Kernel {
	k.telemetry = p
	return k
}

// Process runs turn t. Refusals are returned as *contracts.Refusal; internal
// defects as *contracts.InternalError; store and ledger failures are wrapped.
func (k *Kernel) Process(ctx context.Context, t *Turn) (_ *TurnResult, err error) {
	if t == nil {
		return nil, contracts.SchemaRefusal(contracts.CapabilityKernel, errors.New("turn is required"))
	}
	ctx, done := k.telemetry.TrackOperation(ctx, "turnkernel.turn",
		attribute.String("turnkernel.channel", string(t.Channel)),
	)
	defer func() { done(err) }()

	// 1. Structure
	if r := t.Envelope.Check(contracts.CapabilityKernel); r != nil {
		return nil, r
	}
	if err := t.Validate(); err != nil {
		return nil, contracts.SchemaRefusal(contracts.CapabilityKernel, err)
	}

	// 2. Single writer per thread
	release, ok := k.guard.acquire(t.ThreadID)
	if !ok {
		return nil, contracts.Refuse(contracts.CapabilityKernel, reasoncode.TurnInFlight,
			"thread %q already has a turn in flight", t.ThreadID)
	}
	defer release()

	// 3. Thread state
	prev, err := k.store.Load(ctx, t.ThreadID)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			return nil, contracts.Refuse(contracts.CapabilityThread, reasoncode.ThreadPendingInvalid, "%v", err)
		}
		return nil, fmt.Errorf("kernel: load thread %s: %w", t.ThreadID, err)
	}
	if r := prev.Check(); r != nil {
		return nil, r
	}

	// 4. Identity, before any gate
	who, err := k.resolveIdentity(ctx, t)
	if err != nil {
		return nil, err
	}
	if err := prev.VerifySpeaker(who.Context, t.ActiveSpeaker); err != nil {
		return nil, err
	}

	// 5. Answers to the pending request
	intent := t.Intent
	var (
		confirmed bool
		declined  bool
		remember  string
	)
	if t.ConfirmAnswer != nil {
		if err := prev.AcceptConfirmAnswer(); err != nil {
			return nil, err
		}
		switch p := prev.Pending.(type) {
		case *thread.ConfirmPending:
			if !t.ConfirmAnswer.Accepted {
				// Dispatching the declined intent in this turn fails the
				// confirmation gate.
				declined = intent == nil || sameIntent(p.Intent, *intent)
				break
			}
			if intent == nil {
				snap := p.Intent
				intent = &snap
			}
			confirmed = sameIntent(p.Intent, *intent)
		case *thread.MemoryPermissionPending:
			if t.ConfirmAnswer.Accepted {
				remember = p.DeferredText
			}
		}
	}
	if t.ToolResult != nil {
		if err := prev.AcceptToolResult(t.ToolResult.RequestID); err != nil {
			return nil, err
		}
		if err := k.settle(ctx, t.TenantID, t.ToolResult); err != nil {
			return nil, err
		}
	}

	// 6. Interruption
	now := k.clock.Now()
	buf, interrupted, err := nextResume(t, prev.Resume, now, k.resume)
	if err != nil {
		return nil, err
	}

	// 7. Gates
	dispatchID := ""
	if t.Moves.Tool || t.Moves.Simulation {
		if dispatchID, err = dispatchIDFor(t); err != nil {
			return nil, contracts.Internal(contracts.CapabilityKernel, "dispatch id: %v", err)
		}
	}
	sig, err := k.signals(ctx, t, who, intent, confirmation{confirmed: confirmed, declined: declined}, dispatchID)
	if err != nil {
		return nil, err
	}
	gates, err := gate.Evaluate(gate.Request{Envelope: t.Envelope, Signals: sig})
	if err != nil {
		return nil, err
	}

	// 8. Decision
	dec, err := decision.Compute(decision.Request{
		Envelope:     t.Envelope,
		Gates:        gates,
		Moves:        t.Moves,
		ClarifyOwner: t.ClarifyOwner,
	})
	if err != nil {
		return nil, err
	}

	// 9. Directive
	d, err := directive.Build(directive.Input{
		Envelope:       t.Envelope,
		Decision:       dec,
		Payload:        renderPayload(t, intent, prev.Pending, dec, dispatchID),
		Channel:        t.Channel,
		SpeechInFlight: t.SpeechInFlight || interrupted,
	})
	if err != nil {
		return nil, err
	}

	// 10. Next state
	next := thread.State{Resume: buf, TopicRef: prev.TopicRef, SpeakerID: who.Context.ResolvedUser()}
	if t.TopicRef != "" {
		next.TopicRef = t.TopicRef
	}
	pending, err := nextPending(t, intent, prev.Pending, d)
	if isExhausted(err) {
		// Escalate out of the retry loop: drop the pending request so the
		// thread is not stuck refusing forever.
		if serr := k.store.Save(ctx, t.ThreadID, next); serr != nil {
			return nil, fmt.Errorf("kernel: save thread %s: %w", t.ThreadID, serr)
		}
		k.logger.WarnContext(ctx, "pending attempts exhausted", "thread_id", t.ThreadID, "turn_id", t.Envelope.TurnID)
		return nil, contracts.Refuse(contracts.CapabilityThread, reasoncode.ThreadAttemptsExhausted, "%v", err)
	}
	if err != nil {
		return nil, err
	}
	next.Pending = pending
	if err := next.Validate(); err != nil {
		return nil, contracts.Internal(contracts.CapabilityThread, "next state: %v", err)
	}

	// 11. Reserve the dispatch, then persist. A failed save releases the
	// reservation so a retried turn is not refused as a duplicate.
	key := ledger.Key{TenantID: t.TenantID, EntityID: dispatchID}
	reserve := d.Move.IsDispatch() && k.ledger != nil
	if reserve {
		if _, err := k.ledger.Apply(ctx, ledger.Command{Kind: ledger.CommandReserve, Key: key, DirectiveID: d.ID, Move: d.Move}); err != nil {
			return nil, fmt.Errorf("kernel: reserve %s: %w", key, err)
		}
	}
	if err := k.store.Save(ctx, t.ThreadID, next); err != nil {
		if reserve {
			if _, cerr := k.ledger.Apply(ctx, ledger.Command{Kind: ledger.CommandCancel, Key: key, DirectiveID: d.ID}); cerr != nil {
				k.logger.ErrorContext(ctx, "failed to release reservation", "key", key.String(), "error", cerr)
			}
		}
		return nil, fmt.Errorf("kernel: save thread %s: %w", t.ThreadID, err)
	}
	if id := displacedTool(t, prev.Pending, next.Pending); id != "" {
		// Its result can no longer be accepted.
		if err := k.settle(ctx, t.TenantID, &ToolResult{RequestID: id}); err != nil {
			k.logger.ErrorContext(ctx, "failed to release displaced tool call", "request_id", id, "error", err)
		}
	}

	requestID, err := canonical.ID("turn", map[string]any{
		"thread_id":      t.ThreadID,
		"correlation_id": t.Envelope.CorrelationID,
		"turn_id":        t.Envelope.TurnID,
	})
	if err != nil {
		return nil, contracts.Internal(contracts.CapabilityKernel, "request id: %v", err)
	}

	k.telemetry.RecordDecision(ctx, dec.NextMove, dec.ReasonCode, dec.FailClosed)
	k.logger.InfoContext(ctx, "turn processed",
		"request_id", requestID,
		"thread_id", t.ThreadID,
		"turn_id", t.Envelope.TurnID,
		"move", dec.NextMove,
		"reason", dec.ReasonCode.Name(),
		"fail_closed", dec.FailClosed,
		"pending", pendingKind(next.Pending),
	)

	return &TurnResult{
		RequestID: requestID,
		Gates:     gates,
		Decision:  dec,
		Directive: d,
		State:     next,
		Remember:  remember,
	}, nil
}

// Reset discards the thread's state, e.g. when the session ends.
func (k *Kernel) Reset(ctx context.Context, threadID string) error {
	release, ok := k.guard.acquire(threadID)
	if !ok {
		return contracts.Refuse(contracts.CapabilityKernel, reasoncode.TurnInFlight,
			"thread %q already has a turn in flight", threadID)
	}
	defer release()
	if err := k.store.Delete(ctx, threadID); err != nil {
		return fmt.Errorf("kernel: reset thread %s: %w", threadID, err)
	}
	return nil
}

func (k *Kernel) resolveIdentity(ctx context.Context, t *Turn) (*identity.Resolved, error) {
	var (
		who *identity.Resolved
		err error
	)
	switch {
	case k.tokens != nil:
		who, err = k.tokens.Resolve(ctx, t.Identity)
	case t.Identity.Kind == contracts.IdentityText:
		return nil, contracts.Refuse(contracts.CapabilityIdentity, reasoncode.ThreadIdentityInvalid,
			"text identity requires a token verifier")
	default:
		who, err = identity.ResolveVoice(t.Identity)
	}
	if err != nil {
		return nil, err
	}
	if who.TenantID != "" && who.TenantID != t.TenantID {
		return nil, contracts.Refuse(contracts.CapabilityIdentity, reasoncode.ThreadIdentityInvalid,
			"token tenant %q does not match turn tenant %q", who.TenantID, t.TenantID)
	}
	return who, nil
}

// confirmation is the turn's answer to a pending confirm request.
type confirmation struct {
	confirmed bool
	declined  bool
}

// signals derives the gate inputs. Readiness comes from the runtime;
// understanding, confirmation, governance and idempotency are derived here.
func (k *Kernel) signals(ctx context.Context, t *Turn, who *identity.Resolved, intent *contracts.IntentDraft, c confirmation, dispatchID string) (gate.Signals, error) {
	understood := false
	switch {
	case intent != nil:
		understood = intent.Understood()
	case t.ToolResult != nil, t.ConfirmAnswer != nil:
		// Answering a pending request needs no fresh understanding.
		understood = true
	}

	dispatch := t.Moves.Tool || t.Moves.Simulation
	needsConfirm := dispatch && (c.declined || intent != nil && intent.Type.RequiresConfirmation())

	idempotent := true
	if dispatchID != "" && k.ledger != nil {
		seen, err := k.ledger.Seen(ctx, ledger.Key{TenantID: t.TenantID, EntityID: dispatchID})
		if err != nil {
			return gate.Signals{}, fmt.Errorf("kernel: idempotency check: %w", err)
		}
		idempotent = !seen
	}

	r := t.Readiness
	return gate.Signals{
		SessionActive:          r.SessionActive,
		UnderstandingConfident: understood,
		ConfirmationSatisfied:  !needsConfirm || c.confirmed,
		PromptPolicyAllowed:    r.PromptPolicyAllowed,
		Governance:             k.governanceFor(ctx, t, who, intent),
		AccessAllowed:          r.AccessAllowed,
		BlueprintReady:         r.BlueprintReady,
		SimulationReady:        r.SimulationReady,
		IdempotencyClear:       idempotent,
		LeaseHeld:              r.LeaseHeld,
		Outcomes:               t.Outcomes,
		OptionalBudget:         t.OptionalBudget,
		ToolRequested:          t.Moves.Tool,
		SimulationRequested:    t.Moves.Simulation,
		GuardFailures:          t.GuardFailures,
	}, nil
}

// governanceFor takes explicit verdicts from the turn when present and
// otherwise evaluates the policy. The tenant limiter always has the last
// word on quota.
func (k *Kernel) governanceFor(ctx context.Context, t *Turn, who *identity.Resolved, intent *contracts.IntentDraft) gate.GovernanceSet {
	quotaOK := k.limiter == nil || k.limiter.Allow(t.TenantID)
	if t.Governance != nil {
		g := *t.Governance
		if !quotaOK {
			g = g.With(gate.DomainQuota, gate.Deny)
		}
		return g
	}
	in := governance.Input{
		TenantID:   t.TenantID,
		UserID:     who.Context.ResolvedUser(),
		Channel:    string(t.Channel),
		QuotaOK:    quotaOK,
		Attributes: t.Attributes,
	}
	if intent != nil {
		in.IntentType = string(intent.Type)
		in.SideEffecting = intent.Type.IsSideEffecting()
	}
	return k.governance.Decide(ctx, in)
}

// settle closes the ledger entry answered by a tool result. An entry unknown
// to this ledger is logged and tolerated.
func (k *Kernel) settle(ctx context.Context, tenantID string, res *ToolResult) error {
	if k.ledger == nil {
		return nil
	}
	key := ledger.Key{TenantID: tenantID, EntityID: res.RequestID}
	entry, err := k.ledger.Get(ctx, key)
	if errors.Is(err, ledger.ErrNotFound) {
		k.logger.WarnContext(ctx, "tool result for unknown reservation", "key", key.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("kernel: settle %s: %w", key, err)
	}
	kind := ledger.CommandComplete
	if !res.OK {
		kind = ledger.CommandCancel
	}
	if _, err := k.ledger.Apply(ctx, ledger.Command{Kind: kind, Key: key, DirectiveID: entry.DirectiveID}); err != nil {
		return fmt.Errorf("kernel: settle %s: %w", key, err)
	}
	return nil
}

// dispatchIDFor names the dispatch a turn would issue. A redelivered turn
// maps to the same id and is caught by the idempotency gate.
func dispatchIDFor(t *Turn) (string, error) {
	prefix := "tool"
	if t.Moves.Simulation {
		prefix = "sim"
	}
	return canonical.ID(prefix, map[string]any{
		"thread_id":      t.ThreadID,
		"correlation_id": t.Envelope.CorrelationID,
		"turn_id":        t.Envelope.TurnID,
	})
}

func pendingKind(p thread.Pending) string {
	if p == nil {
		return "none"
	}
	return string(p.Kind())
}
