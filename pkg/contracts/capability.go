package contracts

// CapabilityID names the capability that produced a response or refusal.
type CapabilityID string

const (
	CapabilityGate      CapabilityID = "turnkernel.gate.v1"
	CapabilityDecision  CapabilityID = "turnkernel.decision.v1"
	CapabilityDirective CapabilityID = "turnkernel.directive.v1"
	CapabilityThread    CapabilityID = "turnkernel.thread.v1"
	CapabilityResume    CapabilityID = "turnkernel.resume.v1"
	CapabilityIdentity  CapabilityID = "turnkernel.identity.v1"
	CapabilityKernel    CapabilityID = "turnkernel.kernel.v1"
)
