package ledger

import (
	"errors"
	"time"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
)

var (
	// ErrNotFound is returned when a ledger entry is not found.
	ErrNotFound = errors.New("ledger: not found")
	// ErrConflict is returned when a key is reserved by a different directive.
	ErrConflict = errors.New("ledger: key reserved by another directive")
	// ErrInvalidTransition is returned for a command the entry's state forbids.
	ErrInvalidTransition = errors.New("ledger: invalid transition")
	// ErrPoisoned is returned for every access to a key whose mutation crashed.
	// It is fatal for that key: the entry may be inconsistent.
	ErrPoisoned = errors.New("ledger: key poisoned by a failed mutation")
)

// State is the lifecycle of a dispatch entry.
type State string

const (
	StateReserved  State = "RESERVED"
	StateCompleted State = "COMPLETED"
	StateCancelled State = "CANCELLED"
)

// Key scopes an entry to a tenant and an entity, usually a request id.
type Key struct {
	TenantID string `json:"tenant_id"`
	EntityID string `json:"entity_id"`
}

func (k Key) String() string { return k.TenantID + "/" + k.EntityID }

// Entry is the durable record of one dispatched request.
type Entry struct {
	Key         Key            `json:"key"`
	DirectiveID string         `json:"directive_id"`
	Move        contracts.Move `json:"move"`
	State       State          `json:"state"`
	Version     int            `json:"version"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CommandKind names a ledger mutation.
type CommandKind string

const (
	CommandReserve  CommandKind = "reserve"
	CommandComplete CommandKind = "complete"
	CommandCancel   CommandKind = "cancel"
)

// Command is one idempotent mutation. Reapplying a command that already took
// effect returns the current entry unchanged.
type Command struct {
	Kind        CommandKind    `json:"kind"`
	Key         Key            `json:"key"`
	DirectiveID string         `json:"directive_id"`
	Move        contracts.Move `json:"move,omitempty"`
}
