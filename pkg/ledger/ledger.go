// Package ledger records dispatched requests per tenant and entity.
//
// Invariants:
//   - Commands on one key are serialized; different keys never contend.
//   - Commands are idempotent.
//   - A mutation that panics poisons its key; every later access to that key
//     fails with ErrPoisoned instead of reading possibly inconsistent state.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type slot struct {
	mu       sync.Mutex
	entry    *Entry
	poisoned bool
}

// Ledger is an in-memory dispatch ledger.
type Ledger struct {
	mu     sync.Mutex
	slots  map[Key]*slot
	clock  func() time.Time
	logger *slog.Logger

	// beforeCommit runs inside the critical section, after the new entry is
	// computed and before it is stored.
	beforeCommit func(Entry)
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		slots:  make(map[Key]*slot),
		clock:  time.Now,
		logger: slog.Default().With("component", "ledger"),
	}
}

// WithClock overrides the clock for deterministic testing.
func (l *Ledger) WithClock(clock func() time.Time) *Ledger {
	l.clock = clock
	return l
}

// slot returns k's slot. Read paths pass create=false so that lookups of
// unknown keys leave no trace; the result is then nil for an unknown key.
func (l *Ledger) slot(k Key, create bool) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[k]
	if !ok && create {
		s = &slot{}
		l.slots[k] = s
	}
	return s
}

// withKey runs fn in k's critical section and converts a panic into poison.
// Without create, an unknown key is ErrNotFound and fn is not run.
func (l *Ledger) withKey(ctx context.Context, k Key, create bool, fn func(s *slot) error) (err error) {
	s := l.slot(k, create)
	if s == nil {
		return ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned {
		return fmt.Errorf("%w: %s", ErrPoisoned, k)
	}
	defer func() {
		if r := recover(); r != nil {
			s.poisoned = true
			l.logger.ErrorContext(ctx, "ledger mutation crashed, key poisoned", "key", k.String(), "panic", r)
			err = fmt.Errorf("%w: %s: %v", ErrPoisoned, k, r)
		}
	}()
	return fn(s)
}

// Get returns the entry for k.
func (l *Ledger) Get(ctx context.Context, k Key) (Entry, error) {
	var out Entry
	err := l.withKey(ctx, k, false, func(s *slot) error {
		if s.entry == nil {
			return ErrNotFound
		}
		out = *s.entry
		return nil
	})
	return out, err
}

// Seen reports whether k holds a live entry. A cancelled entry released its
// key and is not seen. A poisoned key is an error.
func (l *Ledger) Seen(ctx context.Context, k Key) (bool, error) {
	e, err := l.Get(ctx, k)
	switch {
	case err == nil:
		return e.State != StateCancelled, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Len returns the number of keys the ledger holds.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// Apply executes cmd against its key.
func (l *Ledger) Apply(ctx context.Context, cmd Command) (Entry, error) {
	if cmd.Key.TenantID == "" || cmd.Key.EntityID == "" {
		return Entry{}, fmt.Errorf("ledger: key requires tenant and entity")
	}
	if cmd.DirectiveID == "" {
		return Entry{}, fmt.Errorf("ledger: %s requires a directive id", cmd.Kind)
	}
	var out Entry
	err := l.withKey(ctx, cmd.Key, true, func(s *slot) error {
		next, changed, err := transition(s.entry, cmd, l.clock())
		if err != nil {
			return err
		}
		if changed {
			if l.beforeCommit != nil {
				l.beforeCommit(next)
			}
			s.entry = &next
		}
		out = next
		return nil
	})
	if err != nil {
		return Entry{}, err
	}
	l.logger.DebugContext(ctx, "ledger command applied", "key", cmd.Key.String(), "kind", cmd.Kind, "state", out.State, "version", out.Version)
	return out, nil
}

func transition(cur *Entry, cmd Command, now time.Time) (Entry, bool, error) {
	if cur == nil {
		if cmd.Kind != CommandReserve {
			return Entry{}, false, fmt.Errorf("%w: %s on %s", ErrNotFound, cmd.Kind, cmd.Key)
		}
		return Entry{
			Key:         cmd.Key,
			DirectiveID: cmd.DirectiveID,
			Move:        cmd.Move,
			State:       StateReserved,
			Version:     1,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, true, nil
	}
	if cmd.Kind == CommandReserve && cur.State == StateCancelled {
		// A cancelled key is free again, for any directive.
		next := *cur
		next.DirectiveID = cmd.DirectiveID
		next.Move = cmd.Move
		next.State = StateReserved
		next.Version++
		next.UpdatedAt = now
		return next, true, nil
	}
	if cur.DirectiveID != cmd.DirectiveID {
		return Entry{}, false, fmt.Errorf("%w: %s held by %s", ErrConflict, cmd.Key, cur.DirectiveID)
	}

	var target State
	switch cmd.Kind {
	case CommandReserve:
		return *cur, false, nil
	case CommandComplete:
		target = StateCompleted
	case CommandCancel:
		target = StateCancelled
	default:
		return Entry{}, false, fmt.Errorf("ledger: unknown command %q", cmd.Kind)
	}
	if cur.State == target {
		return *cur, false, nil
	}
	if cur.State != StateReserved {
		return Entry{}, false, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, cmd.Kind, cur.State)
	}
	next := *cur
	next.State = target
	next.Version++
	next.UpdatedAt = now
	return next, true, nil
}
