// Package store persists thread state between turns.
//
// Every implementation validates state on write and again on read, so a
// corrupted or tampered record is never handed to the turn pipeline.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/turnkernel/pkg/thread"
)

// ErrCorrupt is returned when a stored record fails to decode or validate.
var ErrCorrupt = errors.New("store: corrupt thread state")

// MaxThreadIDLen bounds thread ids accepted by every store.
const MaxThreadIDLen = 128

// ThreadStore loads and saves thread state. Load returns an empty state for
// an unknown thread.
type ThreadStore interface {
	Load(ctx context.Context, threadID string) (thread.State, error)
	Save(ctx context.Context, threadID string, st thread.State) error
	Delete(ctx context.Context, threadID string) error
}

func checkID(threadID string) error {
	if threadID == "" || len(threadID) > MaxThreadIDLen {
		return fmt.Errorf("store: thread id must be 1..%d bytes", MaxThreadIDLen)
	}
	return nil
}

func encode(st thread.State) ([]byte, error) {
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("store: refusing to save invalid state: %w", err)
	}
	b, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	return b, nil
}

func decode(b []byte) (thread.State, error) {
	var st thread.State
	if err := json.Unmarshal(b, &st); err != nil {
		return thread.State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := st.Validate(); err != nil {
		return thread.State{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return st, nil
}
