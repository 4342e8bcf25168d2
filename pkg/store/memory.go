package store

import (
	"context"
	"sync"

	"github.com/Mindburn-Labs/turnkernel/pkg/thread"
)

// MemoryStore keeps encoded states in a map. Entries are stored encoded so
// callers never share mutable state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, threadID string) (thread.State, error) {
	if err := checkID(threadID); err != nil {
		return thread.State{}, err
	}
	s.mu.RLock()
	b, ok := s.states[threadID]
	s.mu.RUnlock()
	if !ok {
		return thread.State{}, nil
	}
	return decode(b)
}

func (s *MemoryStore) Save(ctx context.Context, threadID string, st thread.State) error {
	if err := checkID(threadID); err != nil {
		return err
	}
	b, err := encode(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Empty() {
		delete(s.states, threadID)
		return nil
	}
	s.states[threadID] = b
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, threadID string) error {
	if err := checkID(threadID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, threadID)
	return nil
}

// Len returns the number of stored threads.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
