package kernel

import "sync"

// inflight admits at most one turn per thread at a time.
type inflight struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{active: make(map[string]struct{})}
}

// acquire claims threadID. It returns false if another turn holds it.
func (g *inflight) acquire(threadID string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[threadID]; busy {
		return nil, false
	}
	g.active[threadID] = struct{}{}
	return func() {
		g.mu.Lock()
		delete(g.active, threadID)
		g.mu.Unlock()
	}, true
}
