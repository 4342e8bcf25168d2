package kernel

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultLimiterIdle is how long an unused tenant bucket is kept.
const DefaultLimiterIdle = 3 * time.Minute

// TenantLimiter admits turns per tenant with a token bucket. Its verdict
// feeds the quota governance domain; it never rejects a turn by itself.
type TenantLimiter struct {
	mu        sync.Mutex
	tenants   map[string]*tenantBucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type tenantBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewTenantLimiter allows perSecond turns per tenant with the given burst.
func NewTenantLimiter(perSecond float64, burst int) *TenantLimiter {
	return &TenantLimiter{
		tenants: make(map[string]*tenantBucket),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		idle:    DefaultLimiterIdle,
		now:     time.Now,
	}
}

// WithClock overrides the clock for deterministic testing.
func (l *TenantLimiter) WithClock(now func() time.Time) *TenantLimiter {
	l.now = now
	return l
}

// Allow consumes one token for tenant and reports whether it was available.
func (l *TenantLimiter) Allow(tenant string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.tenants[tenant]
	if !ok {
		b = &tenantBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.tenants[tenant] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Tenants returns the number of tracked tenant buckets.
func (l *TenantLimiter) Tenants() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.tenants)
}

// sweep drops idle buckets at most once per idle period. Callers hold mu.
func (l *TenantLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	for id, b := range l.tenants {
		if now.Sub(b.lastSeen) > l.idle {
			delete(l.tenants, id)
		}
	}
	l.lastSweep = now
}
