package server

import (
	"sync"
	"time"

	"github.com/lawnchairsociety/tunnelfight/internal/config"
)

// AbuseLimiter locks out clients that keep sending requests the server
// rejects (malformed JSON, unparseable encounters, out-of-range options).
// Each lockout doubles the previous one up to a cap.
type AbuseLimiter struct {
	mu          sync.Mutex
	clients     map[string]*strikes
	maxStrikes  int
	lockout     time.Duration
	maxLockout  time.Duration
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type strikes struct {
	count       int
	lockedUntil time.Time
	lockouts    int
}

// NewAbuseLimiter starts a limiter and its cleanup loop. Zero config values
// fall back to 5 strikes, 30s and 300s.
func NewAbuseLimiter(cfg config.RateLimitConfig) *AbuseLimiter {
	a := newAbuseLimiter(cfg, time.Now)
	go a.cleanupLoop(5 * time.Minute)
	return a
}

func newAbuseLimiter(cfg config.RateLimitConfig, now func() time.Time) *AbuseLimiter {
	a := &AbuseLimiter{
		clients:     make(map[string]*strikes),
		maxStrikes:  cfg.MaxAttempts,
		lockout:     time.Duration(cfg.LockoutSeconds) * time.Second,
		maxLockout:  time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		now:         now,
		stopCleanup: make(chan struct{}),
	}
	if a.maxStrikes <= 0 {
		a.maxStrikes = 5
	}
	if a.lockout <= 0 {
		a.lockout = 30 * time.Second
	}
	if a.maxLockout <= 0 {
		a.maxLockout = 300 * time.Second
	}
	if a.maxLockout < a.lockout {
		a.maxLockout = a.lockout
	}
	return a
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (a *AbuseLimiter) Stop() {
	a.stopOnce.Do(func() { close(a.stopCleanup) })
}

// IsLocked reports whether ip is locked out and for how much longer.
func (a *AbuseLimiter) IsLocked(ip string) (bool, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.clients[ip]
	if !ok {
		return false, 0
	}
	if now := a.now(); now.Before(s.lockedUntil) {
		return true, s.lockedUntil.Sub(now)
	}
	return false, 0
}

// RecordFailure counts a rejected request. It reports whether ip is now
// locked out and the remaining lockout.
func (a *AbuseLimiter) RecordFailure(ip string) (bool, time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.clients[ip]
	if !ok {
		s = &strikes{}
		a.clients[ip] = s
	}

	now := a.now()
	if now.Before(s.lockedUntil) {
		return true, s.lockedUntil.Sub(now)
	}

	s.count++
	if s.count < a.maxStrikes {
		return false, 0
	}

	s.lockouts++
	d := a.lockout
	for i := 1; i < s.lockouts && d < a.maxLockout; i++ {
		d *= 2
	}
	d = min(d, a.maxLockout)

	s.lockedUntil = now.Add(d)
	s.count = 0
	return true, d
}

// RecordSuccess forgets ip's strikes and lockout history.
func (a *AbuseLimiter) RecordSuccess(ip string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.clients, ip)
}

// Strikes returns ip's rejected requests since its last lockout.
func (a *AbuseLimiter) Strikes(ip string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.clients[ip]; ok {
		return s.count
	}
	return 0
}

func (a *AbuseLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCleanup:
			return
		case <-ticker.C:
			a.cleanup()
		}
	}
}

// cleanup drops clients whose lockout ended over ten minutes ago and who
// have no fresh strikes.
func (a *AbuseLimiter) cleanup() {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-10 * time.Minute)
	for ip, s := range a.clients {
		if s.count == 0 && s.lockedUntil.Before(cutoff) {
			delete(a.clients, ip)
		}
	}
}
