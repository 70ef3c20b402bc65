package bridge

import (
	"net"
	"sync"
	"time"

	"github.com/lawnchairsociety/tlcsview/internal/config"
)

// connLimiter tracks and limits bridge connections per IP and total.
type connLimiter struct {
	mu         sync.Mutex
	ipCounts   map[string]int
	totalCount int
	maxPerIP   int
	maxTotal   int
}

func newConnLimiter(maxTotal, maxPerIP int) *connLimiter {
	return &connLimiter{
		ipCounts: make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// TryAcquire takes a slot for ip, or returns false if a limit is reached.
func (c *connLimiter) TryAcquire(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxTotal > 0 && c.totalCount >= c.maxTotal {
		return false
	}
	if c.maxPerIP > 0 && c.ipCounts[ip] >= c.maxPerIP {
		return false
	}

	c.ipCounts[ip]++
	c.totalCount++
	return true
}

// Release gives back a slot taken by TryAcquire.
func (c *connLimiter) Release(ip string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ipCounts[ip] > 0 {
		c.ipCounts[ip]--
		if c.ipCounts[ip] == 0 {
			delete(c.ipCounts, ip)
		}
	}
	if c.totalCount > 0 {
		c.totalCount--
	}
}

// Stats returns the open connection count and the number of distinct IPs.
func (c *connLimiter) Stats() (total int, ips int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalCount, len(c.ipCounts)
}

// tokenLimiter tracks bad bridge tokens per IP and enforces lockouts.
type tokenLimiter struct {
	mu              sync.Mutex
	attempts        map[string]*attemptInfo
	maxAttempts     int
	lockout         time.Duration
	maxLockout      time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

type attemptInfo struct {
	failedAttempts int
	lockedUntil    time.Time
	lockoutCount   int // for exponential backoff
}

func newTokenLimiter(cfg config.LockoutConfig) *tokenLimiter {
	tl := &tokenLimiter{
		attempts:        make(map[string]*attemptInfo),
		maxAttempts:     cfg.MaxAttempts,
		lockout:         time.Duration(cfg.LockoutSeconds) * time.Second,
		maxLockout:      time.Duration(cfg.MaxLockoutSeconds) * time.Second,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	if tl.maxAttempts == 0 {
		tl.maxAttempts = 5
	}
	if tl.lockout == 0 {
		tl.lockout = 30 * time.Second
	}
	if tl.maxLockout == 0 {
		tl.maxLockout = 300 * time.Second
	}

	go tl.cleanupLoop()

	return tl
}

// Stop ends the cleanup goroutine.
func (tl *tokenLimiter) Stop() {
	tl.stopOnce.Do(func() { close(tl.stopCleanup) })
}

// IsLocked reports whether ip is locked out and for how much longer.
func (tl *tokenLimiter) IsLocked(ip string) (bool, time.Duration) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	info, exists := tl.attempts[ip]
	if !exists {
		return false, 0
	}
	if time.Now().Before(info.lockedUntil) {
		return true, time.Until(info.lockedUntil)
	}
	return false, 0
}

// RecordFailure counts a bad token from ip. It returns true with the
// lockout duration once ip is locked out.
func (tl *tokenLimiter) RecordFailure(ip string) (bool, time.Duration) {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	info, exists := tl.attempts[ip]
	if !exists {
		info = &attemptInfo{}
		tl.attempts[ip] = info
	}

	if time.Now().Before(info.lockedUntil) {
		return true, time.Until(info.lockedUntil)
	}

	info.failedAttempts++
	if info.failedAttempts < tl.maxAttempts {
		return false, 0
	}

	info.lockoutCount++
	d := tl.lockout
	for i := 1; i < info.lockoutCount; i++ {
		// check before doubling to avoid overflow
		if d >= tl.maxLockout/2 {
			d = tl.maxLockout
			break
		}
		d *= 2
	}
	if d > tl.maxLockout {
		d = tl.maxLockout
	}
	info.lockedUntil = time.Now().Add(d)
	info.failedAttempts = 0
	return true, d
}

// RecordSuccess clears the failure count for ip.
func (tl *tokenLimiter) RecordSuccess(ip string) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	delete(tl.attempts, ip)
}

func (tl *tokenLimiter) cleanupLoop() {
	ticker := time.NewTicker(tl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-tl.stopCleanup:
			return
		case <-ticker.C:
			tl.cleanup()
		}
	}
}

// cleanup drops entries unlocked for at least ten minutes with no recent failures.
func (tl *tokenLimiter) cleanup() {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, info := range tl.attempts {
		if info.lockedUntil.Before(cutoff) && info.failedAttempts == 0 {
			delete(tl.attempts, ip)
		}
	}
}

// extractIP returns the host part of an ip:port remote address.
func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
