package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterBurst   = 5
	limiterIdleTTL = 10 * time.Minute
)

// senderLimiter throttles commands per sender JID. A zero or negative
// per-minute budget disables limiting.
type senderLimiter struct {
	perMinute int

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastPrune time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newSenderLimiter(perMinute int) *senderLimiter {
	return &senderLimiter{
		perMinute: perMinute,
		visitors:  make(map[string]*visitor),
		lastPrune: time.Now(),
	}
}

func (l *senderLimiter) Allow(sender string) bool {
	if l.perMinute <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastPrune) > limiterIdleTTL {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, key)
			}
		}
		l.lastPrune = now
	}

	v, ok := l.visitors[sender]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMinute)), limiterBurst)}
		l.visitors[sender] = v
	}
	v.lastSeen = now
	return v.limiter.Allow()
}
