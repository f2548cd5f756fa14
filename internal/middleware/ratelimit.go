package middleware

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/charlesng35/agentdesk/pkg/errors"
	"github.com/charlesng35/agentdesk/pkg/response"
)

// RateLimit returns a middleware that allows maxRequests per window for each
// (clientIP, route) pair, refilling continuously. Limiters live in memory, which
// suits single-instance deployments.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 || window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	limiters := newLimiterSet(rate.Every(window/time.Duration(maxRequests)), maxRequests, window)

	return func(c *gin.Context) {
		key := c.ClientIP() + "|" + c.FullPath()
		limiter := limiters.get(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		if !limiter.Allow() {
			retry := limiter.Reserve()
			delay := retry.Delay()
			retry.Cancel()
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
		c.Next()
	}
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type limiterSet struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	idle    time.Duration
	entries map[string]*limiterEntry
	swept   time.Time
}

func newLimiterSet(every rate.Limit, burst int, window time.Duration) *limiterSet {
	return &limiterSet{
		every:   every,
		burst:   burst,
		idle:    window,
		entries: make(map[string]*limiterEntry),
		swept:   time.Now(),
	}
}

func (s *limiterSet) get(key string) *rate.Limiter {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop limiters that have refilled and sat idle for a full window.
	if now.Sub(s.swept) > s.idle {
		for k, e := range s.entries {
			if now.Sub(e.lastSeen) > s.idle {
				delete(s.entries, k)
			}
		}
		s.swept = now
	}

	e, ok := s.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(s.every, s.burst)}
		s.entries[key] = e
	}
	e.lastSeen = now
	return e.limiter
}
