package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"safereport/internal/config"
	"safereport/internal/observability"
	contextutils "safereport/internal/utils"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type clientState struct {
	limiter      *rate.Limiter
	strikes      int
	blockedUntil time.Time
	lastSeen     time.Time
}

// RateLimiter throttles requests per client IP with a token bucket. A client that keeps
// hitting the limit collects strikes and is blocked outright for BlockDuration.
type RateLimiter struct {
	cfg    config.RateLimitConfig
	logger *observability.Logger
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*clientState
}

// NewRateLimiter creates a new RateLimiter instance
func NewRateLimiter(cfg config.RateLimitConfig, logger *observability.Logger) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		clients: make(map[string]*clientState),
	}
}

// Middleware rejects throttled requests with 429 and a Retry-After header
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.cfg.Enabled {
			c.Next()
			return
		}

		key := c.ClientIP()
		allowed, retryAfter, blocked := rl.allow(key)
		if allowed {
			c.Next()
			return
		}

		if blocked && rl.logger != nil {
			rl.logger.Warn(c.Request.Context(), "Client blocked by rate limiter", map[string]interface{}{
				"client_ip":   key,
				"path":        c.FullPath(),
				"retry_after": retryAfter.String(),
			})
		}

		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		body := contextutils.ErrRateLimit.ToJSON()
		body["retryAfterSeconds"] = int(math.Ceil(retryAfter.Seconds()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, body)
	}
}

// allow decides one request for key. blocked is true when the request tripped or hit a block.
func (rl *RateLimiter) allow(key string) (allowed bool, retryAfter time.Duration, blocked bool) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, ok := rl.clients[key]
	if !ok {
		state = &clientState{limiter: rate.NewLimiter(rate.Limit(rl.cfg.RequestsPerSecond), rl.cfg.BurstSize)}
		rl.clients[key] = state
	}
	state.lastSeen = now

	if now.Before(state.blockedUntil) {
		return false, state.blockedUntil.Sub(now), true
	}

	if state.limiter.AllowN(now, 1) {
		return true, 0, false
	}

	state.strikes++
	if rl.cfg.StrikeLimit > 0 && state.strikes >= rl.cfg.StrikeLimit {
		state.strikes = 0
		state.blockedUntil = now.Add(rl.cfg.BlockDuration)
		return false, rl.cfg.BlockDuration, true
	}
	return false, rl.tokenInterval(), false
}

// tokenInterval is how long an empty bucket takes to refill by one request, at least a second
func (rl *RateLimiter) tokenInterval() time.Duration {
	if rl.cfg.RequestsPerSecond <= 0 {
		return time.Second
	}
	return max(time.Duration(float64(time.Second)/rl.cfg.RequestsPerSecond), time.Second)
}

// Prune forgets clients idle for longer than IdleTTL and not currently blocked. It returns the number removed.
func (rl *RateLimiter) Prune() int {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, state := range rl.clients {
		if now.Sub(state.lastSeen) > rl.cfg.IdleTTL && !now.Before(state.blockedUntil) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// Run prunes idle clients until ctx is done
func (rl *RateLimiter) Run(ctx context.Context) {
	interval := rl.cfg.IdleTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rl.Prune(); n > 0 && rl.logger != nil {
				rl.logger.Debug(ctx, "Pruned idle rate limiter clients", map[string]interface{}{"removed": n})
			}
		}
	}
}

// Clients returns the number of tracked clients
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}
