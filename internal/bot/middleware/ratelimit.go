package middleware

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tbourn/go-group-bot/internal/bot"
)

// KeyRateLimited is set on the context when a command was throttled.
const KeyRateLimited = "rate_limited"

// RateKeyFunc selects the bucket a message is counted against.
type RateKeyFunc func(*bot.Context) string

// KeyBySender buckets by sender id across groups.
func KeyBySender() RateKeyFunc {
	return func(c *bot.Context) string {
		return "user:" + strconv.FormatInt(c.SenderID(), 10)
	}
}

// visitor holds a single rate limiter and the last time it was seen.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token bucket limiter for commands. Buckets are
// created on demand; idle ones are evicted opportunistically.
//
// This type is safe for concurrent use.
type RateLimiter struct {
	rps      rate.Limit
	burst    int
	keyFn    RateKeyFunc
	mu       sync.Mutex
	visitors map[string]*visitor

	ttl      time.Duration
	cleanupN uint64
	now      func() time.Time
}

// NewRateLimiter returns a limiter refilling rps tokens per second up to
// burst (at least 1). A nil keyFn buckets by sender.
func NewRateLimiter(rps float64, burst int, keyFn RateKeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyBySender()
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

// getVisitor returns the limiter for key, creating it if absent. Idle
// entries are swept every 5000 lookups, before the requested one is touched.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.cleanupN++
	if rl.cleanupN >= 5000 {
		for k, vv := range rl.visitors {
			if now.Sub(vv.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.cleanupN = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Allow consumes one token for key.
func (rl *RateLimiter) Allow(key string) bool {
	return rl.getVisitor(key).AllowN(rl.now(), 1)
}

// Middleware throttles matched commands; plain chatter is never counted.
// A throttled command is tagged with KeyRateLimited and halted.
func (rl *RateLimiter) Middleware() bot.Middleware {
	return bot.Middleware{
		Name:     "ratelimit",
		Priority: PriorityRateLimit,
		Condition: func(c *bot.Context) bool {
			_, matched := c.Match()
			return matched
		},
		Handler: func(c *bot.Context) (bot.Step, error) {
			if rl.Allow(rl.keyFn(c)) {
				return bot.Next(), nil
			}
			c.Set(KeyRateLimited, true)
			c.Logger().Warn().Msg("command rate limited")
			return bot.Stop(), nil
		},
	}
}
