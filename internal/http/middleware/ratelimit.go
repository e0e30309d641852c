package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	botmw "github.com/tbourn/go-group-bot/internal/bot/middleware"
)

// KeyFunc selects the bucket a request is counted against.
type KeyFunc func(*gin.Context) string

// KeyByGatewayOrIP prefers the X-Gateway-ID header, so several gateways
// behind one proxy get separate buckets, and falls back to the client IP.
func KeyByGatewayOrIP() KeyFunc {
	return func(c *gin.Context) string {
		if g := c.GetHeader(gatewayHeader); g != "" {
			return "gateway:" + g
		}
		return "ip:" + c.ClientIP()
	}
}

// IsRateBypass reports whether IdempotencyValidator marked the request as a
// replay, which is served without consuming a token.
func IsRateBypass(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyRateBypass)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// RateLimit throttles requests with the same token buckets the bot uses for
// commands. Denied requests get 429 with Retry-After: 1.
func RateLimit(rl *botmw.RateLimiter, keyFn KeyFunc) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = KeyByGatewayOrIP()
	}
	return func(c *gin.Context) {
		if IsRateBypass(c) || rl.Allow(keyFn(c)) {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
