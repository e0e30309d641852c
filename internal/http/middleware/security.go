package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS emits Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days when <= 0.
	HSTSMaxAge time.Duration
	// NoStore marks responses uncacheable.
	NoStore bool
	// EnablePolicy adds Permissions-Policy and related browser policies.
	EnablePolicy bool
}

// exposed lists the response headers browser clients may read.
var exposed = []string{requestIDHeader, HeaderReplay}

// SecurityHeaders adds conservative hardening headers for a JSON API and
// exposes the correlation and replay headers to CORS clients.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := int(opt.HSTSMaxAge.Seconds())
	if maxAge <= 0 {
		maxAge = int((180 * 24 * time.Hour).Seconds())
	}
	hsts := "max-age=" + strconv.Itoa(maxAge) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		exposeHeaders(h)

		c.Next()
	}
}

// exposeHeaders appends the exposed headers without clobbering ones set by
// the CORS middleware.
func exposeHeaders(h http.Header) {
	const key = "Access-Control-Expose-Headers"
	var cur []string
	for _, part := range strings.Split(h.Get(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			cur = append(cur, p)
		}
	}
	for _, name := range exposed {
		if !slices.ContainsFunc(cur, func(s string) bool { return strings.EqualFold(s, name) }) {
			cur = append(cur, name)
		}
	}
	h.Set(key, strings.Join(cur, ", "))
}

// isHTTPS reports whether the request arrived over TLS directly or through a
// proxy that set X-Forwarded-Proto: https.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
