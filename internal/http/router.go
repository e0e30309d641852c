// Package httpapi wires the HTTP transport (Gin) to the bot, its services,
// middleware and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, access logging, panic recovery, metrics,
// compression, CORS, security headers, event de-duplication and rate
// limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	botmw "github.com/tbourn/go-group-bot/internal/bot/middleware"
	"github.com/tbourn/go-group-bot/internal/config"
	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/http/handlers"
	"github.com/tbourn/go-group-bot/internal/http/middleware"
	"github.com/tbourn/go-group-bot/internal/repo"
)

// maxBodyBytes caps every request body.
const maxBodyBytes = 1 << 20

// eventLogShim adapts the repo event log functions to handlers.EventLog.
type eventLogShim struct {
	db  *gorm.DB
	ttl time.Duration
}

// Get proxies repo.GetProcessedEvent.
func (s eventLogShim) Get(ctx context.Context, key string, now time.Time) (*domain.ProcessedEvent, error) {
	return repo.GetProcessedEvent(ctx, s.db, key, now)
}

// Save proxies repo.SaveProcessedEvent.
func (s eventLogShim) Save(ctx context.Context, ev *domain.ProcessedEvent) error {
	return repo.SaveProcessedEvent(ctx, s.db, ev, s.ttl)
}

func (eventLogShim) IsNotFound(err error) bool  { return repo.IsNotFound(err) }
func (eventLogShim) IsDuplicate(err error) bool { return errors.Is(err, repo.ErrDuplicate) }

// RosterInvalidator drops a group's cached roster.
type RosterInvalidator interface {
	Invalidate(groupID int64)
}

// rosterShim adapts the repo roster functions to handlers.RosterStore and
// invalidates the lottery's roster cache after every write.
type rosterShim struct {
	db    *gorm.DB
	cache RosterInvalidator
}

// ListMembers proxies repo.ListMembers.
func (s rosterShim) ListMembers(ctx context.Context, groupID int64) ([]domain.Member, error) {
	return repo.ListMembers(ctx, s.db, groupID)
}

// ReplaceMembers proxies repo.ReplaceMembers.
func (s rosterShim) ReplaceMembers(ctx context.Context, groupID int64, members []domain.Member) error {
	if err := repo.ReplaceMembers(ctx, s.db, groupID, members); err != nil {
		return err
	}
	s.invalidate(groupID)
	return nil
}

// GetMember proxies repo.GetMember.
func (s rosterShim) GetMember(ctx context.Context, groupID, userID int64) (*domain.Member, error) {
	return repo.GetMember(ctx, s.db, groupID, userID)
}

// UpsertMember proxies repo.UpsertMember.
func (s rosterShim) UpsertMember(ctx context.Context, m domain.Member) error {
	if err := repo.UpsertMember(ctx, s.db, m); err != nil {
		return err
	}
	s.invalidate(m.GroupID)
	return nil
}

// RemoveMember proxies repo.RemoveMember.
func (s rosterShim) RemoveMember(ctx context.Context, groupID, userID int64) error {
	if err := repo.RemoveMember(ctx, s.db, groupID, userID); err != nil {
		return err
	}
	s.invalidate(groupID)
	return nil
}

func (rosterShim) IsNotFound(err error) bool { return repo.IsNotFound(err) }

func (s rosterShim) invalidate(groupID int64) {
	if s.cache != nil {
		s.cache.Invalidate(groupID)
	}
}

// Deps are the collaborators RegisterRoutes mounts.
type Deps struct {
	// DB holds the roster and the event log.
	DB         *gorm.DB
	Dispatcher handlers.Dispatcher
	// Roster is invalidated when a roster is replaced; may be nil.
	Roster  RosterInvalidator
	Fortune handlers.FortuneReader
	Lottery handlers.LotteryReader
	// EventTTL bounds event replays; repo.DefaultEventTTL when zero.
	EventTTL time.Duration
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine and mounts the gateway and ops API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per gateway/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logs
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit
	r.Use(limitBody(maxBodyBytes))

	// 6) Compress JSON responses; scrapers negotiate their own encoding
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	events := eventLogShim{db: deps.DB, ttl: deps.EventTTL}
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, key string, now time.Time) (bool, error) {
			return repo.EventSeen(ctx, deps.DB, key, now)
		},
	))

	// 9) Token-bucket rate limiter per gateway/IP
	rl := botmw.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, nil)
	r.Use(middleware.RateLimit(rl, middleware.KeyByGatewayOrIP()))

	// 10) CORS posture (allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Gateway-ID", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", middleware.HeaderReplay, "Content-Length"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	h := handlers.New(
		deps.Dispatcher,
		events,
		rosterShim{db: deps.DB, cache: deps.Roster},
		deps.Fortune,
		deps.Lottery,
	)

	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	{
		// Gateway
		api.POST("/events", h.PostEvent)

		// Catalog
		api.GET("/commands", h.ListCommands)

		// Rosters
		api.GET("/groups/:id/members", h.ListMembers)
		api.PUT("/groups/:id/members", h.ReplaceMembers)
		api.GET("/groups/:id/members/:user_id", h.GetMember)
		api.PUT("/groups/:id/members/:user_id", h.UpsertMember)
		api.DELETE("/groups/:id/members/:user_id", h.RemoveMember)

		// Draw history
		api.GET("/groups/:id/fortunes", h.ListFortunes)
		api.GET("/groups/:id/lottery", h.ListLottery)
		api.GET("/fortune/weights", h.FortuneWeights)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
