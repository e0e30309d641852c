// Package bot implements message dispatch: a command router, a priority
// ordered middleware pipeline and the dispatcher that drives both for every
// inbound message.
package bot

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-group-bot/internal/domain"
)

// Scratch keys shared between middlewares and handlers.
const (
	// KeyBlacklisted is set to true for senders on the blacklist.
	KeyBlacklisted = "blacklisted"
)

// Context carries one inbound message through matching, middlewares and the
// command handler. It is created per message and never shared, so it is not
// safe for concurrent use.
type Context struct {
	ctx       context.Context
	msg       domain.Inbound
	requestID string
	logger    zerolog.Logger
	values    map[string]any
	match     *Match
}

// NewContext builds a dispatch context. The logger is enriched with the
// request id and the sender and group ids.
func NewContext(ctx context.Context, msg domain.Inbound, requestID string, base zerolog.Logger) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	lc := base.With().
		Str("request_id", requestID).
		Int64("sender_id", msg.SenderID)
	if msg.IsGroup() {
		lc = lc.Int64("group_id", msg.GroupID)
	}
	return &Context{
		ctx:       ctx,
		msg:       msg,
		requestID: requestID,
		logger:    lc.Logger(),
		values:    make(map[string]any),
	}
}

// Context returns the standard context for blocking calls.
func (c *Context) Context() context.Context { return c.ctx }

// Message returns the inbound message.
func (c *Context) Message() domain.Inbound { return c.msg }

// SenderID is a shortcut for Message().SenderID.
func (c *Context) SenderID() int64 { return c.msg.SenderID }

// GroupID returns the group id and whether the message came from a group.
func (c *Context) GroupID() (int64, bool) { return c.msg.GroupID, c.msg.IsGroup() }

// RequestID identifies this dispatch in logs.
func (c *Context) RequestID() string { return c.requestID }

// Logger returns the request-scoped logger.
func (c *Context) Logger() *zerolog.Logger { return &c.logger }

// Set stores a scratch value.
func (c *Context) Set(key string, v any) { c.values[key] = v }

// Get returns a scratch value.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Bool returns a scratch value as a bool; missing or non-bool values are false.
func (c *Context) Bool(key string) bool {
	v, _ := c.values[key].(bool)
	return v
}

// Match returns the command matched for this message, if any.
func (c *Context) Match() (Match, bool) {
	if c.match == nil {
		return Match{}, false
	}
	return *c.match, true
}

// Param returns a match parameter or "".
func (c *Context) Param(key string) string {
	if c.match == nil {
		return ""
	}
	return c.match.Params[key]
}

func (c *Context) setMatch(m Match) {
	c.match = &m
	c.logger = c.logger.With().Str("command", m.Command).Logger()
}
