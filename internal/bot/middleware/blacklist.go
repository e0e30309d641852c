// Package middleware contains the bot pipeline middlewares: blacklist
// tagging, per-sender rate limiting, Prometheus instrumentation and message
// logging. Each constructor returns a bot.Middleware with its default
// priority; lower priorities run first.
package middleware

import (
	"github.com/tbourn/go-group-bot/internal/bot"
)

// Default priorities.
const (
	PriorityBlacklist = -100
	PriorityRateLimit = -90
	PriorityMetrics   = -80
	PriorityLogger    = -50
)

// BlacklistMode selects what happens to a blacklisted sender.
type BlacklistMode string

const (
	// BlacklistTag marks the context and lets the message through.
	BlacklistTag BlacklistMode = "tag"
	// BlacklistBlock marks the context and halts the pipeline.
	BlacklistBlock BlacklistMode = "block"
)

// BlacklistConfig lists monitored senders per monitored group. A sender is
// blacklisted only in the listed groups.
type BlacklistConfig struct {
	Users  []int64
	Groups []int64
	Mode   BlacklistMode
}

// Blacklist tags (and in block mode halts) group messages from listed
// senders in listed groups. Handlers read the tag with
// c.Bool(bot.KeyBlacklisted).
func Blacklist(cfg BlacklistConfig) bot.Middleware {
	users := toSet(cfg.Users)
	groups := toSet(cfg.Groups)
	block := cfg.Mode == BlacklistBlock

	return bot.Middleware{
		Name:     "blacklist",
		Priority: PriorityBlacklist,
		Condition: func(c *bot.Context) bool {
			_, ok := c.GroupID()
			return ok
		},
		Handler: func(c *bot.Context) (bot.Step, error) {
			gid, _ := c.GroupID()
			if _, ok := users[c.SenderID()]; !ok {
				return bot.Next(), nil
			}
			if _, ok := groups[gid]; !ok {
				return bot.Next(), nil
			}

			c.Set(bot.KeyBlacklisted, true)
			c.Logger().Info().Bool("block", block).Msg("blacklisted sender")
			if block {
				return bot.Stop(), nil
			}
			return bot.Next(), nil
		},
	}
}

func toSet(ids []int64) map[int64]struct{} {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
