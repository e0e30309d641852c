package middleware

import (
	"time"
	"unicode/utf8"

	"github.com/tbourn/go-group-bot/internal/bot"
)

// maxTextLogLength caps the number of bytes of message text logged.
const maxTextLogLength = 512

// Logger logs every inbound message and, once the inner layers finish, the
// command outcome. Errors are logged by the dispatcher, so the after phase
// only records latency.
func Logger() bot.Middleware {
	return bot.Middleware{
		Name:     "logger",
		Priority: PriorityLogger,
		Handler: func(c *bot.Context) (bot.Step, error) {
			msg := c.Message()
			start := time.Now()

			ev := c.Logger().Info().
				Str("nickname", msg.SenderNickname).
				Str("text", truncate(msg.Text, maxTextLogLength)).
				Bool("private", !msg.IsGroup())
			if m, ok := c.Match(); ok {
				ev = ev.Str("matched", m.Command)
			}
			ev.Msg("message")

			return bot.Around(func(c *bot.Context, err error) {
				if _, ok := c.Match(); !ok {
					return
				}
				c.Logger().Debug().
					Dur("latency", time.Since(start)).
					Bool("failed", err != nil).
					Msg("command done")
			}), nil
		},
	}
}

// truncate returns s limited to max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
