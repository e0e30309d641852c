// Package commands implements the bot's chat commands on top of the draw
// services: daily fortune, daily lottery and lottery reroll. Handlers are
// registered on a bot.Router; replies go out through a transport.Sender.
package commands

import (
	"context"
	"fmt"

	"github.com/tbourn/go-group-bot/internal/bot"
	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/transport"
)

// Responder composes replies to the message being dispatched.
type Responder struct {
	Sender transport.Sender
}

// target addresses the group a message came from, or its sender for a
// private message.
func target(msg domain.Inbound) domain.Target {
	if msg.IsGroup() {
		return domain.Target{GroupID: msg.GroupID}
	}
	return domain.Target{UserID: msg.SenderID}
}

// Reply sends text, and image when non-empty. Group replies quote the
// original message.
func (r Responder) Reply(c *bot.Context, text, image string) error {
	msg := c.Message()
	segs := make([]domain.Segment, 0, 3)
	if msg.IsGroup() && msg.MessageID != 0 {
		segs = append(segs, domain.Reply(msg.MessageID))
	}
	if text != "" {
		segs = append(segs, domain.Text(text))
	}
	if image != "" {
		segs = append(segs, domain.Image(image))
	}
	return r.send(c.Context(), target(msg), segs)
}

func (r Responder) send(ctx context.Context, to domain.Target, segs []domain.Segment) error {
	s := transport.FromContext(ctx, r.Sender)
	if s == nil {
		return fmt.Errorf("reply to %+v: no sender configured", to)
	}
	if err := s.Send(ctx, to, segs); err != nil {
		return fmt.Errorf("reply to %+v: %w", to, err)
	}
	return nil
}
