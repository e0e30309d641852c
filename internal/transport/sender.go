// Package transport is the boundary to the chat gateway. The bot only needs
// to send segment lists to a group or a user; the wire protocol lives behind
// Sender.
package transport

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-group-bot/internal/domain"
)

// ErrNoTarget is returned for a target with neither group nor user.
var ErrNoTarget = errors.New("outbound target is empty")

// Sender delivers an outbound message.
type Sender interface {
	Send(ctx context.Context, to domain.Target, segments []domain.Segment) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, to domain.Target, segments []domain.Segment) error

func (f SenderFunc) Send(ctx context.Context, to domain.Target, segments []domain.Segment) error {
	return f(ctx, to, segments)
}

func validate(to domain.Target) error {
	if to.GroupID == 0 && to.UserID == 0 {
		return ErrNoTarget
	}
	return nil
}

// Recorder buffers outbound messages in memory. The HTTP event endpoint uses
// one per request to return what a dispatch would have sent.
//
// This type is safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	sent []domain.Outbound
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Send(ctx context.Context, to domain.Target, segments []domain.Segment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(to); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, domain.Outbound{Target: to, Segments: slices.Clone(segments)})
	return nil
}

// Messages returns a copy of everything sent so far.
func (r *Recorder) Messages() []domain.Outbound {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.sent)
}

// Reset drops the buffer.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.sent = nil
	r.mu.Unlock()
}

// LogSender writes outbound messages to a logger instead of a gateway. It is
// the sender used when the bot runs without a transport attached.
type LogSender struct {
	Logger zerolog.Logger
}

// NewLogSender returns a sender logging at info level to l.
func NewLogSender(l zerolog.Logger) *LogSender { return &LogSender{Logger: l} }

func (s *LogSender) Send(ctx context.Context, to domain.Target, segments []domain.Segment) error {
	if err := validate(to); err != nil {
		return err
	}
	arr := zerolog.Arr()
	for _, seg := range segments {
		arr = arr.Dict(zerolog.Dict().
			Str("type", string(seg.Type)).
			Str("text", seg.Text).
			Str("file", seg.File).
			Int64("message_id", seg.MessageID))
	}
	s.Logger.Info().Ctx(ctx).
		Int64("group_id", to.GroupID).
		Int64("user_id", to.UserID).
		Array("segments", arr).
		Msg("outbound message")
	return nil
}

// Tee sends to every sender in order and returns the first error.
type Tee []Sender

func (t Tee) Send(ctx context.Context, to domain.Target, segments []domain.Segment) error {
	var first error
	for _, s := range t {
		if err := s.Send(ctx, to, segments); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type senderKey struct{}

// WithSender returns a context that routes replies to s instead of the
// configured sender.
func WithSender(ctx context.Context, s Sender) context.Context {
	return context.WithValue(ctx, senderKey{}, s)
}

// FromContext returns the sender set by WithSender, or fallback.
func FromContext(ctx context.Context, fallback Sender) Sender {
	if s, ok := ctx.Value(senderKey{}).(Sender); ok && s != nil {
		return s
	}
	return fallback
}
