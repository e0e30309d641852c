package bot

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-group-bot/internal/domain"
)

// Outcome summarizes one dispatch.
type Outcome struct {
	RequestID string
	// Command is the matched command name, empty when nothing matched.
	Command string
	// Executed reports whether the command handler was invoked.
	Executed bool
	// Err is the first error raised by a middleware or the handler.
	Err error
}

// Dispatcher routes inbound messages through the pipeline to their command.
type Dispatcher struct {
	Router   *Router
	Pipeline *Pipeline
	// Logger is the base for request-scoped loggers; the global logger
	// when unset.
	Logger *zerolog.Logger
	// NewRequestID generates dispatch ids; UUIDv4 when unset.
	NewRequestID func() string
}

// NewDispatcher wires a router and a pipeline.
func NewDispatcher(r *Router, p *Pipeline) *Dispatcher {
	return &Dispatcher{Router: r, Pipeline: p}
}

// Commands returns the router's commands in match order.
func (d *Dispatcher) Commands() []Command { return d.Router.Commands() }

// Middlewares returns the pipeline in execution order.
func (d *Dispatcher) Middlewares() []Middleware { return d.Pipeline.Middlewares() }

// Dispatch handles one message. Matching always runs; a halting middleware
// only keeps the handler from running. Errors and panics are logged with the
// request id and reported in the outcome, never propagated.
func (d *Dispatcher) Dispatch(ctx context.Context, in domain.Inbound) (out Outcome) {
	if ctx == nil {
		ctx = context.Background()
	}
	out.RequestID = d.requestID(ctx)

	tr := otel.Tracer("bot/Dispatcher")
	ctx, span := tr.Start(ctx, "Dispatch",
		trace.WithAttributes(
			attribute.String("request.id", out.RequestID),
			attribute.Int64("message.id", in.MessageID),
			attribute.Int64("sender.id", in.SenderID),
			attribute.Int64("group.id", in.GroupID),
		),
	)
	defer span.End()

	base := log.Logger
	if d.Logger != nil {
		base = *d.Logger
	}
	c := NewContext(ctx, in, out.RequestID, base)

	defer func() {
		if r := recover(); r != nil {
			out.Err = &PanicError{Value: r}
			c.Logger().Error().Interface("panic", r).Msg("dispatch panicked")
		}
		if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		}
	}()

	var terminal HandlerFunc
	if d.Router != nil {
		if m, ok := d.Router.Match(in.Text); ok {
			c.setMatch(m)
			out.Command = m.Command
			terminal = m.handler
			span.SetAttributes(attribute.String("command", m.Command))
		}
	}

	pipe := d.Pipeline
	if pipe == nil {
		pipe = NewPipeline()
	}
	out.Executed, out.Err = pipe.Run(c, terminal)

	if out.Err != nil {
		ev := c.Logger().Error().Err(out.Err)
		var pe *PanicError
		if errors.As(out.Err, &pe) && len(pe.Stack) > 0 {
			ev = ev.Bytes("stack", pe.Stack)
		}
		ev.Msg("dispatch failed")
	}
	return out
}

type requestIDKey struct{}

// WithRequestID makes Dispatch reuse id instead of generating one, so a
// dispatch shares the correlation id of the request that triggered it.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func (d *Dispatcher) requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	if d.NewRequestID != nil {
		return d.NewRequestID()
	}
	return uuid.NewString()
}
