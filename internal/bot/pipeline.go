package bot

import (
	"cmp"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sync"
)

// ErrNilMiddleware is returned by Use for a middleware without a handler.
var ErrNilMiddleware = errors.New("middleware handler is nil")

// Verdict tells the pipeline whether to go on after a middleware.
type Verdict int

const (
	// Continue moves on to the next middleware, or the command handler.
	Continue Verdict = iota
	// Halt stops the walk; the command handler does not run.
	Halt
)

// Step is a middleware's result. After, when set, runs once the inner
// layers are done, innermost first, and sees their error.
type Step struct {
	Verdict Verdict
	After   func(c *Context, err error)
}

// Next continues without an after phase.
func Next() Step { return Step{Verdict: Continue} }

// Stop halts the pipeline.
func Stop() Step { return Step{Verdict: Halt} }

// Around continues and registers after as the after phase.
func Around(after func(c *Context, err error)) Step {
	return Step{Verdict: Continue, After: after}
}

// MiddlewareFunc is a middleware's before phase.
type MiddlewareFunc func(c *Context) (Step, error)

// Middleware is a registered interceptor. Lower Priority runs first; equal
// priorities keep registration order. A nil Condition always applies.
type Middleware struct {
	Name      string
	Priority  int
	Condition func(c *Context) bool
	Handler   MiddlewareFunc
}

// PanicError wraps a panic raised by a middleware or command handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Pipeline runs middlewares around a terminal handler.
//
// This type is safe for concurrent use.
type Pipeline struct {
	mu  sync.RWMutex
	mws []Middleware
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline { return &Pipeline{} }

// Use registers m and keeps the chain sorted by priority.
func (p *Pipeline) Use(m Middleware) error {
	if m.Handler == nil {
		return fmt.Errorf("%w: %q", ErrNilMiddleware, m.Name)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mws = append(p.mws, m)
	slices.SortStableFunc(p.mws, func(a, b Middleware) int { return cmp.Compare(a.Priority, b.Priority) })
	return nil
}

// Middlewares returns the chain in execution order.
func (p *Pipeline) Middlewares() []Middleware {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.mws)
}

// active returns the middlewares whose condition holds for c.
func (p *Pipeline) active(c *Context) []Middleware {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Middleware, 0, len(p.mws))
	for _, m := range p.mws {
		if m.Condition == nil || m.Condition(c) {
			out = append(out, m)
		}
	}
	return out
}

// Run walks the active middlewares in order and, unless one halts or fails,
// calls terminal. After phases unwind in reverse. ran reports whether
// terminal was called; a nil terminal is never called. Panics are returned
// as *PanicError.
func (p *Pipeline) Run(c *Context, terminal HandlerFunc) (ran bool, err error) {
	chain := p.active(c)
	afters := make([]func(*Context, error), 0, len(chain))

	halted := false
	for i := 0; i < len(chain); i++ {
		m := chain[i]
		step, stepErr := callMiddleware(m.Handler, c)
		if step.After != nil {
			afters = append(afters, step.After)
		}
		if stepErr != nil {
			err = fmt.Errorf("middleware %s: %w", m.Name, stepErr)
			break
		}
		if step.Verdict == Halt {
			halted = true
			c.Logger().Debug().Str("middleware", m.Name).Msg("pipeline halted")
			break
		}
	}

	if err == nil && !halted && terminal != nil {
		ran = true
		err = callHandler(terminal, c)
	}

	for i := len(afters) - 1; i >= 0; i-- {
		callAfter(afters[i], c, err)
	}
	return ran, err
}

func callMiddleware(fn MiddlewareFunc, c *Context) (step Step, err error) {
	defer func() {
		if r := recover(); r != nil {
			step, err = Step{Verdict: Halt}, &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(c)
}

func callHandler(fn HandlerFunc, c *Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(c)
}

func callAfter(fn func(*Context, error), c *Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.Logger().Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("middleware after phase panicked")
		}
	}()
	fn(c, err)
}
