package bot

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
)

var (
	// ErrDuplicateCommand is returned when a command name is registered twice.
	ErrDuplicateCommand = errors.New("command already registered")
	// ErrInvalidCommand is returned for a command without name, handler or
	// usable matcher.
	ErrInvalidCommand = errors.New("invalid command definition")
)

// HandlerFunc runs a matched command.
type HandlerFunc func(c *Context) error

// MatchKind selects how a Matcher tests message text.
type MatchKind int

const (
	// MatchExact compares the text against a set of literals.
	MatchExact MatchKind = iota + 1
	// MatchPattern searches the text with a regular expression.
	MatchPattern
	// MatchPredicate delegates to a function.
	MatchPredicate
)

func (k MatchKind) String() string {
	switch k {
	case MatchExact:
		return "exact"
	case MatchPattern:
		return "pattern"
	case MatchPredicate:
		return "predicate"
	default:
		return "unknown"
	}
}

// PredicateFunc reports whether text matches and may return parameters.
type PredicateFunc func(text string) (params map[string]string, ok bool)

// Matcher decides whether a command applies to a message. Exactly one of the
// fields after Kind is used, chosen by Kind.
type Matcher struct {
	Kind      MatchKind
	Literals  []string
	Pattern   *regexp.Regexp
	Predicate PredicateFunc
}

// Exact matches text equal to one of literals. There is no case folding.
func Exact(literals ...string) Matcher {
	return Matcher{Kind: MatchExact, Literals: literals}
}

// Pattern matches text in which re finds a match.
func Pattern(re *regexp.Regexp) Matcher {
	return Matcher{Kind: MatchPattern, Pattern: re}
}

// Predicate matches when fn returns ok.
func Predicate(fn PredicateFunc) Matcher {
	return Matcher{Kind: MatchPredicate, Predicate: fn}
}

func (m Matcher) valid() bool {
	switch m.Kind {
	case MatchExact:
		return true
	case MatchPattern:
		return m.Pattern != nil
	case MatchPredicate:
		return m.Predicate != nil
	default:
		return false
	}
}

// Match tests already trimmed text. Pattern params hold named groups by name,
// every group by index ("1", "2", ...) and the whole match as "0".
func (m Matcher) Match(text string) (map[string]string, bool) {
	switch m.Kind {
	case MatchExact:
		if slices.Contains(m.Literals, text) {
			return map[string]string{}, true
		}
		return nil, false

	case MatchPattern:
		if m.Pattern == nil {
			return nil, false
		}
		sub := m.Pattern.FindStringSubmatch(text)
		if sub == nil {
			return nil, false
		}
		params := make(map[string]string, len(sub)*2)
		names := m.Pattern.SubexpNames()
		for i, v := range sub {
			params[strconv.Itoa(i)] = v
			if i > 0 && names[i] != "" {
				params[names[i]] = v
			}
		}
		return params, true

	case MatchPredicate:
		if m.Predicate == nil {
			return nil, false
		}
		params, ok := m.Predicate(text)
		if !ok {
			return nil, false
		}
		if params == nil {
			params = map[string]string{}
		}
		return params, true
	}
	return nil, false
}

// Command is a registered command.
type Command struct {
	Name        string
	Description string
	Matcher     Matcher
	Handler     HandlerFunc
}

// Match is the router's verdict for one message.
type Match struct {
	Command string
	Params  map[string]string
	handler HandlerFunc
}

// Router holds commands in registration order; the first match wins.
//
// This type is safe for concurrent use.
type Router struct {
	mu       sync.RWMutex
	commands []Command
	names    map[string]struct{}
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{names: make(map[string]struct{})}
}

// Register adds cmd after the commands already registered.
func (r *Router) Register(cmd Command) error {
	cmd.Name = strings.TrimSpace(cmd.Name)
	if cmd.Name == "" || cmd.Handler == nil || !cmd.Matcher.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, cmd.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.names == nil {
		r.names = make(map[string]struct{})
	}
	if _, dup := r.names[cmd.Name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateCommand, cmd.Name)
	}
	r.names[cmd.Name] = struct{}{}
	r.commands = append(r.commands, cmd)
	return nil
}

// Handle registers a command from its parts.
func (r *Router) Handle(name string, m Matcher, h HandlerFunc) error {
	return r.Register(Command{Name: name, Matcher: m, Handler: h})
}

// Match trims text and returns the first command whose matcher accepts it.
func (r *Router) Match(text string) (Match, bool) {
	text = strings.TrimSpace(text)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, cmd := range r.commands {
		if params, ok := cmd.Matcher.Match(text); ok {
			return Match{Command: cmd.Name, Params: params, handler: cmd.Handler}, true
		}
	}
	return Match{}, false
}

// Commands returns the registered commands in order.
func (r *Router) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.commands)
}
