// Command catalog HTTP handler.
//
//   - GET /commands   (registered commands and the middleware chain)
//
// Gateways use it to render help text; operators use it to check which
// aliases and middlewares a deployment loaded.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-group-bot/internal/bot"
)

// CommandInfo describes one registered command.
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	// Match is the matcher kind: exact, pattern or predicate.
	Match   string   `json:"match"`
	Aliases []string `json:"aliases,omitempty"`
	Pattern string   `json:"pattern,omitempty"`
}

// MiddlewareInfo describes one pipeline stage.
type MiddlewareInfo struct {
	Name        string `json:"name"`
	Priority    int    `json:"priority"`
	Conditional bool   `json:"conditional"`
}

// CatalogResponse lists commands in match order and middlewares in
// execution order.
type CatalogResponse struct {
	Commands    []CommandInfo    `json:"commands"`
	Middlewares []MiddlewareInfo `json:"middlewares"`
}

func commandInfo(cmd bot.Command) CommandInfo {
	info := CommandInfo{
		Name:        cmd.Name,
		Description: cmd.Description,
		Match:       cmd.Matcher.Kind.String(),
	}
	switch cmd.Matcher.Kind {
	case bot.MatchExact:
		info.Aliases = cmd.Matcher.Literals
	case bot.MatchPattern:
		if cmd.Matcher.Pattern != nil {
			info.Pattern = cmd.Matcher.Pattern.String()
		}
	}
	return info
}

// ListCommands returns the bot's command catalog. Without a catalog both
// lists are empty.
func (h *Handlers) ListCommands(c *gin.Context) {
	resp := CatalogResponse{Commands: []CommandInfo{}, Middlewares: []MiddlewareInfo{}}
	if h.catalog != nil {
		for _, cmd := range h.catalog.Commands() {
			resp.Commands = append(resp.Commands, commandInfo(cmd))
		}
		for _, m := range h.catalog.Middlewares() {
			resp.Middlewares = append(resp.Middlewares, MiddlewareInfo{
				Name:        m.Name,
				Priority:    m.Priority,
				Conditional: m.Condition != nil,
			})
		}
	}
	ok(c, http.StatusOK, resp)
}
