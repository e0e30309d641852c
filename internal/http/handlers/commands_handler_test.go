package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-group-bot/internal/bot"
	"github.com/tbourn/go-group-bot/internal/domain"
)

// plainBot dispatches but exposes no catalog.
type plainBot struct{}

func (plainBot) Dispatch(context.Context, domain.Inbound) bot.Outcome { return bot.Outcome{} }

func TestListCommands(t *testing.T) {
	f := newFixture(t, stubFortune{}, stubLottery{})

	w := f.do(http.MethodGet, "/commands", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	resp := decode[CatalogResponse](t, w)
	if len(resp.Commands) != 2 || len(resp.Middlewares) != 2 {
		t.Fatalf("unexpected catalog: %+v", resp)
	}
	echo, ys := resp.Commands[0], resp.Commands[1]
	if echo.Name != "echo" || echo.Match != "predicate" || echo.Description != "repeat" {
		t.Fatalf("unexpected first command: %+v", echo)
	}
	if ys.Match != "exact" || len(ys.Aliases) != 2 || ys.Aliases[1] != "运势" {
		t.Fatalf("unexpected exact command: %+v", ys)
	}
	if mw := resp.Middlewares[0]; mw.Name != "blacklist" || mw.Priority != -100 || !mw.Conditional {
		t.Fatalf("unexpected middleware: %+v", mw)
	}
	if mw := resp.Middlewares[1]; mw.Conditional {
		t.Fatalf("logger has no condition: %+v", mw)
	}
}

func TestListCommands_NoCatalog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := New(plainBot{}, newMemEventLog(), &memRoster{groups: map[int64][]domain.Member{}}, stubFortune{}, stubLottery{})
	r := gin.New()
	r.GET("/commands", h.ListCommands)

	f := &fixture{r: r}
	w := f.do(http.MethodGet, "/commands", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if !bytesContains(w.Body.Bytes(), `"commands":[]`) || !bytesContains(w.Body.Bytes(), `"middlewares":[]`) {
		t.Fatalf("empty catalog must serialize as arrays: %s", w.Body.String())
	}
}
