package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-group-bot/internal/bot"
	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/http/middleware"
	"github.com/tbourn/go-group-bot/internal/transport"
)

// ---------- stubs ----------

// echoBot answers every message with "echo: <text>" through the sender in
// the context, the way command handlers do.
type echoBot struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (b *echoBot) Dispatch(ctx context.Context, in domain.Inbound) bot.Outcome {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()

	s := transport.FromContext(ctx, nil)
	to := domain.Target{GroupID: in.GroupID, UserID: in.SenderID}
	if in.GroupID != 0 {
		to.UserID = 0
	}
	_ = s.Send(ctx, to, []domain.Segment{domain.Text("echo: " + in.Text)})
	return bot.Outcome{RequestID: "rid-from-ctx", Command: "echo", Executed: true, Err: b.err}
}

// Commands and Middlewares make echoBot a Catalog.
func (b *echoBot) Commands() []bot.Command {
	return []bot.Command{
		{Name: "echo", Description: "repeat", Matcher: bot.Predicate(func(string) (map[string]string, bool) { return nil, true })},
		{Name: "ys", Matcher: bot.Exact("ys", "运势")},
	}
}

func (b *echoBot) Middlewares() []bot.Middleware {
	return []bot.Middleware{
		{Name: "blacklist", Priority: -100, Condition: func(*bot.Context) bool { return true }},
		{Name: "logger", Priority: -50},
	}
}

func (b *echoBot) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

var (
	errStubNotFound = errors.New("not found")
	errStubDup      = errors.New("duplicate")
)

type memEventLog struct {
	mu      sync.Mutex
	events  map[string]domain.ProcessedEvent
	saveErr error
}

func newMemEventLog() *memEventLog {
	return &memEventLog{events: map[string]domain.ProcessedEvent{}}
}

func (l *memEventLog) Get(_ context.Context, key string, _ time.Time) (*domain.ProcessedEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, found := l.events[key]
	if !found {
		return nil, errStubNotFound
	}
	return &ev, nil
}

func (l *memEventLog) Save(_ context.Context, ev *domain.ProcessedEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.saveErr != nil {
		return l.saveErr
	}
	if _, dup := l.events[ev.Key]; dup {
		return errStubDup
	}
	l.events[ev.Key] = *ev
	return nil
}

func (l *memEventLog) IsNotFound(err error) bool  { return errors.Is(err, errStubNotFound) }
func (l *memEventLog) IsDuplicate(err error) bool { return errors.Is(err, errStubDup) }

type memRoster struct {
	groups map[int64][]domain.Member
	err    error
}

func (r *memRoster) GetMember(_ context.Context, gid, uid int64) (*domain.Member, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, m := range r.groups[gid] {
		if m.UserID == uid {
			return &m, nil
		}
	}
	return nil, errStubNotFound
}

func (r *memRoster) UpsertMember(_ context.Context, m domain.Member) error {
	if r.err != nil {
		return r.err
	}
	for i, have := range r.groups[m.GroupID] {
		if have.UserID == m.UserID {
			r.groups[m.GroupID][i] = m
			return nil
		}
	}
	r.groups[m.GroupID] = append(r.groups[m.GroupID], m)
	return nil
}

func (r *memRoster) RemoveMember(_ context.Context, gid, uid int64) error {
	if r.err != nil {
		return r.err
	}
	for i, m := range r.groups[gid] {
		if m.UserID == uid {
			r.groups[gid] = append(r.groups[gid][:i], r.groups[gid][i+1:]...)
			return nil
		}
	}
	return errStubNotFound
}

func (r *memRoster) IsNotFound(err error) bool { return errors.Is(err, errStubNotFound) }

func (r *memRoster) ListMembers(_ context.Context, gid int64) ([]domain.Member, error) {
	return r.groups[gid], r.err
}

func (r *memRoster) ReplaceMembers(_ context.Context, gid int64, ms []domain.Member) error {
	if r.err != nil {
		return r.err
	}
	r.groups[gid] = ms
	return nil
}

// stubDay is the current day the history stubs report.
const stubDay = "2024-05-01"

type stubFortune struct {
	records []domain.FortuneRecord
	err     error
}

func (stubFortune) Day() string { return stubDay }

func (s stubFortune) ListDay(_ context.Context, gid int64, date string) ([]domain.FortuneRecord, error) {
	var out []domain.FortuneRecord
	for _, r := range s.records {
		if r.GroupID == gid && (date == "" || r.Date == date) {
			out = append(out, r)
		}
	}
	return out, s.err
}

func (s stubFortune) WeightTable(context.Context) ([]domain.FortuneWeight, error) {
	return domain.DefaultFortuneWeights(), s.err
}

type stubLottery struct{ records []domain.LotteryRecord }

func (stubLottery) Day() string { return stubDay }

func (s stubLottery) ListDay(_ context.Context, gid int64, date string) ([]domain.LotteryRecord, error) {
	var out []domain.LotteryRecord
	for _, r := range s.records {
		if r.GroupID == gid && r.Date == date {
			out = append(out, r)
		}
	}
	return out, nil
}

// ---------- router ----------

type fixture struct {
	r      *gin.Engine
	bot    *echoBot
	events *memEventLog
	roster *memRoster
}

func newFixture(t *testing.T, fortune stubFortune, lottery stubLottery) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		bot:    &echoBot{},
		events: newMemEventLog(),
		roster: &memRoster{groups: map[int64][]domain.Member{}},
	}
	h := New(f.bot, f.events, f.roster, fortune, lottery)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.POST("/events", h.PostEvent)
	r.GET("/commands", h.ListCommands)
	r.GET("/groups/:id/members", h.ListMembers)
	r.PUT("/groups/:id/members", h.ReplaceMembers)
	r.GET("/groups/:id/members/:user_id", h.GetMember)
	r.PUT("/groups/:id/members/:user_id", h.UpsertMember)
	r.DELETE("/groups/:id/members/:user_id", h.RemoveMember)
	r.GET("/groups/:id/fortunes", h.ListFortunes)
	r.GET("/groups/:id/lottery", h.ListLottery)
	r.GET("/fortune/weights", h.FortuneWeights)
	f.r = r
	return f
}

func (f *fixture) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v; body=%s", err, w.Body.String())
	}
	return v
}
