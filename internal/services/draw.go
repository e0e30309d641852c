package services

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-group-bot/internal/domain"
)

// Rand is the randomness the draw engine consumes. *rand.Rand from
// math/rand/v2 satisfies it but is not safe for concurrent use; wrap it with
// NewLockedRand when sharing one across goroutines.
type Rand interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// IntN returns a value in [0, n). n must be positive.
	IntN(n int) int
}

// globalRand draws from the math/rand/v2 top-level functions, which are safe
// for concurrent use.
type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// DefaultRand returns the process-wide random source.
func DefaultRand() Rand { return globalRand{} }

// LockedRand serializes access to a deterministic generator.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRand returns a PCG-backed source seeded with seed.
func NewLockedRand(seed uint64) *LockedRand {
	return &LockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *LockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *LockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Calendar maps the injected clock onto calendar days in a fixed location.
type Calendar struct {
	Now      func() time.Time
	Location *time.Location
}

// Today returns the current day formatted with domain.DateLayout.
func (c Calendar) Today() string {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return now().In(loc).Format(domain.DateLayout)
}

// lockKey names the critical section for one user's draw of one kind.
func lockKey(kind string, groupID, userID int64) string {
	return kind + ":" + strconv.FormatInt(groupID, 10) + ":" + strconv.FormatInt(userID, 10)
}

// Draw outcomes used as metric labels.
const (
	outcomeDrawn        = "drawn"
	outcomeExisting     = "existing"
	outcomeRerolled     = "rerolled"
	outcomeExhausted    = "exhausted"
	outcomeNoCandidates = "no_candidates"
	outcomeNoRecord     = "no_record"
	outcomeError        = "error"
)

var drawsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "groupbot_draws_total",
		Help: "Fortune and lottery draws by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

func init() {
	prometheus.MustRegister(drawsTotal)
}
