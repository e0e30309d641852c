package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-group-bot/internal/domain"
	"github.com/tbourn/go-group-bot/internal/keylock"
	"github.com/tbourn/go-group-bot/internal/store"
)

// ----- Test doubles -----

// seqRand replays fixed values; IntN returns the next index modulo n.
type seqRand struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (r *seqRand) Float64() float64 {
	v := r.floats[r.fi%len(r.floats)]
	r.fi++
	return v
}

func (r *seqRand) IntN(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[r.ii%len(r.ints)] % n
	r.ii++
	return v
}

// fakeClock is a settable clock.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)}
}

func fileStore[T any](t *testing.T, name string) *store.FileStore[T] {
	t.Helper()
	s, err := store.NewFileStore[T](filepath.Join(t.TempDir(), name+".json"), store.JSONCodec{})
	require.NoError(t, err)
	return s
}

func readBytes(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func newFortune(t *testing.T, clock *fakeClock, rng Rand) (*FortuneService, *store.FileStore[domain.FortuneRecord]) {
	t.Helper()
	records := fileStore[domain.FortuneRecord](t, "fortune")
	weights := fileStore[domain.FortuneWeight](t, "fortune_weights")
	svc := NewFortuneService(records, weights)
	svc.Calendar = Calendar{Now: clock.Now, Location: time.UTC}
	svc.Rand = rng
	return svc, records
}

func newLottery(t *testing.T, clock *fakeClock, rng Rand) (*LotteryService, *store.FileStore[domain.LotteryRecord]) {
	t.Helper()
	records := fileStore[domain.LotteryRecord](t, "lottery")
	svc := NewLotteryService(records)
	svc.Calendar = Calendar{Now: clock.Now, Location: time.UTC}
	svc.Rand = rng
	svc.Locks = keylock.New()
	return svc, records
}

func TestCalendar_TodayUsesLocation(t *testing.T) {
	// 23:30 UTC is already the next day at UTC+8.
	at := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	now := func() time.Time { return at }

	require.Equal(t, "2024-05-01", Calendar{Now: now, Location: time.UTC}.Today())
	require.Equal(t, "2024-05-02", Calendar{Now: now, Location: time.FixedZone("CST", 8*3600)}.Today())
}

func TestLockKey(t *testing.T) {
	require.Equal(t, "lottery:10:1", lockKey(domain.KindLottery, 10, 1))
	require.NotEqual(t, lockKey(domain.KindFortune, 10, 1), lockKey(domain.KindLottery, 10, 1))
}

func TestLockedRand_Deterministic(t *testing.T) {
	a, b := NewLockedRand(7), NewLockedRand(7)
	for i := 0; i < 10; i++ {
		require.Equal(t, a.IntN(1000), b.IntN(1000))
		require.Equal(t, a.Float64(), b.Float64())
	}
}
