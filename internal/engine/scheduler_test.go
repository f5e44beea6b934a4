package engine

import (
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"giveabot/lib/clock"
)

type fireRecorder struct {
	mu    sync.Mutex
	fired []int64
}

func (r *fireRecorder) fire(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, id)
}

func (r *fireRecorder) ids() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.fired...)
}

func testScheduler(t *testing.T) (*Scheduler, *fireRecorder, *clock.Manual) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	rec := &fireRecorder{}
	s := NewScheduler(clk, log, rec.fire)
	s.Run()
	t.Cleanup(s.Stop)
	return s, rec, clk
}

func TestScheduler_FiresAtDeadline(t *testing.T) {
	s, rec, clk := testScheduler(t)

	s.Schedule(1, clk.Now().Add(30*time.Minute))

	clk.Advance(29 * time.Minute)
	require.Never(t, func() bool { return len(rec.ids()) > 0 },
		50*time.Millisecond, 10*time.Millisecond, "must not fire early")

	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return len(rec.ids()) == 1 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, []int64{1}, rec.ids())
}

func TestScheduler_FiresInDeadlineOrder(t *testing.T) {
	s, rec, clk := testScheduler(t)

	s.Schedule(1, clk.Now().Add(time.Hour))
	s.Schedule(2, clk.Now().Add(10*time.Minute))
	s.Schedule(3, clk.Now().Add(30*time.Minute))

	clk.Advance(2 * time.Hour)
	require.Eventually(t, func() bool { return len(rec.ids()) == 3 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, []int64{2, 3, 1}, rec.ids())
}

func TestScheduler_Cancel(t *testing.T) {
	s, rec, clk := testScheduler(t)

	s.Schedule(1, clk.Now().Add(10*time.Minute))
	s.Schedule(2, clk.Now().Add(20*time.Minute))
	s.Cancel(1)

	clk.Advance(time.Hour)
	require.Eventually(t, func() bool { return len(rec.ids()) == 1 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, []int64{2}, rec.ids())
}

func TestScheduler_CancelUnknownIsNoop(t *testing.T) {
	s, _, _ := testScheduler(t)
	s.Cancel(99)
}

func TestScheduler_Rearm(t *testing.T) {
	s, rec, clk := testScheduler(t)

	s.Schedule(1, clk.Now().Add(10*time.Minute))
	s.Schedule(1, clk.Now().Add(time.Hour))

	clk.Advance(30 * time.Minute)
	require.Never(t, func() bool { return len(rec.ids()) > 0 },
		50*time.Millisecond, 10*time.Millisecond, "old deadline must be superseded")

	clk.Advance(time.Hour)
	require.Eventually(t, func() bool { return len(rec.ids()) == 1 },
		time.Second, 10*time.Millisecond)
}

func TestScheduler_PastDeadlineFiresImmediately(t *testing.T) {
	s, rec, clk := testScheduler(t)

	s.Schedule(1, clk.Now().Add(-time.Minute))
	require.Eventually(t, func() bool { return len(rec.ids()) == 1 },
		time.Second, 10*time.Millisecond)
}
