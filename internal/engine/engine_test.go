package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"giveabot/entity"
	"giveabot/internal/store"
	"giveabot/lib/clock"
)

type notifierRecorder struct {
	mu      sync.Mutex
	results []Result
}

func (n *notifierRecorder) AnnounceResult(res Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, res)
}

func (n *notifierRecorder) all() []Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Result(nil), n.results...)
}

func testEngine(t *testing.T) (*Engine, *store.Store, *clock.Manual, *notifierRecorder) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st, err := store.Open(filepath.Join(t.TempDir(), "bot_data.json"), log, clk)
	require.NoError(t, err)

	e := New(st, log, clk)
	rec := &notifierRecorder{}
	e.SetNotifier(rec)
	e.Start()
	t.Cleanup(e.Stop)
	return e, st, clk, rec
}

func draft(id int64, durationMin int) *entity.Giveaway {
	return &entity.Giveaway{
		Id:       id,
		ChatId:   -100200300,
		Title:    "Prize",
		Gift:     "Premium Account",
		Place:    "Online",
		Info:     "-",
		Duration: durationMin,
	}
}

func TestCreateGiveaway_StampsTiming(t *testing.T) {
	e, st, clk, _ := testEngine(t)

	g := draft(1, 30)
	require.NoError(t, e.CreateGiveaway(g))

	require.True(t, e.IsActive(1))
	require.True(t, g.CreatedAt.Equal(clk.Now()))
	require.NotNil(t, g.EndTime)
	require.True(t, g.EndTime.Equal(clk.Now().Add(30*time.Minute)))

	stored, ok := st.Giveaway(1)
	require.True(t, ok)
	require.Equal(t, entity.StatusActive, stored.Status)
}

func TestCreateGiveaway_UnlimitedHasNoEndTime(t *testing.T) {
	e, _, _, _ := testEngine(t)

	g := draft(1, 0)
	require.NoError(t, e.CreateGiveaway(g))
	require.Nil(t, g.EndTime)
	require.True(t, g.Unlimited())
}

func TestJoin_Dedupe(t *testing.T) {
	e, st, _, _ := testEngine(t)
	require.NoError(t, e.CreateGiveaway(draft(1, 30)))

	res := e.Join(1, 42, "Alice")
	require.Equal(t, Joined, res.Outcome)
	require.Equal(t, 1, res.Count)

	res = e.Join(1, 42, "Alice")
	require.Equal(t, AlreadyJoined, res.Outcome)
	require.Equal(t, 1, res.Count)
	require.Equal(t, 1, e.ParticipantCount(1))
	require.Equal(t, 1, st.ParticipantCount(1))

	res = e.Join(99, 42, "Alice")
	require.Equal(t, GiveawayNotFound, res.Outcome)
}

func TestTerminate_ManualWithWinner(t *testing.T) {
	e, st, _, rec := testEngine(t)
	e.pick = func(n int) int { return n - 1 }

	require.NoError(t, e.CreateGiveaway(draft(1, 30)))
	e.Join(1, 10, "Alice")
	e.Join(1, 20, "Bob")
	e.Join(1, 30, "Carol")

	res, ok := e.Terminate(1, ReasonManual)
	require.True(t, ok)
	require.Equal(t, ReasonManual, res.Reason)
	require.Equal(t, 3, res.Participants)
	require.Equal(t, int64(30), res.WinnerId, "pick indexes the sorted participant ids")

	require.False(t, e.IsActive(1))
	_, found := st.Giveaway(1)
	require.False(t, found)
	require.Len(t, st.CompletedGiveaways(), 1)
	require.Len(t, st.WinnersHistory(), 1)
	require.Equal(t, int64(30), st.WinnersHistory()[0].UserId)

	results := rec.all()
	require.Len(t, results, 1)
	require.Equal(t, int64(30), results[0].WinnerId)
}

func TestTerminate_NoParticipants(t *testing.T) {
	e, st, _, rec := testEngine(t)
	require.NoError(t, e.CreateGiveaway(draft(1, 30)))

	res, ok := e.Terminate(1, ReasonManual)
	require.True(t, ok)
	require.Zero(t, res.WinnerId)
	require.Empty(t, st.WinnersHistory())
	require.Len(t, rec.all(), 1)
}

func TestTerminate_Idempotent(t *testing.T) {
	e, _, _, rec := testEngine(t)
	require.NoError(t, e.CreateGiveaway(draft(1, 30)))

	_, ok := e.Terminate(1, ReasonManual)
	require.True(t, ok)
	_, ok = e.Terminate(1, ReasonManual)
	require.False(t, ok, "second terminate must be a no-op")
	require.Len(t, rec.all(), 1, "only one announcement")
}

func TestTerminate_ConcurrentSingleWinner(t *testing.T) {
	e, st, _, rec := testEngine(t)
	require.NoError(t, e.CreateGiveaway(draft(1, 30)))
	e.Join(1, 10, "Alice")

	const callers = 8
	var wg sync.WaitGroup
	won := make(chan Reason, callers)
	for i := 0; i < callers; i++ {
		reason := ReasonManual
		if i%2 == 0 {
			reason = ReasonAutomatic
		}
		wg.Add(1)
		go func(r Reason) {
			defer wg.Done()
			if _, ok := e.Terminate(1, r); ok {
				won <- r
			}
		}(reason)
	}
	wg.Wait()
	close(won)

	var winners int
	for range won {
		winners++
	}
	require.Equal(t, 1, winners, "exactly one caller completes the termination")
	require.Len(t, rec.all(), 1)
	require.Len(t, st.CompletedGiveaways(), 1)
	require.Len(t, st.WinnersHistory(), 1)
}

func TestAutomaticTermination(t *testing.T) {
	e, _, clk, rec := testEngine(t)
	require.NoError(t, e.CreateGiveaway(draft(1, 30)))
	e.Join(1, 10, "Alice")

	clk.Advance(29 * time.Minute)
	require.Never(t, func() bool { return len(rec.all()) > 0 },
		50*time.Millisecond, 10*time.Millisecond)

	clk.Advance(time.Minute)
	require.Eventually(t, func() bool { return len(rec.all()) == 1 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, ReasonAutomatic, rec.all()[0].Reason)
	require.False(t, e.IsActive(1))
}

func TestUnlimitedNeverAutoTerminates(t *testing.T) {
	e, _, clk, rec := testEngine(t)
	require.NoError(t, e.CreateGiveaway(draft(1, 0)))

	clk.Advance(1000 * time.Hour)
	require.Never(t, func() bool { return len(rec.all()) > 0 },
		50*time.Millisecond, 10*time.Millisecond)
	require.True(t, e.IsActive(1))
}

func TestRecover_RearmsAndExpiresOffline(t *testing.T) {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	dir := t.TempDir()
	path := filepath.Join(dir, "bot_data.json")
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	st, err := store.Open(path, log, clk)
	require.NoError(t, err)
	first := New(st, log, clk)
	first.Start()
	require.NoError(t, first.CreateGiveaway(draft(1, 30)))  // will be overdue
	require.NoError(t, first.CreateGiveaway(draft(2, 120))) // still running after restart
	require.NoError(t, first.CreateGiveaway(draft(3, 0)))   // unbounded
	first.Join(1, 10, "Alice")
	first.Join(2, 20, "Bob")
	first.Stop()

	// simulate downtime past giveaway 1's deadline
	clk.Advance(time.Hour)

	st2, err := store.Open(path, log, clk)
	require.NoError(t, err)
	e := New(st2, log, clk)
	rec := &notifierRecorder{}
	e.SetNotifier(rec)
	e.Start()
	t.Cleanup(e.Stop)
	e.Recover()

	require.False(t, e.IsActive(1), "overdue giveaway ended during recovery")
	require.True(t, e.IsActive(2))
	require.True(t, e.IsActive(3))

	results := rec.all()
	require.Len(t, results, 1)
	require.Equal(t, ReasonOfflineExpiry, results[0].Reason)
	require.Equal(t, int64(10), results[0].WinnerId)
	require.Equal(t, 1, e.ParticipantCount(2), "participant registry rebuilt per giveaway")
	require.Zero(t, e.ParticipantCount(3))
	require.Equal(t, AlreadyJoined, e.Join(2, 20, "Bob").Outcome,
		"membership survives the restart")

	// giveaway 2 still has a live timer after recovery
	clk.Advance(time.Hour)
	require.Eventually(t, func() bool { return len(rec.all()) == 2 },
		time.Second, 10*time.Millisecond)
	require.Equal(t, ReasonAutomatic, rec.all()[1].Reason)
}
