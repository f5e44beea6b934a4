package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"giveabot/entity"
	"giveabot/lib/clock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) (*Store, *clock.Manual, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot_data.json")
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s, err := Open(path, testLogger(), clk)
	require.NoError(t, err)
	return s, clk, path
}

func testGiveaway(id int64) *entity.Giveaway {
	end := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	return &entity.Giveaway{
		Id:        id,
		ChatId:    -100200300,
		Title:     fmt.Sprintf("Prize %d", id),
		Gift:      "Premium Account",
		Place:     "Online",
		Info:      "-",
		Duration:  30,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		EndTime:   &end,
		Status:    entity.StatusActive,
	}
}

func TestOpen_MissingFileInitializes(t *testing.T) {
	s, _, path := testStore(t)

	require.Empty(t, s.ActiveGiveaways())
	require.Empty(t, s.CompletedGiveaways())
	_, err := os.Stat(path)
	require.NoError(t, err, "initial snapshot should be written")
}

func TestOpen_CorruptFileBackedUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot_data.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s, err := Open(path, testLogger(), clk)
	require.NoError(t, err)
	require.Empty(t, s.ActiveGiveaways())

	backups, err := filepath.Glob(path + ".backup_*")
	require.NoError(t, err)
	require.Len(t, backups, 1, "corrupted file should be preserved for forensics")
	content, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	require.Equal(t, "{not json", string(content))
}

func TestAddGiveaway_RoundTrip(t *testing.T) {
	s, clk, path := testStore(t)

	g := testGiveaway(1001)
	require.NoError(t, s.AddGiveaway(g))

	reopened, err := Open(path, testLogger(), clk)
	require.NoError(t, err)

	got, ok := reopened.Giveaway(1001)
	require.True(t, ok)
	require.Equal(t, g.Title, got.Title)
	require.Equal(t, g.Gift, got.Gift)
	require.Equal(t, g.Place, got.Place)
	require.Equal(t, g.Info, got.Info)
	require.Equal(t, g.Duration, got.Duration)
	require.Equal(t, g.ChatId, got.ChatId)
	require.Equal(t, entity.StatusActive, got.Status)
	require.True(t, g.CreatedAt.Equal(got.CreatedAt))
	require.NotNil(t, got.EndTime)
	require.True(t, g.EndTime.Equal(*got.EndTime))
}

func TestAddParticipant_Duplicate(t *testing.T) {
	s, _, _ := testStore(t)
	require.NoError(t, s.AddGiveaway(testGiveaway(1)))

	added, err := s.AddParticipant(1, 42, "Alice")
	require.NoError(t, err)
	require.True(t, added)

	added, err = s.AddParticipant(1, 42, "Alice")
	require.NoError(t, err)
	require.False(t, added, "second join must be rejected")
	require.Equal(t, 1, s.ParticipantCount(1))

	stats, ok := s.Stats(42)
	require.True(t, ok)
	require.Equal(t, 1, stats.TotalParticipations, "duplicate must not bump stats")
}

func TestStats_LazyCreationAndPoints(t *testing.T) {
	s, _, _ := testStore(t)
	require.NoError(t, s.AddGiveaway(testGiveaway(1)))

	_, ok := s.Stats(7)
	require.False(t, ok)

	_, err := s.AddParticipant(1, 7, "Bob")
	require.NoError(t, err)
	require.NoError(t, s.RecordWinner(7, "Prize 1"))

	stats, ok := s.Stats(7)
	require.True(t, ok)
	require.Equal(t, "Bob", stats.Name)
	require.Equal(t, 1, stats.TotalParticipations)
	require.Equal(t, 1, stats.TotalWins)
	require.Equal(t, entity.PointsPerJoin+entity.PointsPerWin, stats.Points())
}

func TestWinnersHistory_Cap(t *testing.T) {
	s, _, _ := testStore(t)

	for i := 0; i < maxWinnersHistory+1; i++ {
		require.NoError(t, s.RecordWinner(int64(i), fmt.Sprintf("Giveaway %d", i)))
	}

	history := s.WinnersHistory()
	require.Len(t, history, maxWinnersHistory)
	require.Equal(t, "Giveaway 1", history[0].GiveawayTitle, "oldest entry evicted first")
	require.Equal(t, fmt.Sprintf("Giveaway %d", maxWinnersHistory), history[len(history)-1].GiveawayTitle)
}

func TestCompletedGiveaways_Cap(t *testing.T) {
	s, _, _ := testStore(t)

	for i := 1; i <= maxCompletedGiveaways+1; i++ {
		require.NoError(t, s.AddGiveaway(testGiveaway(int64(i))))
		completed, err := s.MoveGiveawayToCompleted(int64(i))
		require.NoError(t, err)
		require.NotNil(t, completed)
	}

	archive := s.CompletedGiveaways()
	require.Len(t, archive, maxCompletedGiveaways)
	require.Equal(t, int64(2), archive[0].Id, "oldest archive entry evicted first")
}

func TestMoveGiveawayToCompleted(t *testing.T) {
	s, _, _ := testStore(t)
	require.NoError(t, s.AddGiveaway(testGiveaway(5)))
	_, err := s.AddParticipant(5, 1, "Alice")
	require.NoError(t, err)
	_, err = s.AddParticipant(5, 2, "Bob")
	require.NoError(t, err)

	completed, err := s.MoveGiveawayToCompleted(5)
	require.NoError(t, err)
	require.NotNil(t, completed)
	require.Equal(t, entity.StatusCompleted, completed.Status)
	require.Len(t, completed.Participants, 2)

	_, ok := s.Giveaway(5)
	require.False(t, ok)
	require.Zero(t, s.ParticipantCount(5))

	// second move is a no-op, not an error
	completed, err = s.MoveGiveawayToCompleted(5)
	require.NoError(t, err)
	require.Nil(t, completed)
}

func TestKeys_TransferAndSweep(t *testing.T) {
	s, clk, _ := testStore(t)

	key := &entity.AccessKey{
		Key:         "AbCdEf1234567890",
		UserName:    "Alice",
		GeneratedAt: clk.Now(),
		ExpiresAt:   clk.Now().Add(24 * time.Hour),
		Active:      true,
	}
	require.NoError(t, s.IssueKey(100, key))

	owner, found, ok := s.FindKeyByToken("AbCdEf1234567890")
	require.True(t, ok)
	require.Equal(t, int64(100), owner)
	require.Equal(t, "Alice", found.UserName)

	require.NoError(t, s.TransferKey(100, 200, "Mallory"))
	_, ok = s.KeyByUser(100)
	require.False(t, ok, "original owner's record deleted outright")
	moved, ok := s.KeyByUser(200)
	require.True(t, ok)
	require.Equal(t, "Mallory", moved.UserName)
	require.Equal(t, "AbCdEf1234567890", moved.Key)

	clk.Advance(25 * time.Hour)
	_, _, ok = s.FindKeyByToken("AbCdEf1234567890")
	require.False(t, ok, "expired key must not match")

	removed, err := s.SweepExpiredKeys()
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	_, ok = s.KeyByUser(200)
	require.False(t, ok)
}

func TestMarkKeyInactive(t *testing.T) {
	s, clk, _ := testStore(t)

	key := &entity.AccessKey{
		Key:       "tok",
		ExpiresAt: clk.Now().Add(time.Hour),
		Active:    true,
	}
	require.NoError(t, s.IssueKey(1, key))
	require.NoError(t, s.MarkKeyInactive(1))

	got, ok := s.KeyByUser(1)
	require.True(t, ok)
	require.False(t, got.Active)
	_, _, ok = s.FindKeyByToken("tok")
	require.False(t, ok)
}
