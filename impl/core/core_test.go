package core

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"giveabot/entity"
	"giveabot/internal/engine"
	"giveabot/internal/keys"
	"giveabot/internal/store"
	"giveabot/lib/clock"
)

func testCore(t *testing.T) (*Core, *store.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st, err := store.Open(filepath.Join(t.TempDir(), "bot_data.json"), log, clk)
	require.NoError(t, err)

	eng := engine.New(st, log, clk)
	km := keys.New(st, log, clk, keys.Config{})
	return New(st, eng, km, clk, "secret-token", log), st
}

func TestAuthenticateAdmin(t *testing.T) {
	c, _ := testCore(t)

	require.NoError(t, c.AuthenticateAdmin("secret-token"))
	require.Error(t, c.AuthenticateAdmin("wrong"))
	require.Error(t, c.AuthenticateAdmin(""))
}

func TestAuthenticateAdmin_Unconfigured(t *testing.T) {
	c, _ := testCore(t)
	c.adminToken = ""
	require.Error(t, c.AuthenticateAdmin(""), "empty configured token must never authenticate")
}

func TestGenerateAndRevokeKey(t *testing.T) {
	c, st := testCore(t)

	issued, err := c.GenerateKey(42, "Alice")
	require.NoError(t, err)
	require.Len(t, issued.Key, 16)
	require.Equal(t, int64(42), issued.UserId)

	views := c.Keys()
	require.Len(t, views, 1)
	require.Equal(t, "Alice", views[0].UserName)
	require.True(t, views[0].Active)

	require.NoError(t, c.RevokeKey(42))
	_, ok := st.KeyByUser(42)
	require.False(t, ok)

	require.Error(t, c.RevokeKey(42), "revoking an absent key reports an error")
}

func TestPlayers_SortedByPoints(t *testing.T) {
	c, st := testCore(t)

	g := testGiveaway(1)
	require.NoError(t, st.AddGiveaway(g))
	_, err := st.AddParticipant(1, 10, "Alice")
	require.NoError(t, err)
	_, err = st.AddParticipant(1, 20, "Bob")
	require.NoError(t, err)
	require.NoError(t, st.RecordWinner(20, "Prize"))

	players := c.Players()
	require.Len(t, players, 2)
	require.Equal(t, "Bob", players[0].Name, "winner outranks participant")
	require.Greater(t, players[0].Points, players[1].Points)
}

func TestStatus_WithoutBot(t *testing.T) {
	c, _ := testCore(t)

	status := c.Status()
	require.False(t, status.BotRunning)
	require.Zero(t, status.ActiveGiveaways)
}

func testGiveaway(id int64) *entity.Giveaway {
	end := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	return &entity.Giveaway{
		Id:        id,
		ChatId:    -100200300,
		Title:     "Prize",
		Gift:      "Premium Account",
		Duration:  60,
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		EndTime:   &end,
		Status:    entity.StatusActive,
	}
}
