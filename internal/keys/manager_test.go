package keys

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"giveabot/internal/store"
	"giveabot/lib/clock"
)

func testManager(t *testing.T) (*Manager, *store.Store, *clock.Manual) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	clk := clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	st, err := store.Open(filepath.Join(t.TempDir(), "bot_data.json"), log, clk)
	require.NoError(t, err)
	return New(st, log, clk, Config{}), st, clk
}

func TestIssueAndValidate(t *testing.T) {
	m, _, clk := testManager(t)

	require.False(t, m.Validate(1), "no key yet")

	token, err := m.Issue(1, "Alice")
	require.NoError(t, err)
	require.Len(t, token, 16)
	require.True(t, m.Validate(1))

	clk.Advance(23 * time.Hour)
	require.True(t, m.Validate(1), "still inside the 24h TTL")

	clk.Advance(2 * time.Hour)
	require.False(t, m.Validate(1), "past the TTL")
}

func TestValidate_MarksExpiredInactive(t *testing.T) {
	m, st, clk := testManager(t)

	_, err := m.Issue(1, "Alice")
	require.NoError(t, err)

	clk.Advance(25 * time.Hour)
	require.False(t, m.Validate(1))

	key, ok := st.KeyByUser(1)
	require.True(t, ok, "lazy marking keeps the record, sweep removes it")
	require.False(t, key.Active)
}

func TestIssue_ReplacesExistingKey(t *testing.T) {
	m, _, _ := testManager(t)

	first, err := m.Issue(1, "Alice")
	require.NoError(t, err)
	second, err := m.Issue(1, "Alice")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	key, ok := m.Describe(1)
	require.True(t, ok)
	require.Equal(t, second, key.Key)
	require.False(t, m.Redeem(2, "Bob", first), "replaced token no longer redeemable")
}

func TestRedeem_TransfersOwnership(t *testing.T) {
	m, _, _ := testManager(t)

	token, err := m.Issue(1, "Alice")
	require.NoError(t, err)

	require.True(t, m.Redeem(2, "Bob", token))
	require.False(t, m.Validate(1), "original owner lost the key")
	require.True(t, m.Validate(2))

	key, ok := m.Describe(2)
	require.True(t, ok)
	require.Equal(t, "Bob", key.UserName)
}

func TestRedeem_OwnTokenIsNoop(t *testing.T) {
	m, _, _ := testManager(t)

	token, err := m.Issue(1, "Alice")
	require.NoError(t, err)
	require.True(t, m.Redeem(1, "Alice", token))
	require.True(t, m.Validate(1))
}

func TestRedeem_RejectsUnknownAndExpired(t *testing.T) {
	m, _, clk := testManager(t)

	require.False(t, m.Redeem(2, "Bob", "nosuchtoken0000"))

	token, err := m.Issue(1, "Alice")
	require.NoError(t, err)
	clk.Advance(25 * time.Hour)
	require.False(t, m.Redeem(2, "Bob", token), "expired token must not transfer")
}

func TestSweep(t *testing.T) {
	m, st, clk := testManager(t)

	_, err := m.Issue(1, "Alice")
	require.NoError(t, err)
	_, err = m.Issue(2, "Bob")
	require.NoError(t, err)

	require.Zero(t, m.Sweep())

	clk.Advance(25 * time.Hour)
	require.Equal(t, 2, m.Sweep())
	_, ok := st.KeyByUser(1)
	require.False(t, ok)
}
