// Package keys implements the access-key gate: time-limited opaque tokens
// required for giveaway creation and related commands. One key per user;
// presenting a valid token transfers ownership to the presenter (observed
// behavior kept for compatibility, see DESIGN.md).
package keys

import (
	"log/slog"
	"math/rand"
	"time"

	"giveabot/entity"
	"giveabot/internal/store"
	"giveabot/lib/clock"
	"giveabot/lib/sl"
)

const tokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type Config struct {
	TTL           time.Duration
	TokenLength   int
	SweepInterval time.Duration
}

type Manager struct {
	log    *slog.Logger
	store  *store.Store
	clock  clock.Clock
	config Config

	stopCh chan struct{}
	done   chan struct{}
}

func New(st *store.Store, log *slog.Logger, clk clock.Clock, cfg Config) *Manager {
	if cfg.TTL == 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.TokenLength == 0 {
		cfg.TokenLength = 16
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour
	}
	return &Manager{
		log:    log.With(sl.Module("keys")),
		store:  st,
		clock:  clk,
		config: cfg,
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Issue generates a fresh token for the user, replacing any existing key.
func (m *Manager) Issue(userId int64, name string) (string, error) {
	token := randomToken(m.config.TokenLength)
	now := m.clock.Now()

	key := &entity.AccessKey{
		Key:         token,
		UserName:    name,
		GeneratedAt: now,
		ExpiresAt:   now.Add(m.config.TTL),
		Active:      true,
	}
	if err := m.store.IssueKey(userId, key); err != nil {
		return "", err
	}
	m.log.Info("key issued",
		slog.Int64("user_id", userId),
		sl.Secret("token", token),
	)
	return token, nil
}

// Validate reports whether the user holds a usable key. A key found to be
// past its expiry is marked inactive as a side effect, so the expired state
// is durable even if the sweeper never runs.
func (m *Manager) Validate(userId int64) bool {
	key, ok := m.store.KeyByUser(userId)
	if !ok || !key.Active {
		return false
	}
	if key.Expired(m.clock.Now()) {
		if err := m.store.MarkKeyInactive(userId); err != nil {
			m.log.Error("marking key inactive", slog.Int64("user_id", userId), sl.Err(err))
		}
		return false
	}
	return true
}

// Redeem looks up an active, unexpired key by its literal token. A token
// owned by a different user is transferred to the presenter and the
// original owner loses it. Knowing the token string is sufficient.
func (m *Manager) Redeem(userId int64, name, token string) bool {
	owner, _, ok := m.store.FindKeyByToken(token)
	if !ok {
		return false
	}
	if owner == userId {
		return true
	}
	if err := m.store.TransferKey(owner, userId, name); err != nil {
		m.log.Error("transferring key",
			slog.Int64("from", owner),
			slog.Int64("to", userId),
			sl.Err(err),
		)
		return false
	}
	m.log.Info("key transferred",
		slog.Int64("from", owner),
		slog.Int64("to", userId),
	)
	return true
}

// Describe returns the user's key when it is currently valid, for the
// /mykey detail message.
func (m *Manager) Describe(userId int64) (entity.AccessKey, bool) {
	key, ok := m.store.KeyByUser(userId)
	if !ok || !key.Valid(m.clock.Now()) {
		return entity.AccessKey{}, false
	}
	return key, true
}

// Sweep deletes all expired keys, bounding storage growth independently of
// the lazy marking in Validate.
func (m *Manager) Sweep() int {
	removed, err := m.store.SweepExpiredKeys()
	if err != nil {
		m.log.Error("sweeping expired keys", sl.Err(err))
	}
	if removed > 0 {
		m.log.Info("swept expired keys", slog.Int("removed", removed))
	}
	return removed
}

// StartSweeper runs Sweep once immediately and then on every interval
// until Stop is called.
func (m *Manager) StartSweeper() {
	m.Sweep()
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.config.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-m.stopCh:
				return
			}
		}
	}()
}

func (m *Manager) Stop() {
	close(m.stopCh)
	<-m.done
}

func randomToken(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = tokenCharset[rand.Intn(len(tokenCharset))]
	}
	return string(b)
}
