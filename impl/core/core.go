// Package core aggregates the service collaborators behind the interfaces
// the HTTP API consumes. It owns no state of its own; every call delegates
// to the store, the engine, the key manager, or the bot.
package core

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"sort"

	"giveabot/entity"
	"giveabot/internal/engine"
	"giveabot/internal/keys"
	"giveabot/internal/store"
	"giveabot/lib/clock"
	"giveabot/lib/sl"
)

// BotControl is the bot lifecycle surface used by the control endpoints.
type BotControl interface {
	Start() error
	Stop()
	Running() bool
}

type Core struct {
	store      *store.Store
	engine     *engine.Engine
	keys       *keys.Manager
	bot        BotControl
	clock      clock.Clock
	adminToken string
	log        *slog.Logger
}

func New(st *store.Store, eng *engine.Engine, km *keys.Manager, clk clock.Clock, adminToken string, log *slog.Logger) *Core {
	if st == nil {
		panic("store is nil")
	}
	return &Core{
		store:      st,
		engine:     eng,
		keys:       km,
		clock:      clk,
		adminToken: adminToken,
		log:        log.With(sl.Module("core")),
	}
}

// SetBot connects the bot after construction; the bot itself needs the
// engine first, so the wiring is two-phase.
func (c *Core) SetBot(b BotControl) {
	c.bot = b
}

// AuthenticateAdmin checks the Bearer token of the key admin and control
// endpoints against the configured admin token.
func (c *Core) AuthenticateAdmin(token string) error {
	if c.adminToken == "" {
		return fmt.Errorf("admin token not configured")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(c.adminToken)) != 1 {
		return fmt.Errorf("token mismatch")
	}
	return nil
}

func (c *Core) DashboardData() entity.DashboardData {
	now := c.clock.Now()
	actives := c.engine.Actives()

	data := entity.DashboardData{
		ActiveGiveaways: make([]entity.GiveawayView, 0, len(actives)),
	}
	for _, g := range actives {
		count := c.engine.ParticipantCount(g.Id)
		view := entity.GiveawayView{
			Id:           g.Id,
			Title:        g.Title,
			Gift:         g.Gift,
			Duration:     g.Duration,
			EndTime:      g.EndTime,
			Participants: count,
			Unlimited:    g.Unlimited(),
		}
		if !g.Unlimited() {
			view.RemainingSec = int64(g.Remaining(now).Seconds())
		}
		data.ActiveGiveaways = append(data.ActiveGiveaways, view)
		data.TotalParticipants += count
	}
	return data
}

func (c *Core) DashboardAnalytics() entity.AnalyticsView {
	a := c.store.Analytics()
	return entity.AnalyticsView{
		TotalUsers:          a.TotalUsers,
		TotalParticipations: a.TotalParticipations,
		TotalWins:           a.TotalWins,
		ActiveGiveaways:     a.ActiveGiveaways,
		CompletedGiveaways:  a.CompletedGiveaways,
		ActiveKeys:          a.ActiveKeys,
		UptimeStart:         a.UptimeStart,
	}
}

func (c *Core) Players() []entity.PlayerView {
	all := c.store.AllStats()
	players := make([]entity.PlayerView, 0, len(all))
	for _, s := range all {
		players = append(players, entity.PlayerView{
			Name:           s.Name,
			Points:         s.Points(),
			Wins:           s.TotalWins,
			Participations: s.TotalParticipations,
		})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Points > players[j].Points })
	return players
}

func (c *Core) Status() entity.StatusView {
	running := false
	if c.bot != nil {
		running = c.bot.Running()
	}
	a := c.store.Analytics()
	return entity.StatusView{
		BotRunning:      running,
		UptimeSec:       int64(c.clock.Now().Sub(a.UptimeStart).Seconds()),
		ActiveGiveaways: a.ActiveGiveaways,
	}
}

func (c *Core) GenerateKey(userId int64, userName string) (entity.IssuedKey, error) {
	token, err := c.keys.Issue(userId, userName)
	if err != nil {
		return entity.IssuedKey{}, err
	}
	key, _ := c.store.KeyByUser(userId)
	return entity.IssuedKey{
		UserId:    userId,
		Key:       token,
		ExpiresAt: key.ExpiresAt,
	}, nil
}

func (c *Core) RevokeKey(userId int64) error {
	if _, ok := c.store.KeyByUser(userId); !ok {
		return fmt.Errorf("no key for user %d", userId)
	}
	return c.store.DeleteKey(userId)
}

func (c *Core) Keys() []entity.KeyView {
	all := c.store.AllKeys()
	views := make([]entity.KeyView, 0, len(all))
	for userId, k := range all {
		views = append(views, entity.KeyView{
			UserId:    userId,
			UserName:  k.UserName,
			Key:       k.Key,
			ExpiresAt: k.ExpiresAt,
			Active:    k.Active,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].UserId < views[j].UserId })
	return views
}

func (c *Core) StartBot() error {
	if c.bot == nil {
		return fmt.Errorf("bot not connected")
	}
	return c.bot.Start()
}

func (c *Core) StopBot() error {
	if c.bot == nil {
		return fmt.Errorf("bot not connected")
	}
	if !c.bot.Running() {
		return fmt.Errorf("bot already stopped")
	}
	c.bot.Stop()
	return nil
}
