// Package bot implements the Telegram front end of the giveaway service.
//
// Architecture overview:
//   - tgbot.go        — TgBot struct, lifecycle (Start/Stop/Running), collaborator interfaces
//   - commands.go     — Commands: /start, /help, /getkey, /mykey, /create, /templates,
//     /list, /listjoin, /points, /leaderboard, /end
//   - conversation.go — Creation dialogue state machine (title → gift → duration → place → info)
//   - callbacks.go    — Inline keyboard builders and callback handlers (join/duration/template)
//   - giveaway.go     — Announcement lifecycle: post, live count edits, result edit, delayed delete
//   - menus.go        — Command menus via Telegram's BotCommandScope API
//   - helpers.go      — Shared utilities: Sanitize, plainResponse, deleteAfter, reportError
//
// Every command except /end is gated on a valid access key. Free text from
// a user without a flow and without a valid key is treated as a redemption
// attempt: a pasted token that matches an active key transfers it to the
// sender.
//
// The engine owns all giveaway state; this package only renders it. Engine
// callbacks (AnnounceResult) arrive on engine goroutines with no engine
// lock held, so Telegram calls here can block safely.
package bot

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/callbackquery"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"

	"giveabot/entity"
	"giveabot/internal/engine"
	"giveabot/lib/clock"
	"giveabot/lib/sl"
)

// BotConfig holds Telegram-specific configuration loaded from the YAML config file.
type BotConfig struct {
	AdminChatId           int64
	DeleteGraceSec        int
	OfflineDeleteGraceSec int
	ConversationTTLMin    int
}

// Engine defines the lifecycle operations the bot depends on.
// Implemented by internal/engine.
type Engine interface {
	CreateGiveaway(g *entity.Giveaway) error
	Join(giveawayId, userId int64, name string) engine.JoinResult
	Terminate(id int64, reason engine.Reason) (engine.Result, bool)
	Actives() []entity.Giveaway
	ParticipantCount(id int64) int
	IsActive(id int64) bool
}

// Keys defines the access-key operations the bot depends on.
// Implemented by internal/keys.
type Keys interface {
	Issue(userId int64, name string) (string, error)
	Validate(userId int64) bool
	Redeem(userId int64, name, token string) bool
	Describe(userId int64) (entity.AccessKey, bool)
}

// Stats defines the leaderboard reads the bot depends on.
// Implemented by internal/store.
type Stats interface {
	Stats(userId int64) (entity.UserStats, bool)
	AllStats() map[int64]entity.UserStats
}

// TgBot is the central Telegram bot instance. It renders engine state and
// drives the creation dialogue; it holds no giveaway state of its own.
type TgBot struct {
	log    *slog.Logger
	api    *tgbotapi.Bot
	engine Engine
	keys   Keys
	stats  Stats
	clock  clock.Clock
	flows  *Conversations
	config BotConfig

	mu      sync.Mutex // guards updater and running
	updater *ext.Updater
	running bool
}

func NewTgBot(apiKey string, eng Engine, keys Keys, stats Stats, clk clock.Clock, log *slog.Logger, cfg BotConfig) (*TgBot, error) {
	if cfg.DeleteGraceSec == 0 {
		cfg.DeleteGraceSec = 30
	}
	if cfg.OfflineDeleteGraceSec == 0 {
		cfg.OfflineDeleteGraceSec = 60
	}

	tgBot := &TgBot{
		log:    log.With(sl.Module("tgbot")),
		engine: eng,
		keys:   keys,
		stats:  stats,
		clock:  clk,
		flows:  NewConversations(clk, time.Duration(cfg.ConversationTTLMin)*time.Minute),
		config: cfg,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

// Start begins polling. The dispatcher is rebuilt on every call so the
// control API can stop and start the bot repeatedly on one instance.
func (t *TgBot) Start() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("bot already running")
	}

	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.Error("handling update:", sl.Err(err))
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	t.updater = ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("start", t.start))
	dispatcher.AddHandler(handlers.NewCommand("help", t.help))
	dispatcher.AddHandler(handlers.NewCommand("getkey", t.getkey))
	dispatcher.AddHandler(handlers.NewCommand("mykey", t.mykey))
	dispatcher.AddHandler(handlers.NewCommand("create", t.create))
	dispatcher.AddHandler(handlers.NewCommand("templates", t.templates))
	dispatcher.AddHandler(handlers.NewCommand("list", t.list))
	dispatcher.AddHandler(handlers.NewCommand("listjoin", t.listjoin))
	dispatcher.AddHandler(handlers.NewCommand("points", t.points))
	dispatcher.AddHandler(handlers.NewCommand("leaderboard", t.leaderboard))
	dispatcher.AddHandler(handlers.NewCommand("end", t.end))

	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbJoin), t.onJoinCallback))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbDuration), t.onDurationCallback))
	dispatcher.AddHandler(handlers.NewCallback(callbackquery.Prefix(cbTemplate), t.onTemplateCallback))

	// Free text drives the creation dialogue or a key redemption attempt.
	dispatcher.AddHandler(handlers.NewMessage(message.Text, t.onText))

	t.setDefaultCommands()

	err := t.updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		t.updater = nil
		t.mu.Unlock()
		return fmt.Errorf("failed to start polling: %w", err)
	}
	t.running = true
	t.mu.Unlock()

	t.log.Info("telegram bot polling started")
	return nil
}

func (t *TgBot) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	t.log.Info("stopping telegram bot")
	if err := t.updater.Stop(); err != nil {
		t.log.Warn("stopping updater", sl.Err(err))
	}
	t.updater = nil
	t.running = false
}

// Running reports whether the bot is currently polling.
func (t *TgBot) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// NotifyAdmin forwards a message to the admin chat. Used by the slog
// Telegram handler for error mirroring.
func (t *TgBot) NotifyAdmin(msg string) {
	if t.config.AdminChatId == 0 {
		return
	}
	t.plainResponse(t.config.AdminChatId, msg)
}
