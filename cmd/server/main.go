package main

import (
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"giveabot/bot"
	"giveabot/impl/core"
	"giveabot/internal/config"
	"giveabot/internal/engine"
	"giveabot/internal/http-server/api"
	"giveabot/internal/keys"
	"giveabot/internal/store"
	"giveabot/lib/clock"
	"giveabot/lib/logger"
	"giveabot/lib/sl"
)

const logFileName = "giveabot.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	logg := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	logg.Info("starting giveabot", slog.String("config", *configPath), slog.String("env", conf.Env))

	clk := clock.System()

	st, err := store.Open(conf.Storage.File, logg, clk)
	if err != nil {
		log.Fatal("opening snapshot store: ", err)
	}

	eng := engine.New(st, logg, clk)
	km := keys.New(st, logg, clk, keys.Config{
		TTL:           time.Duration(conf.Keys.TTLHours) * time.Hour,
		TokenLength:   conf.Keys.TokenLength,
		SweepInterval: time.Duration(conf.Keys.SweepIntervalMin) * time.Minute,
	})

	handler := core.New(st, eng, km, clk, conf.Dashboard.AdminToken, logg)

	tgBot, err := bot.NewTgBot(conf.Telegram.ApiKey, eng, km, st, clk, logg, bot.BotConfig{
		AdminChatId:           conf.Telegram.AdminChatId,
		DeleteGraceSec:        conf.Telegram.DeleteGraceSec,
		OfflineDeleteGraceSec: conf.Telegram.OfflineDeleteGraceSec,
		ConversationTTLMin:    conf.Conversation.TTLMin,
	})
	if err != nil {
		log.Fatal("creating telegram bot: ", err)
	}
	eng.SetNotifier(tgBot)
	handler.SetBot(tgBot)

	// errors logged from here on are mirrored to the admin chat
	logg = slog.New(logger.NewTelegramHandler(logg.Handler(), tgBot, slog.LevelError))

	// recovery must finish before the bot serves its first update
	eng.Start()
	eng.Recover()
	km.StartSweeper()

	if err = tgBot.Start(); err != nil {
		logg.Error("starting telegram bot", sl.Err(err))
	}

	go func() {
		if err := api.New(conf, logg, handler); err != nil {
			logg.Error("api server stopped", sl.Err(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logg.Info("shutting down")
	tgBot.Stop()
	km.Stop()
	eng.Stop()
	logg.Info("shutdown complete")
}
