package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"giveabot/internal/config"
	"giveabot/internal/http-server/handlers/control"
	"giveabot/internal/http-server/handlers/dashboard"
	"giveabot/internal/http-server/handlers/errors"
	"giveabot/internal/http-server/handlers/keysystem"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"giveabot/internal/http-server/middleware/authenticate"
	"giveabot/internal/http-server/middleware/timeout"
	"giveabot/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	dashboard.Core
	keysystem.Core
	control.Core
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, "giveaway bot is alive")
	})

	// read-only dashboard endpoints
	router.Route("/api", func(rootApi chi.Router) {
		rootApi.Get("/data", dashboard.Data(log, handler))
		rootApi.Get("/analytics", dashboard.Analytics(log, handler))
		rootApi.Get("/players", dashboard.Players(log, handler))
		rootApi.Get("/status", dashboard.Status(log, handler))
	})

	// key admin, behind the admin token
	router.Route("/keysystem", func(rootKeys chi.Router) {
		rootKeys.Use(authenticate.New(log, handler))
		rootKeys.Post("/generate", keysystem.Generate(log, handler))
		rootKeys.Post("/revoke", keysystem.Revoke(log, handler))
		rootKeys.Get("/keys", keysystem.Keys(log, handler))
	})

	// bot process control, behind the admin token
	router.Route("/control", func(rootControl chi.Router) {
		rootControl.Use(authenticate.New(log, handler))
		rootControl.Post("/start", control.Start(log, handler))
		rootControl.Post("/stop", control.Stop(log, handler))
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
