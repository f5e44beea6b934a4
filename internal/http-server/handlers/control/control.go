package control

import (
	"fmt"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"

	"giveabot/lib/api/response"
	"giveabot/lib/sl"
)

type Core interface {
	StartBot() error
	StopBot() error
}

// Start resumes Telegram polling on a stopped bot.
func Start(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.control"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err := handler.StartBot(); err != nil {
			logger.Error("starting bot", sl.Err(err))
			render.Status(r, 409)
			render.JSON(w, r, response.Error(fmt.Sprintf("Start bot: %v", err)))
			return
		}
		logger.Info("bot started via control api")

		render.JSON(w, r, response.Ok("bot started"))
	}
}

// Stop suspends Telegram polling. Giveaway timers keep running; only the
// chat front end goes quiet.
func Stop(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.control"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if err := handler.StopBot(); err != nil {
			logger.Error("stopping bot", sl.Err(err))
			render.Status(r, 409)
			render.JSON(w, r, response.Error(fmt.Sprintf("Stop bot: %v", err)))
			return
		}
		logger.Info("bot stopped via control api")

		render.JSON(w, r, response.Ok("bot stopped"))
	}
}
