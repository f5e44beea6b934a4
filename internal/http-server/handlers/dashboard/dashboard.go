package dashboard

import (
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"

	"giveabot/entity"
	"giveabot/lib/api/response"
	"giveabot/lib/sl"
)

type Core interface {
	DashboardData() entity.DashboardData
	DashboardAnalytics() entity.AnalyticsView
	Players() []entity.PlayerView
	Status() entity.StatusView
}

func Data(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.dashboard"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		data := handler.DashboardData()
		logger.Debug("dashboard data served", slog.Int("active", len(data.ActiveGiveaways)))

		render.JSON(w, r, response.Ok(data))
	}
}

func Analytics(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.dashboard"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		analytics := handler.DashboardAnalytics()
		logger.Debug("analytics served")

		render.JSON(w, r, response.Ok(analytics))
	}
}

func Players(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.dashboard"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		players := handler.Players()
		logger.Debug("leaderboard served", slog.Int("players", len(players)))

		render.JSON(w, r, response.Ok(players))
	}
}

func Status(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.dashboard"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		status := handler.Status()
		logger.Debug("status served", slog.Bool("bot_running", status.BotRunning))

		render.JSON(w, r, response.Ok(status))
	}
}
