package keysystem

import (
	"fmt"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"giveabot/entity"
	"giveabot/lib/api/response"
	"giveabot/lib/sl"
)

type Core interface {
	GenerateKey(userId int64, userName string) (entity.IssuedKey, error)
	RevokeKey(userId int64) error
	Keys() []entity.KeyView
}

// Generate issues a fresh access key for a user, replacing any existing
// one. The response carries a uuid session id for audit correlation.
func Generate(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.keysystem"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.KeyRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(slog.Int64("user_id", req.UserId))

		issued, err := handler.GenerateKey(req.UserId, req.UserName)
		if err != nil {
			logger.Error("generate key", sl.Err(err))
			render.Status(r, 500)
			render.JSON(w, r, response.Error(fmt.Sprintf("Generate key: %v", err)))
			return
		}
		issued.SessionId = uuid.NewString()
		logger.Info("key generated", slog.String("session_id", issued.SessionId))

		render.JSON(w, r, response.Ok(issued))
	}
}

// Revoke deletes a user's access key.
func Revoke(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.keysystem"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.KeyRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(slog.Int64("user_id", req.UserId))

		if err := handler.RevokeKey(req.UserId); err != nil {
			logger.Error("revoke key", sl.Err(err))
			render.Status(r, 400)
			render.JSON(w, r, response.Error(fmt.Sprintf("Revoke key: %v", err)))
			return
		}
		logger.Info("key revoked")

		render.JSON(w, r, response.Ok(nil))
	}
}

// Keys lists all stored access keys.
func Keys(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.keysystem"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		keys := handler.Keys()
		logger.Debug("keys listed", slog.Int("count", len(keys)))

		render.JSON(w, r, response.Ok(keys))
	}
}
