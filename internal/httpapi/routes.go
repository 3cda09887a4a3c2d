package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/esports-livescore/internal/ws"
)

func SetupRoutes(svc Service, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/matches/{matchID}/score", MatchScore(svc, logger))
	r.Get("/matches/{matchID}/status", MatchStatus(svc))
	r.Get("/ws", ws.Handler(svc, logger))
	return r
}
