package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/esports-livescore/internal/livescore"
)

// Service is what the HTTP surface needs from the distributor.
type Service interface {
	Subscribe(matchID string, fn func(livescore.Event)) func()
	FetchOnce(ctx context.Context, matchID string) (livescore.Event, bool)
	Status(matchID string) (livescore.EntryStatus, bool)
}

// MatchScore answers with a one-shot snapshot, or 204 when there is none yet.
func MatchScore(svc Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := chi.URLParam(r, "matchID")
		ev, ok := svc.FetchOnce(r.Context(), matchID)
		if !ok {
			logger.Debug("no score available", zap.String("match_id", matchID))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, ev)
	}
}

func MatchStatus(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := svc.Status(chi.URLParam(r, "matchID"))
		if !ok {
			http.Error(w, "match not watched", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
