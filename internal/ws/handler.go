package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/esports-livescore/internal/livescore"
	"github.com/DoyleJ11/esports-livescore/internal/types"
)

const (
	outboxSize   = 8
	writeTimeout = 3 * time.Second
)

// Scores is the part of the distributor the relay needs.
type Scores interface {
	Subscribe(matchID string, fn func(livescore.Event)) func()
	FetchOnce(ctx context.Context, matchID string) (livescore.Event, bool)
}

// Handler relays live scores for ?match= to a browser over a websocket.
func Handler(scores Scores, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		matchID := r.URL.Query().Get("match")
		if matchID == "" {
			http.Error(w, "missing match", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		log := logger.With(zap.String("client_id", clientID), zap.String("match_id", matchID))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		out := make(chan types.ServerMessage, outboxSize)
		enqueue := func(m types.ServerMessage) {
			select {
			case out <- m:
			case <-ctx.Done():
			}
		}

		unsubscribe := scores.Subscribe(matchID, func(ev livescore.Event) {
			select {
			case out <- types.LiveScore(ev):
			default:
				// Client is slow/full - drop them.
				log.Warn("dropping slow client")
				cancel()
			}
		})
		defer unsubscribe()
		log.Info("client subscribed")

		// Writer goroutine
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case m := <-out:
					payload, err := json.Marshal(m)
					if err != nil {
						log.Error("encode message", zap.Error(err))
						continue
					}
					wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
					err = conn.Write(wctx, websocket.MessageText, payload)
					wcancel()
					if err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Initial paint while the subscription warms up.
		go func() {
			if ev, ok := scores.FetchOnce(ctx, matchID); ok {
				enqueue(types.LiveScore(ev))
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Info("client left")
				default:
					log.Debug("client read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				enqueue(types.Error("bad json"))
				continue
			}

			switch cm.Type {
			case types.CmdRefresh:
				go func() {
					if ev, ok := scores.FetchOnce(ctx, matchID); ok {
						enqueue(types.LiveScore(ev))
						return
					}
					enqueue(types.NoData(matchID))
				}()
			default:
				enqueue(types.Error("unknown type"))
			}
		}
	}
}
