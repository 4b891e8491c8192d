package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"bigbrain-client/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var errUnsupportedMessage = errors.New("unsupported message type")

// Player is the player machine as seen by presentation clients.
type Player interface {
	Snapshot() app.PlayerSnapshot
	Subscribe() (<-chan app.PlayerSnapshot, func())
	Select(ctx context.Context, answer string) error
	Submit(ctx context.Context) error
}

// Monitor is the admin session monitor as seen by presentation clients.
type Monitor interface {
	Snapshot() app.SessionSnapshot
	Subscribe() (<-chan app.SessionSnapshot, func())
	Advance(ctx context.Context) error
}

type selectPayload struct {
	Answer string `json:"answer"`
}

// NewRouter exposes the player machine under / and, when monitor is non-nil,
// the session monitor under /admin.
func NewRouter(player Player, monitor Monitor) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if player != nil {
		ws := newWSHandler(player.Subscribe, playerCommands(player))
		r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, player.Snapshot())
		})
		r.Get("/ws", ws.ServeWS)
	}

	if monitor != nil {
		ws := newWSHandler(monitor.Subscribe, monitorCommands(monitor))
		r.Route("/admin", func(r chi.Router) {
			r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, monitor.Snapshot())
			})
			r.Post("/advance", func(w http.ResponseWriter, r *http.Request) {
				if err := monitor.Advance(r.Context()); err != nil {
					writeJSON(w, http.StatusBadRequest, errorPayload{Message: err.Error()})
					return
				}
				writeJSON(w, http.StatusOK, monitor.Snapshot())
			})
			r.Get("/ws", ws.ServeWS)
		})
	}
	return r
}

func playerCommands(player Player) commandFunc {
	return func(ctx context.Context, msg inboundMessage) error {
		switch msg.Type {
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return errors.New("invalid select payload")
			}
			return player.Select(ctx, payload.Answer)
		case "submit":
			return player.Submit(ctx)
		default:
			return errUnsupportedMessage
		}
	}
}

func monitorCommands(monitor Monitor) commandFunc {
	return func(ctx context.Context, msg inboundMessage) error {
		if msg.Type != "advance" {
			return errUnsupportedMessage
		}
		return monitor.Advance(ctx)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
