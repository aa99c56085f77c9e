package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/goccy/go-json"

	"github.com/jason-s-yu/badluck/service/internal/auth"
	"github.com/jason-s-yu/badluck/service/internal/game"
)

const writeTimeout = 5 * time.Second

// EventsHandler serves GET /api/session/events. It is mounted beside the gin
// engine, not inside it: gin's writer refuses to hijack once the 101 status
// has been flushed, which the websocket handshake needs.
func (h *PlayHandler) EventsHandler(tokens *auth.TokenIssuer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctrl, err := h.sessions.Current(auth.FromRequest(tokens, r))
		if err != nil {
			status, code := statusOf(err)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error(), Code: code})
			return
		}
		h.streamEvents(w, r, ctrl)
	})
}

// streamEvents sends a "state" message first, then every controller event
// until the game is replaced or the client leaves.
func (h *PlayHandler) streamEvents(w http.ResponseWriter, r *http.Request, ctrl *game.Controller) {
	log := h.logger.WithField("game_id", ctrl.ID)
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		// Accept has already written the response.
		log.WithError(err).Warn("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	events, cancel := ctrl.Subscribe()
	defer cancel()

	// The client sends nothing; CloseRead handles pings and reports when it
	// goes away.
	ctx := conn.CloseRead(r.Context())

	if err := writeJSON(ctx, conn, game.Event{
		Type:      game.EventState,
		GameID:    ctrl.ID,
		Payload:   map[string]any{"snapshot": ctrl.Snapshot()},
		Timestamp: time.Now().UnixMilli(),
	}); err != nil {
		log.WithError(err).Debug("websocket initial write failed")
		return
	}
	log.Debug("event stream opened")

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}
			if err := writeJSON(ctx, conn, ev); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.WithError(err).Debug("websocket write failed")
				}
				return
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

// OriginPatterns turns allowed CORS origins into websocket host patterns.
func OriginPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
		}
	}
	return patterns
}
