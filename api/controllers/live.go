package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/angelmondragon/designdrop-backend/api/responses"
	"github.com/angelmondragon/designdrop-backend/api/validators"
	"github.com/angelmondragon/designdrop-backend/pkg/eventbus"
	"github.com/angelmondragon/designdrop-backend/pkg/logger"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
	liveReadLimit  = 512
)

type liveSubscriber interface {
	Subscribe(designID uuid.UUID) *eventbus.Subscription
}

// LiveStream upgrades to a websocket that forwards vote, tier and settlement
// events. ?design_id scopes the stream to one design; without it every design
// is streamed.
func LiveStream(hub liveSubscriber, allowedOrigins []string, logg *logger.Logger) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("live stream"))
			return
		}
		designID, err := validators.ParseQueryUUID(r, "design_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope := uuid.Nil
		if designID != nil {
			scope = *designID
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			if logg != nil {
				logg.Warn(logg.WithField(r.Context(), "error", err.Error()), "live upgrade failed")
			}
			return
		}

		sub := hub.Subscribe(scope)
		done := make(chan struct{})
		go readLive(conn, done)
		writeLive(conn, sub, done)

		sub.Close()
		_ = conn.Close()
	}
}

// readLive drains control frames so pongs are processed; it closes done when
// the client goes away.
func readLive(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(liveReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeLive(conn *websocket.Conn, sub *eventbus.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case evt, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.TrimRight(strings.TrimSpace(origin), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set["*"]; ok {
			return true
		}
		_, ok := set[strings.TrimRight(origin, "/")]
		return ok
	}
}
