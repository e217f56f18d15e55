// internal/httpserver/routes_ws.go
//
// WebSocket stream for a live game: GET /game/{id}/ws.
//
// Server → client: session events as JSON ({"type":"state"|"complete"|"closed", ...}),
// starting with the current state.
// Client → server: actions ({"type":"select","grid":"main","cardId":3},
// {"type":"reset"}, {"type":"navigate","page":"start"}). Rejected
// selections produce no message; accepted ones are visible in the next
// state event.
//
// Each connection runs a read pump and a write pump; the write pump owns
// all writes and sends pings so dead peers are detected.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/memory-game/internal/game"
	"github.com/robalobadob/memory-game/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// Maximum message size allowed from peer.
	maxMessageSize = 512
)

// clientAction is an incoming command from the browser.
type clientAction struct {
	Type   string       `json:"type"` // "select" | "reset" | "navigate"
	Grid   game.Grid    `json:"grid,omitempty"`
	CardID int          `json:"cardId,omitempty"`
	Page   session.Page `json:"page,omitempty"`
}

// handleWS upgrades the request and streams the session to the client.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("game", sess.ID).Msg("websocket upgrade")
		return
	}

	events, cancel := sess.Subscribe()
	go s.writePump(conn, events)
	go s.readPump(conn, sess, cancel)
}

// checkOrigin admits same-host requests and the configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == s.cfg.ClientOrigin {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// readPump applies client actions until the connection fails, then
// releases the subscription. The write pump sees the closed stream and
// closes the connection.
func (s *Server) readPump(conn *websocket.Conn, sess *session.Session, cancel func()) {
	defer cancel()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var act clientAction
		if err := conn.ReadJSON(&act); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("game", sess.ID).Msg("websocket read")
			}
			return
		}
		switch act.Type {
		case "select":
			sess.Select(act.Grid, act.CardID)
		case "reset":
			sess.Reset()
		case "navigate":
			if !sess.Navigate(act.Page) {
				_ = s.store.Delete(context.Background(), sess.ID)
				return
			}
		default:
			log.Debug().Str("type", act.Type).Str("game", sess.ID).Msg("unknown websocket action")
		}
	}
}

// writePump forwards session events to the connection and keeps it alive
// with pings. It closes the connection when the event stream ends.
func (s *Server) writePump(conn *websocket.Conn, events <-chan session.Event) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case ev, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The session closed or dropped us.
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "game closed"))
				return
			}
			msg, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Msg("encode event")
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
