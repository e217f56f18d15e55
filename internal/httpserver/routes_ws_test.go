package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/memory-game/internal/game"
	"github.com/robalobadob/memory-game/internal/session"
)

// readUntil reads events until match returns true.
func readUntil(t *testing.T, conn *websocket.Conn, match func(session.Event) bool) session.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev session.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if match(ev) {
			return ev
		}
	}
}

func flippedCount(ev session.Event) int {
	if ev.State == nil {
		return 0
	}
	n := 0
	for _, c := range ev.State.Cards {
		if c.Flipped && !c.Matched {
			n++
		}
	}
	return n
}

func TestWebSocketStream(t *testing.T) {
	h := newHarness(t)
	g, _ := h.newGame(t, "", nil)

	ts := httptest.NewServer(h.srv.Handler())
	defer ts.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + g.ID + "/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	first := readUntil(t, conn, func(ev session.Event) bool { return true })
	require.Equal(t, session.EventState, first.Type)
	assert.Len(t, first.State.Cards, 16)

	p := layout()[0]
	require.NoError(t, conn.WriteJSON(clientAction{Type: "select", Grid: game.GridMain, CardID: p[0]}))
	require.NoError(t, conn.WriteJSON(clientAction{Type: "select", Grid: game.GridMain, CardID: p[1]}))
	readUntil(t, conn, func(ev session.Event) bool { return flippedCount(ev) == 2 })

	h.clk.Advance(time.Second)
	ev := readUntil(t, conn, func(ev session.Event) bool {
		return ev.State != nil && ev.State.MatchedPairs == 1
	})
	assert.Equal(t, 100, ev.State.Score)

	require.NoError(t, conn.WriteJSON(clientAction{Type: "navigate", Page: session.PageStart}))
	readUntil(t, conn, func(ev session.Event) bool { return ev.Type == session.EventClosed })

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.CloseNormalClosure, closeErr.Code)

	require.Eventually(t, func() bool { return h.store.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketUnknownGame(t *testing.T) {
	h := newHarness(t)
	ts := httptest.NewServer(h.srv.Handler())
	defer ts.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/game/nope/ws", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
