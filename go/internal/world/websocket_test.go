package world

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsServer upgrades one connection, runs script on it and reports what the
// client sent until the client closed.
func wsServer(t *testing.T, script func(conn *websocket.Conn)) (string, <-chan []Envelope) {
	t.Helper()
	received := make(chan []Envelope, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		script(conn)

		var got []Envelope
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var env Envelope
			if json.Unmarshal(data, &env) == nil {
				got = append(got, env)
			}
		}
		received <- got
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), received
}

func TestWebSocketChannel_DeliversAndSends(t *testing.T) {
	url, received := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteJSON(event(EventTypeZoneRemoved, `{"cap": {"id": 3}}`))
	})

	dialer := NewWebSocketDialer(DefaultWebSocketConfig(url), nil)
	ch, err := dialer.Dial(context.Background())
	require.NoError(t, err)

	select {
	case env := <-ch.Inbound():
		assert.Equal(t, EventTypeZoneRemoved, env.Type)
		assert.JSONEq(t, `{"cap": {"id": 3}}`, string(env.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope received")
	}

	sync, err := NewEnvelope(EventTypeSyncRequest, time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, ch.Send(sync))

	bye, err := NewEnvelope(EventTypeDisconnect, time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, ch.Send(bye))
	require.NoError(t, ch.Close())

	select {
	case got := <-received:
		require.Len(t, got, 2)
		assert.Equal(t, EventTypeSyncRequest, got[0].Type)
		assert.Equal(t, EventTypeDisconnect, got[1].Type)
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the close")
	}

	assert.ErrorIs(t, ch.Send(sync), ErrChannelClosed)
}

func TestWebSocketChannel_InboundClosesWhenServerLeaves(t *testing.T) {
	url, _ := wsServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
		conn.Close()
	})

	ch, err := NewWebSocketDialer(DefaultWebSocketConfig(url), nil).Dial(context.Background())
	require.NoError(t, err)
	defer ch.Close()

	select {
	case _, ok := <-ch.Inbound():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound was not closed")
	}
}

func TestWebSocketChannel_InboundBufferIsSeparate(t *testing.T) {
	url, _ := wsServer(t, func(conn *websocket.Conn) {})

	cfg := DefaultWebSocketConfig(url)
	cfg.SendBufferSize = 2
	cfg.InboundBuffer = 32

	ch, err := NewWebSocketDialer(cfg, nil).Dial(context.Background())
	require.NoError(t, err)
	defer ch.Close()

	ws, ok := ch.(*wsChannel)
	require.True(t, ok)
	assert.Equal(t, 32, cap(ws.inbound))
	assert.Equal(t, 2, cap(ws.send))
}

func TestWebSocketDialer_Refused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, err := NewWebSocketDialer(DefaultWebSocketConfig(url), nil).Dial(context.Background())
	assert.Error(t, err)
}
