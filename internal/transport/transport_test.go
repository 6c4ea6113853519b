package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEventDirection(t *testing.T) {
	for _, e := range []Event{EventJoinRoom, EventLeaveRoom, EventSendMessage, EventTypingStart, EventTypingStop} {
		assert.True(t, e.IsOutbound(), e)
	}
	for _, e := range []Event{EventConnect, EventNewMessage, EventUserTyping, EventError, Event("bogus")} {
		assert.False(t, e.IsOutbound(), e)
	}
}

func TestFrameDecode(t *testing.T) {
	f, err := NewFrame(EventJoinRoom, RoomData{RoomID: "R1"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"roomId":"R1"}`, string(f.Data))

	var d RoomData
	require.NoError(t, f.Decode(&d))
	assert.Equal(t, "R1", d.RoomID)

	empty, err := NewFrame(EventConnect, nil)
	require.NoError(t, err)
	assert.Error(t, empty.Decode(&d))

	bad := Frame{Event: EventJoinRoom, Data: json.RawMessage(`"not an object"`)}
	assert.Error(t, bad.Decode(&d))
}

func TestEndpointSchemes(t *testing.T) {
	assert.Equal(t, "ws://host/rt", httpToWS("http://host/rt"))
	assert.Equal(t, "wss://host/rt", httpToWS("https://host/rt"))
	assert.Equal(t, "ws://host/rt", httpToWS("ws://host/rt"))
	assert.Equal(t, "http://host/rt", wsToHTTP("ws://host/rt"))
	assert.Equal(t, "https://host/rt", wsToHTTP("wss://host/rt"))
}

type stubTransport struct {
	name string
	err  error
}

func (s stubTransport) Name() string { return s.name }

func (s stubTransport) Dial(ctx context.Context, endpoint string, p Params) (Conn, error) {
	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

func TestNegotiateJoinsFailures(t *testing.T) {
	errWS := errors.New("ws refused")
	errPoll := errors.New("poll refused")

	_, err := Negotiate(context.Background(), "http://x", Params{}, []Transport{
		stubTransport{name: NameWebsocket, err: errWS},
		stubTransport{name: NamePolling, err: errPoll},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errWS)
	assert.ErrorIs(t, err, errPoll)
	assert.Contains(t, err.Error(), "websocket: ws refused")

	_, err = Negotiate(context.Background(), "http://x", Params{}, nil)
	assert.Error(t, err)
}

// wsServer upgrades /ws and hands the server side of each connection to fn.
func wsServer(t *testing.T, fn func(*websocket.Conn, *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rt/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fn(conn, r)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestWebsocketSplitsBatchedFrames(t *testing.T) {
	requests := make(chan *http.Request, 1)
	ts := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		requests <- r
		batch := `{"event":"connect"}` + "\n" + `{"event":"new_message","data":{"id":"m1","roomId":"R1"}}` + "\n"
		conn.WriteMessage(websocket.TextMessage, []byte(batch))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		conn.ReadMessage()
		conn.Close()
	})

	c, err := NewWebsocket(quietLogger()).Dial(context.Background(), ts.URL+"/rt", Params{RoomID: "R1", UserID: "U1", Token: "tok"})
	require.NoError(t, err)
	defer c.Close()

	f, err := c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventConnect, f.Event)

	f, err = c.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventNewMessage, f.Event)

	_, err = c.Read(context.Background())
	assert.ErrorIs(t, err, ErrServerClosed)

	r := <-requests
	assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
	assert.Equal(t, "R1", r.URL.Query().Get("roomId"))
	assert.Equal(t, "U1", r.URL.Query().Get("userId"))
	assert.Equal(t, NameWebsocket, c.Transport())
}

func TestWebsocketWriteAndClose(t *testing.T) {
	received := make(chan Frame, 1)
	ts := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		json.Unmarshal(data, &f)
		received <- f
		conn.ReadMessage()
	})

	c, err := NewWebsocket(quietLogger()).Dial(context.Background(), ts.URL+"/rt", Params{UserID: "U1", Token: "tok"})
	require.NoError(t, err)

	f, _ := NewFrame(EventJoinRoom, RoomData{RoomID: "R9"})
	require.NoError(t, c.Write(context.Background(), f))
	select {
	case got := <-received:
		assert.Equal(t, EventJoinRoom, got.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not received")
	}

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Write(context.Background(), f), ErrClosed)
	_, err = c.Read(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWebsocketDataKeepsConnectionAlive(t *testing.T) {
	ts := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		defer conn.Close()
		// Data every 50ms and never a ping: longer than one read wait in total.
		for i := 0; i < 8; i++ {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"user_typing"}`)); err != nil {
				return
			}
			time.Sleep(50 * time.Millisecond)
		}
		conn.ReadMessage()
	})

	ws := NewWebsocket(quietLogger())
	ws.ReadWait = 150 * time.Millisecond
	c, err := ws.Dial(context.Background(), ts.URL+"/rt", Params{UserID: "U1", Token: "tok"})
	require.NoError(t, err)
	defer c.Close()

	for i := 0; i < 8; i++ {
		f, err := c.Read(context.Background())
		require.NoError(t, err, "frame %d", i)
		assert.Equal(t, EventUserTyping, f.Event)
	}
}

func TestWebsocketHandshakeRejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	t.Cleanup(ts.Close)

	_, err := NewWebsocket(quietLogger()).Dial(context.Background(), ts.URL+"/rt", Params{UserID: "U1", Token: "tok"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

// pollServer is a minimal long-polling endpoint with a scripted frame queue.
type pollServer struct {
	mu      sync.Mutex
	frames  [][]Frame
	emitted []Frame
	deleted bool
}

func (s *pollServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/rt/poll":
		json.NewEncoder(w).Encode(OpenResponse{SID: "s1"})
	case r.Method == http.MethodGet && r.URL.Path == "/rt/poll":
		if len(s.frames) == 0 {
			w.WriteHeader(http.StatusGone)
			return
		}
		batch := s.frames[0]
		s.frames = s.frames[1:]
		json.NewEncoder(w).Encode(PollResponse{Frames: batch})
	case r.Method == http.MethodPost && r.URL.Path == "/rt/poll/emit":
		var f Frame
		json.NewDecoder(r.Body).Decode(&f)
		s.emitted = append(s.emitted, f)
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodDelete && r.URL.Path == "/rt/poll":
		s.deleted = r.URL.Query().Get("sid") == "s1" && strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ")
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func TestPollingRoundTrip(t *testing.T) {
	srv := &pollServer{frames: [][]Frame{
		{{Event: EventConnect}},
		{},
		{{Event: EventUserTyping}, {Event: EventUserStoppedTyping}},
	}}
	ts := httptest.NewServer(http.HandlerFunc(srv.handler))
	t.Cleanup(ts.Close)

	c, err := NewPolling(time.Second, quietLogger()).Dial(context.Background(), ts.URL+"/rt", Params{UserID: "U1", Token: "tok"})
	require.NoError(t, err)
	assert.Equal(t, NamePolling, c.Transport())

	var events []Event
	for i := 0; i < 3; i++ {
		f, err := c.Read(context.Background())
		require.NoError(t, err)
		events = append(events, f.Event)
	}
	assert.Equal(t, []Event{EventConnect, EventUserTyping, EventUserStoppedTyping}, events)

	// Queue exhausted: the server answers 410.
	_, err = c.Read(context.Background())
	assert.ErrorIs(t, err, ErrServerClosed)

	f, _ := NewFrame(EventTypingStart, RoomData{RoomID: "R1"})
	require.NoError(t, c.Write(context.Background(), f))
	require.NoError(t, c.Close())

	srv.mu.Lock()
	defer srv.mu.Unlock()
	require.Len(t, srv.emitted, 1)
	assert.Equal(t, EventTypingStart, srv.emitted[0].Event)
	assert.True(t, srv.deleted)

	assert.ErrorIs(t, c.Write(context.Background(), f), ErrClosed)
}
