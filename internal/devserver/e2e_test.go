package devserver_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-realtime/internal/api"
	"notify-realtime/internal/auth"
	"notify-realtime/internal/chat"
	"notify-realtime/internal/devserver"
	"notify-realtime/internal/errs"
	"notify-realtime/internal/models"
	"notify-realtime/internal/notification"
	"notify-realtime/internal/realtime"
	"notify-realtime/internal/transport"
)

type harness struct {
	srv *devserver.Server
	url string
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := devserver.New(devserver.Config{
		JWTSecret:  "e2e-secret",
		PollHold:   200 * time.Millisecond,
		PingPeriod: time.Second,
		Logger:     quietLogger(),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Close)
	return &harness{srv: srv, url: ts.URL}
}

func (h *harness) token(t *testing.T, userID string, admin bool) string {
	t.Helper()
	token, err := h.srv.IssueToken(userID, userID+"@example.com", admin)
	require.NoError(t, err)
	return token
}

func (h *harness) apiClient(token string) *api.Client {
	return api.New(h.url+"/api/v1", auth.StaticToken(token), 5*time.Second, quietLogger())
}

func (h *harness) manager(t *testing.T, transports ...transport.Transport) *realtime.Manager {
	t.Helper()
	m := realtime.New(realtime.Config{
		Endpoint:          h.url + "/realtime",
		Transports:        transports,
		ReconnectDelay:    10 * time.Millisecond,
		ReconnectDelayMax: 50 * time.Millisecond,
		Logger:            quietLogger(),
	})
	t.Cleanup(m.Close)
	return m
}

func (h *harness) inRoom(roomID, userID string) func() bool {
	return func() bool {
		return slices.Contains(h.srv.Hub().RoomUsers(roomID), userID)
	}
}

func connectedCh(m *realtime.Manager) chan models.ConnectionChange {
	ch := make(chan models.ConnectionChange, 32)
	m.OnConnectionChange(func(c models.ConnectionChange) { ch <- c })
	return ch
}

func waitFor(t *testing.T, ch chan models.ConnectionChange, state models.ConnectionState) models.ConnectionChange {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-ch:
			if c.State == state {
				return c
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", state)
			return models.ConnectionChange{}
		}
	}
}

func TestChatOverBothTransports(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	aliceToken := h.token(t, "alice", false)
	alice := h.manager(t, transport.NewWebsocket(quietLogger()))
	aliceChanges := connectedCh(alice)
	aliceChat := chat.NewSession(alice, h.apiClient(aliceToken), chat.Options{SenderID: "alice", Logger: quietLogger()})
	t.Cleanup(aliceChat.Close)

	bobToken := h.token(t, "bob", false)
	bob := h.manager(t, transport.NewPolling(time.Second, quietLogger()))
	bobChanges := connectedCh(bob)
	bobChat := chat.NewSession(bob, h.apiClient(bobToken), chat.Options{SenderID: "bob", Logger: quietLogger()})
	t.Cleanup(bobChat.Close)

	require.NoError(t, alice.Connect(ctx, realtime.ConnectParams{RoomID: "R1", UserID: "alice", Token: aliceToken}))
	require.NoError(t, bob.Connect(ctx, realtime.ConnectParams{RoomID: "R1", UserID: "bob", Token: bobToken}))
	waitFor(t, aliceChanges, models.StateConnected)
	waitFor(t, bobChanges, models.StateConnected)
	require.Eventually(t, h.inRoom("R1", "alice"), 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, h.inRoom("R1", "bob"), 2*time.Second, 10*time.Millisecond)

	sent, err := aliceChat.SendMessage(ctx, "R1", "hello bob", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", sent.SenderID)

	// Both the sender and the other member render the echoed record.
	echoed := func(s *chat.Session) func() bool {
		return func() bool {
			msgs := s.Messages("R1")
			return len(msgs) == 1 && msgs[0].ID == sent.ID
		}
	}
	assert.Eventually(t, echoed(aliceChat), 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, echoed(bobChat), 2*time.Second, 10*time.Millisecond)

	aliceChat.SetTyping("R1", true)
	assert.Eventually(t, func() bool {
		return bobChat.TypingUsers("R1")["alice"] != ""
	}, 2*time.Second, 10*time.Millisecond)

	aliceChat.SetTyping("R1", false)
	assert.Eventually(t, func() bool {
		return len(bobChat.TypingUsers("R1")) == 0
	}, 2*time.Second, 10*time.Millisecond)

	bob.LeaveRoom("R1")
	assert.Eventually(t, func() bool { return !h.inRoom("R1", "bob")() }, 2*time.Second, 10*time.Millisecond)
}

func TestServerDisconnectTriggersReconnect(t *testing.T) {
	for _, tc := range []struct {
		name      string
		transport func() transport.Transport
	}{
		{"websocket", func() transport.Transport { return transport.NewWebsocket(quietLogger()) }},
		{"polling", func() transport.Transport { return transport.NewPolling(time.Second, quietLogger()) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			token := h.token(t, "alice", false)
			m := h.manager(t, tc.transport())
			changes := connectedCh(m)

			require.NoError(t, m.Connect(context.Background(), realtime.ConnectParams{RoomID: "R1", UserID: "alice", Token: token}))
			waitFor(t, changes, models.StateConnected)
			require.Eventually(t, h.inRoom("R1", "alice"), 2*time.Second, 10*time.Millisecond)

			assert.Equal(t, 1, h.srv.Hub().DisconnectUser("alice"))

			dropped := waitFor(t, changes, models.StateReconnecting)
			assert.Equal(t, transport.ReasonServerDisconnect, dropped.Reason)
			waitFor(t, changes, models.StateConnected)

			// The desired room is joined again on the new connection.
			assert.Eventually(t, h.inRoom("R1", "alice"), 2*time.Second, 10*time.Millisecond)
			assert.Equal(t, "R1", m.CurrentRoom())
		})
	}
}

func TestRejectedTokenExhaustsReconnects(t *testing.T) {
	h := newHarness(t)
	other := devserver.New(devserver.Config{JWTSecret: "another-secret", Logger: quietLogger()})
	t.Cleanup(other.Close)
	// Well-formed and unexpired, but signed with the wrong key.
	token, err := other.IssueToken("alice", "", false)
	require.NoError(t, err)

	m := h.manager(t, transport.NewWebsocket(quietLogger()))
	changes := connectedCh(m)
	errCh := make(chan error, 8)
	m.OnError(func(err error) { errCh <- err })

	require.NoError(t, m.Connect(context.Background(), realtime.ConnectParams{UserID: "alice", Token: token}))
	failed := waitFor(t, changes, models.StateFailed)
	assert.Equal(t, realtime.DefaultMaxReconnectAttempts, failed.Attempt)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, errs.ErrReconnectExhausted)
		assert.Contains(t, err.Error(), "401")
	case <-time.After(time.Second):
		t.Fatal("exhaustion was not reported")
	}
	assert.Empty(t, errCh, "intermediate failures are not reported as errors")
}

func TestNotificationLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	admin := h.apiClient(h.token(t, "ops", true))
	for _, title := range []string{"one", "two", "three"} {
		_, err := admin.SendNotification(ctx, models.SendNotificationRequest{UserID: "alice", Type: "info", Title: title})
		require.NoError(t, err)
	}

	poller := notification.NewPoller(h.apiClient(h.token(t, "alice", false)), time.Hour, quietLogger())
	require.NoError(t, poller.FetchAll(ctx))
	require.Len(t, poller.Notifications(), 3)
	assert.Equal(t, 3, poller.UnreadCount())

	first := poller.Notifications()[0]
	require.NoError(t, poller.MarkAsRead(ctx, first.ID))
	assert.Equal(t, 2, poller.UnreadCount())

	require.NoError(t, poller.FetchAll(ctx))
	assert.Equal(t, 2, poller.UnreadCount(), "server agrees after the confirm")

	require.NoError(t, poller.MarkAllAsRead(ctx))
	require.NoError(t, poller.FetchAll(ctx))
	assert.Equal(t, 0, poller.UnreadCount())

	require.NoError(t, poller.ClearAllNotifications(ctx))
	require.NoError(t, poller.FetchAll(ctx))
	assert.Empty(t, poller.Notifications())

	// Confirm of an id the server no longer has.
	err := poller.DeleteNotification(ctx, first.ID)
	var statusErr *api.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
}

func TestAPIRejectsBadRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.apiClient("not-a-token").ListNotifications(ctx)
	var statusErr *api.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)
	assert.Equal(t, "unauthorized", statusErr.Message)

	// Only admin tokens may send notifications.
	_, err = h.apiClient(h.token(t, "alice", false)).SendNotification(ctx, models.SendNotificationRequest{UserID: "bob", Type: "info", Title: "x"})
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusForbidden, statusErr.Status)

	_, err = h.apiClient(h.token(t, "alice", false)).SendMessage(ctx, models.SendMessageRequest{RoomID: "R1"})
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
}
