package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"notify-realtime/internal/models"
)

type fakeRooms struct {
	current string
	calls   []string
}

func (r *fakeRooms) CurrentRoom() string { return r.current }

func (r *fakeRooms) JoinRoom(roomID string) {
	r.calls = append(r.calls, "join "+roomID)
	r.current = roomID
}

func (r *fakeRooms) LeaveRoom(roomID string) {
	r.calls = append(r.calls, "leave "+roomID)
	if r.current == roomID {
		r.current = ""
	}
}

type fakeSender struct {
	typing []string
	sent   []string
}

func (s *fakeSender) SetTyping(roomID string, isTyping bool) {
	if isTyping {
		s.typing = append(s.typing, "start "+roomID)
	} else {
		s.typing = append(s.typing, "stop "+roomID)
	}
}

func (s *fakeSender) SendMessage(ctx context.Context, roomID, text string, messageType models.MessageType) (*models.Message, error) {
	s.sent = append(s.sent, roomID+": "+text)
	return &models.Message{RoomID: roomID, Text: text}, nil
}

func TestJoinLeavesPreviousRoom(t *testing.T) {
	r := &fakeRooms{current: "R1"}
	s := &fakeSender{}

	assert.False(t, handleLine(context.Background(), r, s, "/join R2"))
	assert.Equal(t, []string{"leave R1", "join R2"}, r.calls)
	assert.Equal(t, []string{"stop R1"}, s.typing)

	// Joining the room we are already in does nothing.
	assert.False(t, handleLine(context.Background(), r, s, "/join R2"))
	assert.Equal(t, []string{"leave R1", "join R2"}, r.calls)
}

func TestJoinWithoutCurrentRoom(t *testing.T) {
	r := &fakeRooms{}
	s := &fakeSender{}

	handleLine(context.Background(), r, s, "/join R1")
	assert.Equal(t, []string{"join R1"}, r.calls)
}

func TestLinesSendToCurrentRoom(t *testing.T) {
	r := &fakeRooms{current: "R1"}
	s := &fakeSender{}

	assert.False(t, handleLine(context.Background(), r, s, "  hello  "))
	assert.Equal(t, []string{"R1: hello"}, s.sent)

	r.current = ""
	handleLine(context.Background(), r, s, "lost")
	assert.Equal(t, []string{"R1: hello"}, s.sent)

	assert.True(t, handleLine(context.Background(), r, s, "/quit"))
}
