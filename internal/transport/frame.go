// Package transport implements the push-channel wire protocol over a
// websocket and an HTTP long-polling fallback.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Event is a push-channel event name, using a custom type for better type safety
type Event string

// Inbound events (server -> client)
const (
	EventConnect           Event = "connect"
	EventDisconnect        Event = "disconnect"
	EventConnectError      Event = "connect_error"
	EventNewMessage        Event = "new_message"
	EventUserTyping        Event = "user_typing"
	EventUserStoppedTyping Event = "user_stopped_typing"
	EventJoinedRoom        Event = "joined_room"
	EventUserJoinedRoom    Event = "user_joined_room"
	EventUserLeftRoom      Event = "user_left_room"
	EventError             Event = "error"
)

// Outbound emissions (client -> server)
const (
	EventJoinRoom    Event = "join_room"
	EventLeaveRoom   Event = "leave_room"
	EventSendMessage Event = "send_message"
	EventTypingStart Event = "typing_start"
	EventTypingStop  Event = "typing_stop"
)

// ReasonServerDisconnect is the disconnect reason the server sends before
// closing a connection on its own initiative.
const ReasonServerDisconnect = "io server disconnect"

// String returns the string representation of the Event
func (e Event) String() string {
	return string(e)
}

// IsOutbound reports whether clients may emit this event
func (e Event) IsOutbound() bool {
	switch e {
	case EventJoinRoom, EventLeaveRoom, EventSendMessage, EventTypingStart, EventTypingStop:
		return true
	default:
		return false
	}
}

var (
	ErrClosed       = errors.New("transport closed")
	ErrServerClosed = errors.New("connection closed by server")
)

// Frame is the envelope for every push-channel event.
type Frame struct {
	Event Event           `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data into a frame for event.
func NewFrame(event Event, data any) (Frame, error) {
	f := Frame{Event: event}
	if data == nil {
		return f, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	f.Data = raw
	return f, nil
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v any) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s: empty payload", f.Event)
	}
	if err := json.Unmarshal(f.Data, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", f.Event, err)
	}
	return nil
}

// Payloads

type RoomData struct {
	RoomID string `json:"roomId"`
}

type MessageData struct {
	RoomID      string `json:"roomId"`
	Message     string `json:"message"`
	MessageType string `json:"messageType,omitempty"`
}

type DisconnectData struct {
	Reason string `json:"reason"`
}

type ErrorData struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

type PresenceData struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}
