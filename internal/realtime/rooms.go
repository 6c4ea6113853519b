package realtime

import (
	"errors"

	"notify-realtime/internal/models"
	"notify-realtime/internal/transport"
)

// JoinRoom records roomID as the desired room and emits join_room when the
// channel is connected. Otherwise the join is replayed on the next
// transition to Connected. Switching rooms requires an explicit LeaveRoom.
func (m *Manager) JoinRoom(roomID string) {
	if roomID == "" {
		return
	}
	m.mu.Lock()
	m.room = roomID
	conn, connected := m.conn, m.state == models.StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		m.logger.Debug("Join deferred until connected", "roomID", roomID)
		return
	}
	if err := m.write(conn, transport.EventJoinRoom, transport.RoomData{RoomID: roomID}); err != nil {
		m.logger.Warn("Failed to join room", "roomID", roomID, "error", err)
	}
}

// LeaveRoom emits leave_room when connected and forgets roomID as the
// desired room. It never fails.
func (m *Manager) LeaveRoom(roomID string) {
	if roomID == "" {
		return
	}
	m.mu.Lock()
	if m.room == roomID {
		m.room = ""
	}
	conn, connected := m.conn, m.state == models.StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return
	}
	if err := m.write(conn, transport.EventLeaveRoom, transport.RoomData{RoomID: roomID}); err != nil {
		m.logger.Debug("Failed to leave room", "roomID", roomID, "error", err)
	}
}

// SendTypingStatus emits typing_start or typing_stop. Fire and forget: no
// acknowledgement, no retry, nothing happens when not connected.
func (m *Manager) SendTypingStatus(isTyping bool, roomID string) {
	event := transport.EventTypingStop
	if isTyping {
		event = transport.EventTypingStart
	}
	if err := m.Emit(event, transport.RoomData{RoomID: roomID}); err != nil && !errors.Is(err, ErrNotConnected) {
		m.logger.Debug("Typing status not sent", "event", event, "roomID", roomID, "error", err)
	}
}
