package realtime

import (
	"encoding/json"
	"errors"

	"notify-realtime/internal/errs"
	"notify-realtime/internal/models"
	"notify-realtime/internal/transport"
)

// newMessageData accepts both {"message": {...}} and a bare message object.
type newMessageData struct {
	Message *models.Message `json:"message"`
}

func decodeMessage(raw json.RawMessage) (models.Message, error) {
	var wrapped newMessageData
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Message != nil {
		return *wrapped.Message, nil
	}
	var msg models.Message
	err := json.Unmarshal(raw, &msg)
	return msg, err
}

func (m *Manager) dispatch(f transport.Frame) {
	switch f.Event {
	case transport.EventNewMessage:
		msg, err := decodeMessage(f.Data)
		if err == nil {
			err = msg.Validate()
		}
		if err != nil {
			m.logger.Warn("Dropping invalid new_message", "error", err)
			return
		}
		m.registry.EmitMessage(msg)

	case transport.EventUserTyping, transport.EventUserStoppedTyping:
		var status models.TypingStatus
		if err := f.Decode(&status); err != nil {
			m.logger.Warn("Dropping invalid typing event", "event", f.Event, "error", err)
			return
		}
		status.IsTyping = f.Event == transport.EventUserTyping
		m.registry.EmitTyping(status)

	case transport.EventJoinedRoom, transport.EventUserJoinedRoom, transport.EventUserLeftRoom:
		var data transport.PresenceData
		if err := f.Decode(&data); err != nil {
			m.logger.Warn("Dropping invalid presence event", "event", f.Event, "error", err)
			return
		}
		kind := models.PresenceJoined
		switch f.Event {
		case transport.EventUserJoinedRoom:
			kind = models.PresenceUserJoined
		case transport.EventUserLeftRoom:
			kind = models.PresenceUserLeft
		}
		m.logger.Debug("Presence event", "event", f.Event, "roomID", data.RoomID, "userID", data.UserID)
		m.registry.EmitPresence(models.PresenceEvent{
			Kind:     kind,
			RoomID:   data.RoomID,
			UserID:   data.UserID,
			UserName: data.UserName,
		})

	case transport.EventError:
		var data transport.ErrorData
		if err := f.Decode(&data); err != nil || data.Message == "" {
			data.Message = "unspecified server error"
		}
		m.registry.EmitError(errs.New(errs.KindServer, "server", errors.New(data.Message)))

	case transport.EventConnect:
		m.logger.Debug("Server acknowledged connection")

	default:
		m.logger.Debug("Ignoring unknown event", "event", f.Event)
	}
}
