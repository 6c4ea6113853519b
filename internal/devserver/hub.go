package devserver

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"notify-realtime/internal/models"
	"notify-realtime/internal/transport"
)

var ErrPeerNotFound = errors.New("peer not found")

// peer is one connected client, whichever transport it came in on.
type peer interface {
	ID() string
	UserID() string
	// Send queues f and reports whether the peer accepted it.
	Send(f transport.Frame) bool
	// Close ends the connection from the server side after telling the
	// client why.
	Close(reason string)
}

// Hub tracks connected peers and their room membership and relays frames
// between them.
type Hub struct {
	logger *slog.Logger

	mu sync.RWMutex
	// Registered peers by id
	peers map[string]peer
	// Room members: roomID -> peerID -> peer
	rooms map[string]map[string]peer
	// Rooms joined by each peer
	peerRooms map[string]map[string]bool
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:    logger,
		peers:     make(map[string]peer),
		rooms:     make(map[string]map[string]peer),
		peerRooms: make(map[string]map[string]bool),
	}
}

func (h *Hub) register(p peer) {
	h.mu.Lock()
	h.peers[p.ID()] = p
	h.peerRooms[p.ID()] = make(map[string]bool)
	h.mu.Unlock()

	h.logger.Info("Client registered", "clientID", p.ID(), "userID", p.UserID())
	p.Send(newFrame(transport.EventConnect, map[string]string{"sid": p.ID()}))
}

// unregister removes p and tells the rooms it was in that it left.
func (h *Hub) unregister(p peer) {
	h.mu.Lock()
	if _, ok := h.peers[p.ID()]; !ok {
		h.mu.Unlock()
		return
	}
	rooms := make([]string, 0, len(h.peerRooms[p.ID()]))
	for roomID := range h.peerRooms[p.ID()] {
		rooms = append(rooms, roomID)
	}
	for _, roomID := range rooms {
		h.removeFromRoomLocked(p.ID(), roomID)
	}
	delete(h.peers, p.ID())
	delete(h.peerRooms, p.ID())
	h.mu.Unlock()

	for _, roomID := range rooms {
		h.Broadcast(roomID, newFrame(transport.EventUserLeftRoom, transport.PresenceData{RoomID: roomID, UserID: p.UserID()}), "")
	}
	h.logger.Info("Client unregistered", "clientID", p.ID(), "userID", p.UserID(), "rooms", len(rooms))
}

func (h *Hub) removeFromRoomLocked(peerID, roomID string) {
	members := h.rooms[roomID]
	delete(members, peerID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
	if rooms := h.peerRooms[peerID]; rooms != nil {
		delete(rooms, roomID)
	}
}

// handle processes one frame emitted by p.
func (h *Hub) handle(p peer, f transport.Frame) {
	switch f.Event {
	case transport.EventJoinRoom:
		var d transport.RoomData
		if err := f.Decode(&d); err != nil || d.RoomID == "" {
			h.sendError(p, "INVALID_MESSAGE", "join_room requires roomId")
			return
		}
		h.join(p, d.RoomID)

	case transport.EventLeaveRoom:
		var d transport.RoomData
		if err := f.Decode(&d); err != nil || d.RoomID == "" {
			h.sendError(p, "INVALID_MESSAGE", "leave_room requires roomId")
			return
		}
		h.leave(p, d.RoomID)

	case transport.EventTypingStart, transport.EventTypingStop:
		var d transport.RoomData
		if err := f.Decode(&d); err != nil || !h.inRoom(p, d.RoomID) {
			return
		}
		event := transport.EventUserStoppedTyping
		if f.Event == transport.EventTypingStart {
			event = transport.EventUserTyping
		}
		h.Broadcast(d.RoomID, newFrame(event, models.TypingStatus{
			UserID:   p.UserID(),
			UserName: p.UserID(),
			IsTyping: event == transport.EventUserTyping,
			RoomID:   d.RoomID,
		}), p.ID())

	case transport.EventSendMessage:
		// Ephemeral message: relayed to the room, never stored.
		var d transport.MessageData
		if err := f.Decode(&d); err != nil || !h.inRoom(p, d.RoomID) {
			h.sendError(p, "NOT_IN_ROOM", "send_message requires a joined room")
			return
		}
		msgType := models.MessageType(d.MessageType)
		if !msgType.IsValid() {
			msgType = models.MessageTypeText
		}
		h.PublishMessage(models.Message{
			ID:          uuid.NewString(),
			RoomID:      d.RoomID,
			SenderID:    p.UserID(),
			Text:        d.Message,
			MessageType: msgType,
		})

	default:
		h.logger.Debug("Ignoring client event", "event", f.Event, "clientID", p.ID())
		h.sendError(p, "UNKNOWN_EVENT", "unsupported event "+f.Event.String())
	}
}

func (h *Hub) join(p peer, roomID string) {
	h.mu.Lock()
	rooms, ok := h.peerRooms[p.ID()]
	if !ok {
		h.mu.Unlock()
		return
	}
	already := rooms[roomID]
	if !already {
		if h.rooms[roomID] == nil {
			h.rooms[roomID] = make(map[string]peer)
		}
		h.rooms[roomID][p.ID()] = p
		rooms[roomID] = true
	}
	h.mu.Unlock()

	p.Send(newFrame(transport.EventJoinedRoom, transport.PresenceData{RoomID: roomID, UserID: p.UserID()}))
	if !already {
		h.logger.Debug("Client joined room", "clientID", p.ID(), "roomID", roomID)
		h.Broadcast(roomID, newFrame(transport.EventUserJoinedRoom, transport.PresenceData{RoomID: roomID, UserID: p.UserID()}), p.ID())
	}
}

func (h *Hub) leave(p peer, roomID string) {
	h.mu.Lock()
	if !h.peerRooms[p.ID()][roomID] {
		h.mu.Unlock()
		return
	}
	h.removeFromRoomLocked(p.ID(), roomID)
	h.mu.Unlock()

	h.logger.Debug("Client left room", "clientID", p.ID(), "roomID", roomID)
	h.Broadcast(roomID, newFrame(transport.EventUserLeftRoom, transport.PresenceData{RoomID: roomID, UserID: p.UserID()}), p.ID())
}

func (h *Hub) inRoom(p peer, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.peerRooms[p.ID()][roomID]
}

// Broadcast sends f to every member of roomID except the peer with id
// exceptID.
func (h *Hub) Broadcast(roomID string, f transport.Frame, exceptID string) int {
	h.mu.RLock()
	targets := make([]peer, 0, len(h.rooms[roomID]))
	for id, p := range h.rooms[roomID] {
		if id != exceptID {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	sent := 0
	for _, p := range targets {
		if p.Send(f) {
			sent++
		}
	}
	return sent
}

// PublishMessage delivers msg to every member of its room, sender included.
func (h *Hub) PublishMessage(msg models.Message) int {
	return h.Broadcast(msg.RoomID, newFrame(transport.EventNewMessage, map[string]models.Message{"message": msg}), "")
}

// RoomUsers returns the user ids currently in roomID.
func (h *Hub) RoomUsers(roomID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := make([]string, 0, len(h.rooms[roomID]))
	for _, p := range h.rooms[roomID] {
		users = append(users, p.UserID())
	}
	return users
}

// PeerCount returns the number of connected peers.
func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// DisconnectUser closes every connection of userID from the server side.
func (h *Hub) DisconnectUser(userID string) int {
	h.mu.RLock()
	var targets []peer
	for _, p := range h.peers {
		if p.UserID() == userID {
			targets = append(targets, p)
		}
	}
	h.mu.RUnlock()

	for _, p := range targets {
		p.Close(transport.ReasonServerDisconnect)
	}
	return len(targets)
}

// Close disconnects every peer.
func (h *Hub) Close() {
	h.mu.RLock()
	targets := make([]peer, 0, len(h.peers))
	for _, p := range h.peers {
		targets = append(targets, p)
	}
	h.mu.RUnlock()

	for _, p := range targets {
		p.Close(transport.ReasonServerDisconnect)
	}
	h.logger.Info("Hub closed", "clients", len(targets))
}

func (h *Hub) sendError(p peer, code, message string) {
	p.Send(newFrame(transport.EventError, transport.ErrorData{Code: code, Message: message}))
}

// newFrame builds a frame with a fresh id. Payloads are plain structs and
// maps, so marshalling cannot fail.
func newFrame(event transport.Event, data any) transport.Frame {
	f, err := transport.NewFrame(event, data)
	if err != nil {
		slog.Error("Failed to build frame", "event", event, "error", err)
		return transport.Frame{Event: transport.EventError}
	}
	f.ID = uuid.NewString()
	return f
}
