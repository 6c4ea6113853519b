package models

// TypingStatus is an ephemeral "user is typing" signal scoped to one room.
type TypingStatus struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
	RoomID   string `json:"roomId"`
}

// PresenceKind tells which membership change a PresenceEvent describes
type PresenceKind string

const (
	// PresenceJoined acknowledges our own join of a room
	PresenceJoined     PresenceKind = "joined"
	PresenceUserJoined PresenceKind = "user_joined"
	PresenceUserLeft   PresenceKind = "user_left"
)

// PresenceEvent reports room membership changes seen on the push channel.
type PresenceEvent struct {
	Kind     PresenceKind `json:"kind"`
	RoomID   string       `json:"roomId"`
	UserID   string       `json:"userId,omitempty"`
	UserName string       `json:"userName,omitempty"`
}
