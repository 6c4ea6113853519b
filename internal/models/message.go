package models

import (
	"fmt"
	"time"
)

// MessageType represents the kind of content a chat message carries
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

// String returns the string representation of the MessageType
func (mt MessageType) String() string {
	return string(mt)
}

// IsValid checks if the MessageType is a valid enum value
func (mt MessageType) IsValid() bool {
	switch mt {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeSystem:
		return true
	default:
		return false
	}
}

// Message is the authoritative copy of a chat message as echoed by the push channel.
type Message struct {
	ID           string      `json:"id"`
	RoomID       string      `json:"roomId"`
	SenderID     string      `json:"senderId"`
	SenderName   string      `json:"senderName"`
	SenderAvatar string      `json:"senderAvatar,omitempty"`
	SenderType   string      `json:"senderType,omitempty"`
	Text         string      `json:"text"`
	CreatedAt    time.Time   `json:"createdAt"`
	MessageType  MessageType `json:"messageType"`
}

// Validate checks the fields every rendered message must carry
func (m *Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message ID is required")
	}
	if m.RoomID == "" {
		return fmt.Errorf("message room ID is required")
	}
	if m.MessageType == "" {
		m.MessageType = MessageTypeText
	}
	return nil
}

/** -------------------- DTOs -------------------- */
// SendMessageRequest is the durable message-send payload
type SendMessageRequest struct {
	RoomID      string      `json:"roomId" binding:"required"`
	Text        string      `json:"text" binding:"required"`
	SenderID    string      `json:"senderId"`
	MessageType MessageType `json:"messageType"`
}
