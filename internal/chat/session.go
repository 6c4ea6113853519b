// Package chat keeps the per-room message list and typing state that a chat
// view renders, fed by the push channel and written through the durable API.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"notify-realtime/internal/errs"
	"notify-realtime/internal/events"
	"notify-realtime/internal/models"
)

var (
	ErrEmptyRoom = errors.New("room id is required")
	ErrEmptyText = errors.New("message text is required")
)

// Channel is the push-channel surface a Session needs. *realtime.Manager
// satisfies it.
type Channel interface {
	OnMessage(fn func(models.Message)) events.Subscription
	OnTyping(fn func(models.TypingStatus)) events.Subscription
	SendTypingStatus(isTyping bool, roomID string)
}

// MessageSender persists a message through the durable API.
type MessageSender interface {
	SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error)
}

// UpdateKind tells which part of a room's state changed
type UpdateKind string

const (
	UpdateMessages UpdateKind = "messages"
	UpdateTyping   UpdateKind = "typing"
)

// Update is published after a room's messages or typing users change.
type Update struct {
	RoomID  string
	Kind    UpdateKind
	Message *models.Message
}

// Options configures a Session.
type Options struct {
	// SenderID is stamped on durable sends.
	SenderID string
	// TypingTimeout clears a typing indicator that received no stop event.
	// 0 keeps indicators until the stop arrives.
	TypingTimeout time.Duration
	Logger        *slog.Logger
}

type roomLog struct {
	messages []models.Message
	seen     map[string]struct{}
}

// Session reconciles durable sends with push-channel echoes. A sent message
// becomes visible only when the channel delivers it, so every member of the
// room renders the same id and timestamp.
type Session struct {
	channel Channel
	sender  MessageSender
	opts    Options
	logger  *slog.Logger

	mu    sync.RWMutex
	rooms map[string]*roomLog

	typing  *typingTracker
	updates *events.Topic[Update]
	subs    []events.Subscription
}

// NewSession subscribes to channel and starts tracking messages and typing.
func NewSession(channel Channel, sender MessageSender, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Session{
		channel: channel,
		sender:  sender,
		opts:    opts,
		logger:  opts.Logger,
		rooms:   make(map[string]*roomLog),
		updates: events.NewTopic[Update]("chatUpdate", opts.Logger),
	}
	s.typing = newTypingTracker(opts.TypingTimeout, func(roomID string) {
		s.updates.Publish(Update{RoomID: roomID, Kind: UpdateTyping})
	})
	s.subs = append(s.subs,
		channel.OnMessage(s.handleMessage),
		channel.OnTyping(s.handleTyping),
	)
	return s
}

// OnUpdate registers fn for state changes.
func (s *Session) OnUpdate(fn func(Update)) events.Subscription {
	return s.updates.Subscribe(fn)
}

// SendMessage persists text through the durable API. Local state is left
// untouched on success and on failure; the message shows up when the push
// channel echoes it. Cancel ctx to abandon a send whose result no longer
// matters.
func (s *Session) SendMessage(ctx context.Context, roomID, text string, messageType models.MessageType) (*models.Message, error) {
	if roomID == "" {
		return nil, errs.New(errs.KindSend, "send message", ErrEmptyRoom)
	}
	if text == "" {
		return nil, errs.New(errs.KindSend, "send message", ErrEmptyText)
	}
	if messageType == "" {
		messageType = models.MessageTypeText
	}

	msg, err := s.sender.SendMessage(ctx, models.SendMessageRequest{
		RoomID:      roomID,
		Text:        text,
		SenderID:    s.opts.SenderID,
		MessageType: messageType,
	})
	if err != nil {
		s.logger.Warn("Message send failed", "roomID", roomID, "error", err)
		return nil, errs.New(errs.KindSend, "send message", err)
	}
	return msg, nil
}

// Messages returns a copy of roomID's messages in arrival order.
func (s *Session) Messages(roomID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]models.Message, len(log.messages))
	copy(out, log.messages)
	return out
}

// TypingUsers returns userID -> userName of everyone typing in roomID.
func (s *Session) TypingUsers(roomID string) map[string]string {
	return s.typing.users(roomID)
}

// SetTyping announces our own typing state in roomID.
func (s *Session) SetTyping(roomID string, isTyping bool) {
	s.channel.SendTypingStatus(isTyping, roomID)
}

// Close unsubscribes from the channel and stops typing timers.
func (s *Session) Close() {
	for _, unsubscribe := range s.subs {
		unsubscribe()
	}
	s.subs = nil
	s.typing.stop()
}

func (s *Session) handleMessage(msg models.Message) {
	if msg.ID == "" || msg.RoomID == "" {
		s.logger.Debug("Ignoring message without id or room")
		return
	}

	s.mu.Lock()
	log, ok := s.rooms[msg.RoomID]
	if !ok {
		log = &roomLog{seen: make(map[string]struct{})}
		s.rooms[msg.RoomID] = log
	}
	if _, dup := log.seen[msg.ID]; dup {
		s.mu.Unlock()
		s.logger.Debug("Dropping duplicate message", "messageID", msg.ID, "roomID", msg.RoomID)
		return
	}
	log.seen[msg.ID] = struct{}{}
	log.messages = append(log.messages, msg)
	s.mu.Unlock()

	s.updates.Publish(Update{RoomID: msg.RoomID, Kind: UpdateMessages, Message: &msg})
}

func (s *Session) handleTyping(status models.TypingStatus) {
	if status.RoomID == "" || status.UserID == "" {
		return
	}
	if s.typing.set(status) {
		s.updates.Publish(Update{RoomID: status.RoomID, Kind: UpdateTyping})
	}
}
