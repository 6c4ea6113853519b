package devserver

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"notify-realtime/internal/models"
)

var ErrNotificationNotFound = errors.New("notification not found")

// store is the dev server's in-memory durable state.
type store struct {
	mu            sync.RWMutex
	nextID        uint
	notifications map[string][]*models.Notification
	messages      map[string][]models.Message
	now           func() time.Time
}

func newStore() *store {
	return &store{
		nextID:        1,
		notifications: make(map[string][]*models.Notification),
		messages:      make(map[string][]models.Message),
		now:           time.Now,
	}
}

func (s *store) addMessage(senderID string, req models.SendMessageRequest) models.Message {
	msgType := req.MessageType
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	msg := models.Message{
		ID:          uuid.New().String(),
		RoomID:      req.RoomID,
		SenderID:    senderID,
		SenderName:  senderID,
		SenderType:  "user",
		Text:        req.Text,
		CreatedAt:   s.now().UTC(),
		MessageType: msgType,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[req.RoomID] = append(s.messages[req.RoomID], msg)
	return msg
}

func (s *store) roomMessages(roomID string) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages[roomID]))
	copy(out, s.messages[roomID])
	return out
}

func (s *store) addNotification(req models.SendNotificationRequest) models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	n := &models.Notification{
		ID:         s.nextID,
		UserID:     req.UserID,
		Type:       req.Type,
		Title:      req.Title,
		Message:    req.Message,
		RelatedURL: req.RelatedURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.nextID++
	s.notifications[req.UserID] = append(s.notifications[req.UserID], n)
	return *n
}

// listNotifications returns userID's notifications, newest first.
func (s *store) listNotifications(userID string) []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := s.notifications[userID]
	out := make([]models.Notification, 0, len(items))
	for _, n := range items {
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *store) unreadCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, n := range s.notifications[userID] {
		if !n.IsRead {
			count++
		}
	}
	return count
}

func (s *store) markRead(userID string, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications[userID] {
		if n.ID == id {
			n.IsRead = true
			n.UpdatedAt = s.now().UTC()
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (s *store) markAllRead(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	for _, n := range s.notifications[userID] {
		if !n.IsRead {
			n.IsRead = true
			n.UpdatedAt = now
		}
	}
}

func (s *store) deleteNotification(userID string, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.notifications[userID]
	for i, n := range items {
		if n.ID == id {
			s.notifications[userID] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return ErrNotificationNotFound
}
