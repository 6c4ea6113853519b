package chat

import (
	"sync"
	"time"

	"notify-realtime/internal/models"
)

type typist struct {
	name  string
	timer *time.Timer
}

// typingTracker holds roomID -> userID -> typist. With a timeout, an entry
// that sees no stop event is cleared and onExpire is called for its room.
type typingTracker struct {
	timeout  time.Duration
	onExpire func(roomID string)

	mu    sync.Mutex
	rooms map[string]map[string]*typist
}

func newTypingTracker(timeout time.Duration, onExpire func(roomID string)) *typingTracker {
	return &typingTracker{
		timeout:  timeout,
		onExpire: onExpire,
		rooms:    make(map[string]map[string]*typist),
	}
}

// set applies a typing event and reports whether the room's typing set
// changed.
func (t *typingTracker) set(status models.TypingStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	room := t.rooms[status.RoomID]
	current, exists := room[status.UserID]

	if !status.IsTyping {
		if !exists {
			return false
		}
		t.remove(status.RoomID, status.UserID)
		return true
	}

	if room == nil {
		room = make(map[string]*typist)
		t.rooms[status.RoomID] = room
	}
	changed := !exists || current.name != status.UserName
	if exists && current.timer != nil {
		current.timer.Stop()
	}

	entry := &typist{name: status.UserName}
	if t.timeout > 0 {
		entry.timer = time.AfterFunc(t.timeout, func() { t.expire(status.RoomID, status.UserID, entry) })
	}
	room[status.UserID] = entry
	return changed
}

func (t *typingTracker) expire(roomID, userID string, entry *typist) {
	t.mu.Lock()
	// A newer event for the same user replaced the entry.
	if t.rooms[roomID][userID] != entry {
		t.mu.Unlock()
		return
	}
	t.remove(roomID, userID)
	t.mu.Unlock()

	if t.onExpire != nil {
		t.onExpire(roomID)
	}
}

// remove must be called with mu held.
func (t *typingTracker) remove(roomID, userID string) {
	room := t.rooms[roomID]
	if entry, ok := room[userID]; ok && entry.timer != nil {
		entry.timer.Stop()
	}
	delete(room, userID)
	if len(room) == 0 {
		delete(t.rooms, roomID)
	}
}

func (t *typingTracker) users(roomID string) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.rooms[roomID]))
	for id, entry := range t.rooms[roomID] {
		out[id] = entry.name
	}
	return out
}

func (t *typingTracker) stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, room := range t.rooms {
		for _, entry := range room {
			if entry.timer != nil {
				entry.timer.Stop()
			}
		}
	}
	t.rooms = make(map[string]map[string]*typist)
}
