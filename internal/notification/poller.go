// Package notification keeps a local copy of the user's notifications in
// sync with the durable API by periodic polling and optimistic mutation.
package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"notify-realtime/internal/errs"
	"notify-realtime/internal/events"
	"notify-realtime/internal/models"
)

const DefaultInterval = 30 * time.Second

// API is the durable notification API. *api.Client satisfies it.
type API interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id uint) error
	MarkAllRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id uint) error
	SendNotification(ctx context.Context, req models.SendNotificationRequest) (*models.Notification, error)
}

// Snapshot is the poller's local state after a change.
type Snapshot struct {
	Notifications []models.Notification
	UnreadCount   int
}

// Poller holds the local notification list. Local state is mutated
// optimistically before every durable call and is never rolled back; the
// next FetchAll converges it on the server's view.
type Poller struct {
	api      API
	interval time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	items  []models.Notification
	unread int

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	changes *events.Topic[Snapshot]
	errors  *events.Topic[error]
}

// NewPoller creates a stopped poller. interval <= 0 uses DefaultInterval.
func NewPoller(api API, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		api:      api,
		interval: interval,
		logger:   logger,
		changes:  events.NewTopic[Snapshot]("notificationChange", logger),
		errors:   events.NewTopic[error]("notificationError", logger),
	}
}

// OnChange registers fn for every local state change.
func (p *Poller) OnChange(fn func(Snapshot)) events.Subscription {
	return p.changes.Subscribe(fn)
}

// OnError registers fn for failures of background polls.
func (p *Poller) OnError(fn func(error)) events.Subscription {
	return p.errors.Subscribe(fn)
}

// Start fetches immediately and then every interval until Stop or ctx is
// done. Calling Start while running restarts the schedule.
func (p *Poller) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.loopMu.Lock()
	prevCancel, prevDone := p.cancel, p.done
	p.cancel, p.done = cancel, done
	p.loopMu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
	}

	go p.loop(loopCtx, done)
	p.logger.Info("Notification polling started", "interval", p.interval)
}

// Stop halts polling and waits for an in-flight poll to return. Calling it
// on a stopped poller does nothing.
func (p *Poller) Stop() {
	p.loopMu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Info("Notification polling stopped")
}

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	p.loopMu.Lock()
	defer p.loopMu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		// The parent ctx may end the loop without Stop; forget it then.
		p.loopMu.Lock()
		if p.done == done {
			p.cancel()
			p.cancel, p.done = nil, nil
		}
		p.loopMu.Unlock()
		close(done)
	}()

	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	if err := p.FetchAll(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn("Notification poll failed", "error", err)
		p.errors.Publish(err)
	}
}

// FetchAll replaces local state with the server's list and unread count.
func (p *Poller) FetchAll(ctx context.Context) error {
	items, err := p.api.ListNotifications(ctx)
	if err != nil {
		return errs.New(errs.KindNotificationSync, "fetch notifications", err)
	}
	unread, err := p.api.UnreadCount(ctx)
	if err != nil {
		return errs.New(errs.KindNotificationSync, "fetch unread count", err)
	}

	p.mu.Lock()
	p.items = items
	p.unread = max(unread, 0)
	snap := p.snapshotLocked()
	p.mu.Unlock()

	p.changes.Publish(snap)
	return nil
}

// Notifications returns a copy of the local list.
func (p *Poller) Notifications() []models.Notification {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snapshotLocked().Notifications
}

// UnreadCount returns the local unread count.
func (p *Poller) UnreadCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unread
}

// MarkAsRead flips id to read locally, then confirms with the server.
func (p *Poller) MarkAsRead(ctx context.Context, id uint) error {
	p.mutate(func() {
		for i := range p.items {
			if p.items[i].ID != id {
				continue
			}
			if !p.items[i].IsRead {
				p.items[i].IsRead = true
				p.unread = max(p.unread-1, 0)
			}
			return
		}
	})

	if err := p.api.MarkRead(ctx, id); err != nil {
		return errs.New(errs.KindNotificationSync, "mark notification read", err)
	}
	return nil
}

// MarkAllAsRead marks every local notification read, then confirms.
func (p *Poller) MarkAllAsRead(ctx context.Context) error {
	p.mutate(func() {
		for i := range p.items {
			p.items[i].IsRead = true
		}
		p.unread = 0
	})

	if err := p.api.MarkAllRead(ctx); err != nil {
		return errs.New(errs.KindNotificationSync, "mark all notifications read", err)
	}
	return nil
}

// DeleteNotification removes id locally, then confirms.
func (p *Poller) DeleteNotification(ctx context.Context, id uint) error {
	p.mutate(func() {
		for i := range p.items {
			if p.items[i].ID != id {
				continue
			}
			if !p.items[i].IsRead {
				p.unread = max(p.unread-1, 0)
			}
			p.items = append(p.items[:i:i], p.items[i+1:]...)
			return
		}
	})

	if err := p.api.DeleteNotification(ctx, id); err != nil {
		return errs.New(errs.KindNotificationSync, "delete notification", err)
	}
	return nil
}

// ClearAllNotifications deletes every held notification concurrently. All
// deletes run to completion; the first failure is returned and the rest of
// the drift is left to the next FetchAll.
func (p *Poller) ClearAllNotifications(ctx context.Context) error {
	p.mu.RLock()
	ids := make([]uint, len(p.items))
	for i, n := range p.items {
		ids[i] = n.ID
	}
	p.mu.RUnlock()

	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			return p.DeleteNotification(ctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		p.logger.Warn("Clearing notifications partially failed", "count", len(ids), "error", err)
		return err
	}
	return nil
}

// Send creates a notification for another user (admin only).
func (p *Poller) Send(ctx context.Context, req models.SendNotificationRequest) (*models.Notification, error) {
	n, err := p.api.SendNotification(ctx, req)
	if err != nil {
		return nil, errs.New(errs.KindNotificationSync, "send notification", err)
	}
	return n, nil
}

func (p *Poller) mutate(fn func()) {
	p.mu.Lock()
	fn()
	snap := p.snapshotLocked()
	p.mu.Unlock()
	p.changes.Publish(snap)
}

func (p *Poller) snapshotLocked() Snapshot {
	items := make([]models.Notification, len(p.items))
	copy(items, p.items)
	return Snapshot{Notifications: items, UnreadCount: p.unread}
}
