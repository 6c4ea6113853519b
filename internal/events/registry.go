package events

import (
	"fmt"
	"log/slog"

	"notify-realtime/internal/errs"
	"notify-realtime/internal/models"
)

// Category names
const (
	CategoryMessage          = "message"
	CategoryTyping           = "typing"
	CategoryConnectionChange = "connectionChange"
	CategoryError            = "error"
	CategoryPresence         = "presence"
)

// Registry fans push-channel events out to consumers, one Topic per category.
type Registry struct {
	logger *slog.Logger

	messages    *Topic[models.Message]
	typing      *Topic[models.TypingStatus]
	connections *Topic[models.ConnectionChange]
	errors      *Topic[error]
	presence    *Topic[models.PresenceEvent]
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		logger:      logger,
		messages:    NewTopic[models.Message](CategoryMessage, logger),
		typing:      NewTopic[models.TypingStatus](CategoryTyping, logger),
		connections: NewTopic[models.ConnectionChange](CategoryConnectionChange, logger),
		errors:      NewTopic[error](CategoryError, logger),
		presence:    NewTopic[models.PresenceEvent](CategoryPresence, logger),
	}

	r.messages.onFault = r.reportFault
	r.typing.onFault = r.reportFault
	r.connections.onFault = r.reportFault
	r.presence.onFault = r.reportFault
	// A fault inside an error handler is only logged.

	return r
}

func (r *Registry) reportFault(category string, recovered any) {
	r.errors.Publish(errs.New(errs.KindListenerFault, category, fmt.Errorf("handler panic: %v", recovered)))
}

func (r *Registry) OnMessage(fn func(models.Message)) Subscription {
	return r.messages.Subscribe(fn)
}

func (r *Registry) OnTyping(fn func(models.TypingStatus)) Subscription {
	return r.typing.Subscribe(fn)
}

func (r *Registry) OnConnectionChange(fn func(models.ConnectionChange)) Subscription {
	return r.connections.Subscribe(fn)
}

func (r *Registry) OnError(fn func(error)) Subscription {
	return r.errors.Subscribe(fn)
}

func (r *Registry) OnPresence(fn func(models.PresenceEvent)) Subscription {
	return r.presence.Subscribe(fn)
}

func (r *Registry) EmitMessage(m models.Message) {
	r.messages.Publish(m)
}

func (r *Registry) EmitTyping(s models.TypingStatus) {
	r.typing.Publish(s)
}

func (r *Registry) EmitConnectionChange(c models.ConnectionChange) {
	r.connections.Publish(c)
}

// EmitError logs err and publishes it on the error category.
func (r *Registry) EmitError(err error) {
	if err == nil {
		return
	}
	r.logger.Error("Realtime error", "error", err)
	r.errors.Publish(err)
}

func (r *Registry) EmitPresence(p models.PresenceEvent) {
	r.presence.Publish(p)
}
