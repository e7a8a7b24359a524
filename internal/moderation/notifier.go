package moderation

import (
	"log/slog"

	"ride-console/internal/event"
)

const (
	LevelSuccess = "success"
	LevelError   = "error"
)

type Notifier interface {
	Success(message string)
	Error(message string, err error)
}

type Notification struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// BusNotifier publishes notifications as events; the websocket hub delivers
// them to the browser shell, which shows them as toasts.
type BusNotifier struct {
	bus event.Bus
}

func NewBusNotifier(bus event.Bus) *BusNotifier {
	if bus == nil {
		bus = event.Discard{}
	}
	return &BusNotifier{bus: bus}
}

func (n *BusNotifier) Success(message string) {
	n.bus.Publish(event.New(event.TypeNotificationSuccess, Notification{Level: LevelSuccess, Message: message}))
}

// Error publishes message only; the underlying error stays in the log.
func (n *BusNotifier) Error(message string, err error) {
	slog.Warn("moderation action failed", "message", message, "error", err)
	n.bus.Publish(event.New(event.TypeNotificationError, Notification{Level: LevelError, Message: message}))
}
