package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSessionChanged        Type = "session.changed"
	TypeConfirmationOpened    Type = "confirmation.opened"
	TypeConfirmationConfirmed Type = "confirmation.confirmed"
	TypeConfirmationCancelled Type = "confirmation.cancelled"
	TypeNotificationSuccess   Type = "notification.success"
	TypeNotificationError     Type = "notification.error"
	TypeRefreshRequested      Type = "refresh.requested"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload,omitempty"`
	Timestamp string `json:"timestamp"`
}

// New stamps an event with an id and the current time.
func New(t Type, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func())
}

// Discard is a Bus that drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}

func (Discard) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event)
	return ch, func() {}
}
