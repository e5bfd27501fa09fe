package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSessionAnonymous     Type = "session.anonymous"
	TypeSessionLoading       Type = "session.loading"
	TypeSessionAuthenticated Type = "session.authenticated"
	TypeSessionFailed        Type = "session.failed"
	TypeTokenRefreshed       Type = "token.refreshed"
	TypeProfileUpdated       Type = "profile.updated"
	TypeSnapshot             Type = "session.snapshot"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	Notice    string `json:"notice,omitempty"` // One-shot message for the UI, e.g. after a forced logout
}

func New(t Type, payload any, notice string) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Payload:   payload,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Notice:    notice,
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
