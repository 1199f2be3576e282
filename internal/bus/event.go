package bus

import "time"

// Event kinds published by the core. Subscribers filter by namespace
// prefix ("conn.", "chat.", "message.", "sync.").
const (
	KindConnStatus      = "conn.status_changed"
	KindConnOpen        = "conn.open"
	KindConnClosed      = "conn.closed"
	KindChatMessage     = "chat.message"
	KindChatDropped     = "chat.frame_dropped"
	KindMessageAppended = "message.appended"
	KindHistorySeeded   = "sync.history_seeded"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// New builds an event stamped with the current time.
func New(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
