package store

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser Role = "user"
	RolePeer Role = "peer"
)

// Message is one conversation entry. The ID is server-assigned and unique
// per conversation; a message is immutable once constructed. Two messages
// with the same ID are the same logical message regardless of whether they
// arrived via the history fetch or the live channel.
type Message struct {
	ID        int64
	Role      Role
	Content   string
	CreatedAt time.Time
}

// Before reports whether m sorts ahead of other in the conversation's
// total order: (CreatedAt, ID), with ID breaking timestamp ties.
func (m Message) Before(other Message) bool {
	if !m.CreatedAt.Equal(other.CreatedAt) {
		return m.CreatedAt.Before(other.CreatedAt)
	}
	return m.ID < other.ID
}
