// Package wire decodes the backend's message records into store messages.
// The same record shape arrives over both the history fetch and the live
// channel.
package wire

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/tchat/internal/store"
)

// Record is the backend's JSON representation of a message.
type Record struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Content    string `json:"content"`
	IsFromUser bool   `json:"is_from_user"`
	Timestamp  string `json:"timestamp"`
}

// timestampLayouts are the accepted timestamp shapes. The backend emits
// datetime.isoformat(), which omits the zone and may omit fractional
// seconds; RFC 3339 variants are accepted as well.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses a backend timestamp string. Zoneless values are
// interpreted as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// Message converts a record into a store message, validating the fields
// the core depends on.
func (r Record) Message() (store.Message, error) {
	if r.ID <= 0 {
		return store.Message{}, fmt.Errorf("record missing id")
	}
	ts, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return store.Message{}, err
	}
	role := store.RolePeer
	if r.IsFromUser {
		role = store.RoleUser
	}
	return store.Message{
		ID:        r.ID,
		Role:      role,
		Content:   r.Content,
		CreatedAt: ts,
	}, nil
}

// DecodeFrame parses a raw channel frame into a message.
func DecodeFrame(data []byte) (store.Message, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return store.Message{}, fmt.Errorf("decode frame: %w", err)
	}
	msg, err := r.Message()
	if err != nil {
		return store.Message{}, fmt.Errorf("decode frame: %w", err)
	}
	return msg, nil
}
