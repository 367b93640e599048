// Package realtime carries comment change notifications between the backing
// store and subscribed clients over Redis pub/sub.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"taskdeck/api/internal/store"
)

type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// Event is one validated change notification. Inserts and updates populate
// New; deletes populate Old.
type Event struct {
	Type EventType
	// ThreadID is carried redundantly with the row so consumers can reject
	// events that leaked in from another thread's channel.
	ThreadID string
	New      *store.Comment
	Old      *store.Comment
}

type commentPayload struct {
	ID        string     `json:"id"`
	ThreadID  string     `json:"thread_id"`
	AuthorID  string     `json:"author_id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type eventPayload struct {
	Type     string          `json:"type"`
	ThreadID string          `json:"thread_id"`
	New      *commentPayload `json:"new,omitempty"`
	Old      *commentPayload `json:"old,omitempty"`
}

func toPayload(c *store.Comment) *commentPayload {
	if c == nil {
		return nil
	}
	return &commentPayload{
		ID:        c.ID,
		ThreadID:  c.ThreadID,
		AuthorID:  c.AuthorID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func fromPayload(p *commentPayload) *store.Comment {
	if p == nil {
		return nil
	}
	return &store.Comment{
		ID:        p.ID,
		ThreadID:  p.ThreadID,
		AuthorID:  p.AuthorID,
		Content:   p.Content,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

// Marshal encodes an event for publishing.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(eventPayload{
		Type:     string(ev.Type),
		ThreadID: ev.ThreadID,
		New:      toPayload(ev.New),
		Old:      toPayload(ev.Old),
	})
}

// ParseEvent decodes and validates a raw payload. Loosely-shaped payloads are
// rejected here so malformed input never drives store mutation.
func ParseEvent(data []byte) (Event, error) {
	var payload eventPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}

	ev := Event{
		Type:     EventType(payload.Type),
		ThreadID: payload.ThreadID,
		New:      fromPayload(payload.New),
		Old:      fromPayload(payload.Old),
	}
	if ev.ThreadID == "" {
		return Event{}, fmt.Errorf("event missing thread id")
	}

	switch ev.Type {
	case EventInsert, EventUpdate:
		if ev.New == nil || ev.New.ID == "" {
			return Event{}, fmt.Errorf("%s event missing new row", ev.Type)
		}
		if ev.New.ThreadID != ev.ThreadID {
			return Event{}, fmt.Errorf("%s event row/envelope thread mismatch", ev.Type)
		}
	case EventDelete:
		if ev.Old == nil || ev.Old.ID == "" {
			return Event{}, fmt.Errorf("delete event missing old row")
		}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", payload.Type)
	}
	return ev, nil
}
