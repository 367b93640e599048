// Package receipt maintains the per-user read ledger and derives unread
// counts from it.
package receipt

import (
	"context"
	"fmt"
	"sync"

	"taskdeck/api/internal/store"
)

// Ledger is the durable read-marker store. *store.PostgresStore satisfies it.
type Ledger interface {
	UpsertReadMarkers(ctx context.Context, userID string, commentIDs []string) error
	ListReadMarkers(ctx context.Context, userID string, commentIDs []string) (map[string]struct{}, error)
}

// Entry is the minimal comment shape read tracking needs. Pending entries
// carry temporary ids that must never reach the ledger.
type Entry struct {
	ID       string
	AuthorID string
	Pending  bool
}

// Tracker marks visible comments as seen for a viewer. Marking is idempotent
// end to end: a local cache suppresses repeat upserts and the ledger's
// conflict clause ignores whatever slips through anyway.
type Tracker struct {
	ledger Ledger

	mu   sync.Mutex
	seen map[string]map[string]struct{}
}

func NewTracker(ledger Ledger) *Tracker {
	return &Tracker{ledger: ledger, seen: make(map[string]map[string]struct{})}
}

// MarkViewed records every visible comment not authored by userID as seen.
// Re-marking an already-seen set is a no-op.
func (t *Tracker) MarkViewed(ctx context.Context, userID string, visible []Entry) error {
	t.mu.Lock()
	cache := t.seen[userID]
	if cache == nil {
		cache = make(map[string]struct{})
		t.seen[userID] = cache
	}
	var unmarked []string
	for _, entry := range visible {
		if entry.Pending || entry.AuthorID == userID {
			continue
		}
		if _, ok := cache[entry.ID]; ok {
			continue
		}
		unmarked = append(unmarked, entry.ID)
	}
	t.mu.Unlock()

	if len(unmarked) == 0 {
		return nil
	}
	if err := t.ledger.UpsertReadMarkers(ctx, userID, unmarked); err != nil {
		return fmt.Errorf("mark viewed: %w", err)
	}

	t.mu.Lock()
	for _, id := range unmarked {
		cache[id] = struct{}{}
	}
	t.mu.Unlock()
	return nil
}

// UnreadCount counts the comments by other authors that the ledger does not
// record as seen by userID.
func UnreadCount(userID string, comments []store.Comment, seen map[string]struct{}) int {
	count := 0
	for _, c := range comments {
		if c.AuthorID == userID {
			continue
		}
		if _, ok := seen[c.ID]; !ok {
			count++
		}
	}
	return count
}

// Entries adapts a slice of comment-ish values for MarkViewed.
func Entries(comments []store.Comment) []Entry {
	out := make([]Entry, 0, len(comments))
	for _, c := range comments {
		out = append(out, Entry{ID: c.ID, AuthorID: c.AuthorID})
	}
	return out
}
