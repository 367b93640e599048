package receipt

import (
	"context"
	"errors"
	"testing"

	"taskdeck/api/internal/store"
)

// fakeLedger records upsert batches and serves a seen set.
type fakeLedger struct {
	upserts [][]string
	seen    map[string]struct{}
	fail    bool
}

func (f *fakeLedger) UpsertReadMarkers(ctx context.Context, userID string, commentIDs []string) error {
	if f.fail {
		return errors.New("ledger unavailable")
	}
	f.upserts = append(f.upserts, commentIDs)
	if f.seen == nil {
		f.seen = make(map[string]struct{})
	}
	for _, id := range commentIDs {
		f.seen[id] = struct{}{}
	}
	return nil
}

func (f *fakeLedger) ListReadMarkers(ctx context.Context, userID string, commentIDs []string) (map[string]struct{}, error) {
	return f.seen, nil
}

func TestMarkViewedSkipsOwnAndPendingComments(t *testing.T) {
	ledger := &fakeLedger{}
	tracker := NewTracker(ledger)

	visible := []Entry{
		{ID: "cmt_1", AuthorID: "usr_bob"},
		{ID: "cmt_2", AuthorID: "usr_alice"},
		{ID: "tmp_x", AuthorID: "usr_bob", Pending: true},
	}
	if err := tracker.MarkViewed(context.Background(), "usr_alice", visible); err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}

	if len(ledger.upserts) != 1 {
		t.Fatalf("got %d upserts, want 1", len(ledger.upserts))
	}
	if len(ledger.upserts[0]) != 1 || ledger.upserts[0][0] != "cmt_1" {
		t.Fatalf("upserted %v, want only cmt_1", ledger.upserts[0])
	}
}

func TestMarkViewedIdempotent(t *testing.T) {
	ledger := &fakeLedger{}
	tracker := NewTracker(ledger)
	visible := []Entry{{ID: "cmt_1", AuthorID: "usr_bob"}}

	for i := 0; i < 3; i++ {
		if err := tracker.MarkViewed(context.Background(), "usr_alice", visible); err != nil {
			t.Fatalf("MarkViewed round %d: %v", i, err)
		}
	}

	if len(ledger.upserts) != 1 {
		t.Fatalf("re-marking the same set produced %d upserts, want 1", len(ledger.upserts))
	}
}

func TestMarkViewedCachesPerUser(t *testing.T) {
	ledger := &fakeLedger{}
	tracker := NewTracker(ledger)
	visible := []Entry{{ID: "cmt_1", AuthorID: "usr_bob"}}

	if err := tracker.MarkViewed(context.Background(), "usr_alice", visible); err != nil {
		t.Fatalf("MarkViewed alice: %v", err)
	}
	if err := tracker.MarkViewed(context.Background(), "usr_carol", visible); err != nil {
		t.Fatalf("MarkViewed carol: %v", err)
	}

	if len(ledger.upserts) != 2 {
		t.Fatalf("each user should produce an upsert, got %d", len(ledger.upserts))
	}
}

func TestMarkViewedFailureDoesNotPoisonCache(t *testing.T) {
	ledger := &fakeLedger{fail: true}
	tracker := NewTracker(ledger)
	visible := []Entry{{ID: "cmt_1", AuthorID: "usr_bob"}}

	if err := tracker.MarkViewed(context.Background(), "usr_alice", visible); err == nil {
		t.Fatal("expected ledger failure to surface")
	}

	// Once the ledger recovers, the same entry is retried.
	ledger.fail = false
	if err := tracker.MarkViewed(context.Background(), "usr_alice", visible); err != nil {
		t.Fatalf("MarkViewed after recovery: %v", err)
	}
	if len(ledger.upserts) != 1 || ledger.upserts[0][0] != "cmt_1" {
		t.Fatalf("upserts after recovery = %v", ledger.upserts)
	}
}

func TestUnreadCountExcludesOwnAndSeen(t *testing.T) {
	comments := []store.Comment{
		{ID: "cmt_1", AuthorID: "usr_alice"},
		{ID: "cmt_2", AuthorID: "usr_bob"},
		{ID: "cmt_3", AuthorID: "usr_bob"},
		{ID: "cmt_4", AuthorID: "usr_carol"},
	}
	seen := map[string]struct{}{"cmt_2": {}}

	if got := UnreadCount("usr_alice", comments, seen); got != 2 {
		t.Fatalf("UnreadCount = %d, want 2", got)
	}
	if got := UnreadCount("usr_bob", comments, nil); got != 2 {
		t.Fatalf("UnreadCount for bob = %d, want 2", got)
	}
}

func TestViewingClearsUnread(t *testing.T) {
	ledger := &fakeLedger{}
	tracker := NewTracker(ledger)
	comments := []store.Comment{{ID: "cmt_1", AuthorID: "usr_a"}}

	seen, err := ledger.ListReadMarkers(context.Background(), "usr_b", []string{"cmt_1"})
	if err != nil {
		t.Fatalf("ListReadMarkers: %v", err)
	}
	if got := UnreadCount("usr_b", comments, seen); got != 1 {
		t.Fatalf("unread before viewing = %d, want 1", got)
	}

	if err := tracker.MarkViewed(context.Background(), "usr_b", Entries(comments)); err != nil {
		t.Fatalf("MarkViewed: %v", err)
	}

	seen, err = ledger.ListReadMarkers(context.Background(), "usr_b", []string{"cmt_1"})
	if err != nil {
		t.Fatalf("ListReadMarkers: %v", err)
	}
	if got := UnreadCount("usr_b", comments, seen); got != 0 {
		t.Fatalf("unread after viewing = %d, want 0", got)
	}
}

func TestEntriesAdapter(t *testing.T) {
	entries := Entries([]store.Comment{{ID: "cmt_1", AuthorID: "usr_bob"}})
	if len(entries) != 1 || entries[0].ID != "cmt_1" || entries[0].Pending {
		t.Fatalf("entries = %+v", entries)
	}
}
