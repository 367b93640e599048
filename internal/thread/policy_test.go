package thread

import (
	"testing"
	"time"

	"taskdeck/api/internal/store"
)

func TestCanEditRequiresAuthorship(t *testing.T) {
	policy := DefaultPolicy()
	created := time.Now()
	comment := store.Comment{AuthorID: "usr_alice", CreatedAt: created}

	if policy.CanEdit(comment, "usr_bob", created.Add(time.Minute)) {
		t.Fatal("non-author should not be allowed to edit")
	}
	if !policy.CanEdit(comment, "usr_alice", created.Add(time.Minute)) {
		t.Fatal("author should be allowed to edit within the window")
	}
}

func TestCanEditWindowBoundaryInclusive(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	comment := store.Comment{AuthorID: "usr_alice", CreatedAt: created}
	policy := EditWindowPolicy{Window: 15 * time.Minute, Inclusive: true}

	boundary := created.Add(15 * time.Minute)
	if !policy.CanEdit(comment, "usr_alice", boundary) {
		t.Fatal("inclusive policy should allow an edit exactly at the boundary")
	}
	if policy.CanEdit(comment, "usr_alice", boundary.Add(time.Nanosecond)) {
		t.Fatal("edit past the boundary should be rejected")
	}
}

func TestCanEditWindowBoundaryExclusive(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	comment := store.Comment{AuthorID: "usr_alice", CreatedAt: created}
	policy := EditWindowPolicy{Window: 15 * time.Minute, Inclusive: false}

	boundary := created.Add(15 * time.Minute)
	if policy.CanEdit(comment, "usr_alice", boundary) {
		t.Fatal("exclusive policy should reject an edit exactly at the boundary")
	}
	if !policy.CanEdit(comment, "usr_alice", boundary.Add(-time.Second)) {
		t.Fatal("edit just inside the window should be allowed")
	}
}

func TestRetryableClassification(t *testing.T) {
	if Retryable(ErrEditWindowExpired) {
		t.Fatal("expired window must not be retryable")
	}
	if Retryable(ErrNotCommentAuthor) {
		t.Fatal("authorship rejection must not be retryable")
	}
	if Retryable(nil) {
		t.Fatal("nil error is not retryable")
	}
	wrapped := &WriteError{Op: "edit", Err: ErrEditWindowExpired}
	if Retryable(wrapped) {
		t.Fatal("wrapped authority rejection must not be retryable")
	}
	transient := &WriteError{Op: "create", Err: errTransient}
	if !Retryable(transient) {
		t.Fatal("transient write failure should be retryable")
	}
}
