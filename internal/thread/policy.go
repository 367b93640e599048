package thread

import (
	"time"

	"taskdeck/api/internal/store"
)

// DefaultEditWindow matches the backend's default window for comment edits.
const DefaultEditWindow = 15 * time.Minute

// EditWindowPolicy is the client-side pre-check for comment edits: only the
// author may edit, and only while the comment is younger than the window.
// The backing store re-validates with its own clock and may still reject an
// edit this check allowed; that rejection is authoritative.
type EditWindowPolicy struct {
	Window time.Duration
	// Inclusive allows an edit exactly at the boundary. Must match the
	// backend's configuration or near-boundary edits will disagree.
	Inclusive bool
}

func DefaultPolicy() EditWindowPolicy {
	return EditWindowPolicy{Window: DefaultEditWindow, Inclusive: true}
}

// CanEdit reports whether userID may edit the comment at instant now.
func (p EditWindowPolicy) CanEdit(c store.Comment, userID string, now time.Time) bool {
	if c.AuthorID != userID {
		return false
	}
	age := now.Sub(c.CreatedAt)
	if p.Inclusive {
		return age <= p.Window
	}
	return age < p.Window
}
