package store

import "time"

type User struct {
	ID          string
	DisplayName string
	Email       string
	// AvatarKey is the object key of the user's avatar in the blob store,
	// empty when the user has none.
	AvatarKey string
	IsAdmin   bool
	CreatedAt time.Time
}

// Task is the work item a discussion thread hangs off. This subsystem only
// reads tasks; creation and status transitions live elsewhere.
type Task struct {
	ID              string
	Title           string
	ProjectName     string
	StatusLabel     string
	AssignedUserID  string
	CreatedByUserID string
	CreatedAt       time.Time
}

type Comment struct {
	ID        string
	ThreadID  string
	AuthorID  string
	Content   string
	CreatedAt time.Time
	// UpdatedAt is nil until the first edit.
	UpdatedAt *time.Time
}

// Edited reports whether the comment has been modified since creation.
func (c Comment) Edited() bool {
	return c.UpdatedAt != nil && !c.UpdatedAt.Equal(c.CreatedAt)
}

// ReadMarker records that a user has seen a comment. Markers are only ever
// inserted, never mutated or removed.
type ReadMarker struct {
	UserID    string
	CommentID string
	CreatedAt time.Time
}
