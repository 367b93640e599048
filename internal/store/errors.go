package store

import "errors"

var (
	// ErrEditWindowExpired is the authoritative rejection of an edit outside
	// the allowed window. Callers must not retry on it.
	ErrEditWindowExpired = errors.New("edit window expired")
	// ErrNotCommentAuthor rejects edits/deletes by anyone but the author
	// (admins may still delete).
	ErrNotCommentAuthor = errors.New("not the comment author")
	ErrCommentNotFound  = errors.New("comment not found")
)
