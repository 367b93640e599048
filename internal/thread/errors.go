package thread

import (
	"errors"
	"fmt"

	"taskdeck/api/internal/store"
)

// Re-exported authority rejections so callers need not import the store
// package to classify a failed write.
var (
	ErrEditWindowExpired = store.ErrEditWindowExpired
	ErrNotCommentAuthor  = store.ErrNotCommentAuthor
)

// WriteError wraps a failed create/edit/delete after its optimistic state has
// been rolled back. Transient unless it unwraps to an authority rejection.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s comment: %v", e.Op, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a failed write may be retried. Edit-window and
// authorship rejections are authoritative and must not be retried.
func Retryable(err error) bool {
	return err != nil &&
		!errors.Is(err, ErrEditWindowExpired) &&
		!errors.Is(err, ErrNotCommentAuthor)
}
