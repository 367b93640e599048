// Package thread keeps one task's comment list consistent across optimistic
// local writes and the realtime push channel.
package thread

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"taskdeck/api/internal/store"
	"taskdeck/api/internal/util"
)

// Backend is the authoritative comment store. *store.PostgresStore satisfies
// it in production.
type Backend interface {
	ListThreadComments(ctx context.Context, threadID string) ([]store.Comment, error)
	InsertComment(ctx context.Context, threadID, authorID, content string) (store.Comment, error)
	UpdateComment(ctx context.Context, commentID, authorID, content string) (store.Comment, error)
	DeleteComment(ctx context.Context, commentID, actorID string) error
}

// Directory resolves display metadata for comment authors.
type Directory interface {
	Display(ctx context.Context, userID string) (AuthorDisplay, error)
}

type AuthorDisplay struct {
	Name      string
	AvatarURL string
}

// Viewer is the local user operating the store.
type Viewer struct {
	ID      string
	Display AuthorDisplay
}

// Comment is the view-model entry held by the store. Pending is true between
// the optimistic append and the backend acknowledgment; during that interval
// ID holds a client-local temporary id.
type Comment struct {
	ID        string
	ThreadID  string
	AuthorID  string
	Author    AuthorDisplay
	Content   string
	CreatedAt time.Time
	UpdatedAt *time.Time
	Pending   bool
}

type pendingState int

const (
	statePending pendingState = iota + 1
	stateConfirmed
	stateRolledBack
)

// pendingWrite tracks one optimistic create from issue to confirmation or
// rollback. Keeping these as explicit keyed records (rather than relying on
// goroutine closure state) is what makes the ack/echo race resolvable in
// either arrival order.
type pendingWrite struct {
	tempID string
	state  pendingState
}

// Store is the per-thread ordered comment cache. All mutation, whether from
// the local viewer or the push channel, is serialized under one mutex, so
// every state transition observes a consistent snapshot.
type Store struct {
	threadID string
	viewer   Viewer
	backend  Backend
	policy   EditWindowPolicy
	log      zerolog.Logger

	now func() time.Time

	mu       sync.Mutex
	comments []Comment
	pending  map[string]*pendingWrite
	// selfOriginated holds confirmed ids whose insert this client applied
	// locally; the matching realtime echo is consumed against it.
	selfOriginated map[string]struct{}
	loadedOnce     bool
	loadErr        error
	changes        chan struct{}
}

func NewStore(threadID string, viewer Viewer, backend Backend, policy EditWindowPolicy, log zerolog.Logger) *Store {
	return &Store{
		threadID:       threadID,
		viewer:         viewer,
		backend:        backend,
		policy:         policy,
		log:            log.With().Str("thread", threadID).Logger(),
		now:            time.Now,
		comments:       make([]Comment, 0),
		pending:        make(map[string]*pendingWrite),
		selfOriginated: make(map[string]struct{}),
		changes:        make(chan struct{}, 1),
	}
}

// Changes signals after every visible-set mutation, coalesced. Read-receipt
// tracking hangs off this: each signal means "re-mark the visible set".
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

// notifyLocked is called with the mutex held after any visible mutation. The
// send is non-blocking; a pending signal already covers the new change.
func (s *Store) notifyLocked() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// ThreadID returns the owning task id.
func (s *Store) ThreadID() string {
	return s.threadID
}

// Comments returns a copy of the current visible sequence.
func (s *Store) Comments() []Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyComments(s.comments)
}

// Loaded reports whether the initial authoritative load has completed at
// least once.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadedOnce
}

// LoadError returns the error of the most recent failed load, nil after any
// successful load.
func (s *Store) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// Load replaces the store contents with the authoritative thread state. On
// failure the in-memory state is left untouched and the error is retained for
// the caller's retry affordance.
func (s *Store) Load(ctx context.Context, dir Directory) error {
	records, err := s.backend.ListThreadComments(ctx, s.threadID)
	if err != nil {
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		s.log.Error().Err(err).Msg("thread: load failed")
		return err
	}

	loaded := make([]Comment, 0, len(records))
	for _, record := range records {
		loaded = append(loaded, s.view(ctx, record, dir))
	}

	s.mu.Lock()
	s.comments = loaded
	s.loadedOnce = true
	s.loadErr = nil
	s.notifyLocked()
	s.mu.Unlock()
	return nil
}

func (s *Store) view(ctx context.Context, record store.Comment, dir Directory) Comment {
	display := s.viewer.Display
	if record.AuthorID != s.viewer.ID {
		display = s.resolveDisplay(ctx, record.AuthorID, dir)
	}
	return Comment{
		ID:        record.ID,
		ThreadID:  record.ThreadID,
		AuthorID:  record.AuthorID,
		Author:    display,
		Content:   record.Content,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

func (s *Store) resolveDisplay(ctx context.Context, userID string, dir Directory) AuthorDisplay {
	if dir == nil {
		return AuthorDisplay{Name: userID}
	}
	display, err := dir.Display(ctx, userID)
	if err != nil {
		// Degrade to the bare id rather than losing the comment.
		s.log.Warn().Err(err).Str("user", userID).Msg("thread: author hydration failed")
		return AuthorDisplay{Name: userID}
	}
	return display
}

// Create appends an optimistic pending comment and issues the persistent
// write in the background. The returned channel receives exactly one value:
// nil once the write is confirmed, or the rollback error.
func (s *Store) Create(ctx context.Context, content string) (string, <-chan error) {
	result := make(chan error, 1)
	tempID := util.NewTempID()

	s.mu.Lock()
	s.pending[tempID] = &pendingWrite{tempID: tempID, state: statePending}
	s.comments = append(s.comments, Comment{
		ID:        tempID,
		ThreadID:  s.threadID,
		AuthorID:  s.viewer.ID,
		Author:    s.viewer.Display,
		Content:   content,
		CreatedAt: s.now(),
		Pending:   true,
	})
	s.notifyLocked()
	s.mu.Unlock()

	go func() {
		confirmed, err := s.backend.InsertComment(ctx, s.threadID, s.viewer.ID, content)
		if err != nil {
			s.rollbackCreate(tempID)
			result <- &WriteError{Op: "create", Err: err}
			return
		}
		s.confirmCreate(tempID, confirmed)
		result <- nil
	}()
	return tempID, result
}

func (s *Store) rollbackCreate(tempID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.pending[tempID]; p != nil {
		p.state = stateRolledBack
		delete(s.pending, tempID)
	}
	s.removeLocked(tempID)
	s.notifyLocked()
}

// confirmCreate swaps the temporary entry for the confirmed record, in place.
// If the realtime echo of this insert won the race and already appended the
// confirmed row, the temporary entry is dropped instead, leaving exactly one
// entry for the id either way.
func (s *Store) confirmCreate(tempID string, confirmed store.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pending[tempID]
	if p == nil || p.state != statePending {
		return
	}
	p.state = stateConfirmed
	delete(s.pending, tempID)

	if s.indexLocked(confirmed.ID) >= 0 {
		s.removeLocked(tempID)
		s.notifyLocked()
		return
	}

	i := s.indexLocked(tempID)
	if i < 0 {
		// A reload replaced the sequence while the write was in flight; the
		// authoritative state already reflects whatever the backend holds.
		return
	}
	s.comments[i] = Comment{
		ID:        confirmed.ID,
		ThreadID:  confirmed.ThreadID,
		AuthorID:  confirmed.AuthorID,
		Author:    s.viewer.Display,
		Content:   confirmed.Content,
		CreatedAt: confirmed.CreatedAt,
		UpdatedAt: confirmed.UpdatedAt,
	}
	s.selfOriginated[confirmed.ID] = struct{}{}
	s.notifyLocked()
}

// Edit optimistically patches a comment and issues the persistent write. The
// client pre-check runs first; an authority rejection rolls the whole store
// back to its pre-call snapshot and is reported as ErrEditWindowExpired (or
// ErrNotCommentAuthor), which must not be retried.
func (s *Store) Edit(ctx context.Context, commentID, content string) <-chan error {
	result := make(chan error, 1)

	s.mu.Lock()
	i := s.indexLocked(commentID)
	if i < 0 {
		s.mu.Unlock()
		result <- &WriteError{Op: "edit", Err: store.ErrCommentNotFound}
		return result
	}
	target := s.comments[i]
	if target.Pending {
		s.mu.Unlock()
		result <- &WriteError{Op: "edit", Err: store.ErrCommentNotFound}
		return result
	}
	record := store.Comment{AuthorID: target.AuthorID, CreatedAt: target.CreatedAt}
	if !s.policy.CanEdit(record, s.viewer.ID, s.now()) {
		s.mu.Unlock()
		if target.AuthorID != s.viewer.ID {
			result <- ErrNotCommentAuthor
		} else {
			result <- ErrEditWindowExpired
		}
		return result
	}

	snapshot := copyComments(s.comments)
	editedAt := s.now()
	s.comments[i].Content = content
	s.comments[i].UpdatedAt = &editedAt
	s.notifyLocked()
	s.mu.Unlock()

	go func() {
		_, err := s.backend.UpdateComment(ctx, commentID, s.viewer.ID, content)
		if err != nil {
			s.restore(snapshot)
			result <- s.classifyWriteError("edit", err)
			return
		}
		result <- nil
	}()
	return result
}

// Delete optimistically removes a comment and issues the persistent delete.
// Deletion deliberately has no time window, unlike editing.
func (s *Store) Delete(ctx context.Context, commentID string) <-chan error {
	result := make(chan error, 1)

	s.mu.Lock()
	if s.indexLocked(commentID) < 0 {
		s.mu.Unlock()
		result <- &WriteError{Op: "delete", Err: store.ErrCommentNotFound}
		return result
	}
	snapshot := copyComments(s.comments)
	s.removeLocked(commentID)
	s.notifyLocked()
	s.mu.Unlock()

	go func() {
		if err := s.backend.DeleteComment(ctx, commentID, s.viewer.ID); err != nil {
			s.restore(snapshot)
			result <- s.classifyWriteError("delete", err)
			return
		}
		result <- nil
	}()
	return result
}

func (s *Store) classifyWriteError(op string, err error) error {
	if !Retryable(err) {
		// Authoritative rejection, surfaced unwrapped so callers can present
		// "can no longer be edited" instead of "try again".
		return err
	}
	return &WriteError{Op: op, Err: err}
}

func (s *Store) restore(snapshot []Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments = snapshot
	s.notifyLocked()
}

// consumeSelfOriginated reports whether an inbound insert for id duplicates a
// write this client already applied, consuming the marker when it does. It
// also refuses inserts whose id is already visible, which keeps the
// no-duplicate-ids invariant regardless of ack/echo ordering.
func (s *Store) consumeSelfOriginated(id string) (apply bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.selfOriginated[id]; ok {
		delete(s.selfOriginated, id)
		return false
	}
	return s.indexLocked(id) < 0
}

// applyRemoteInsert appends a hydrated remote comment at the tail. Out-of-order
// arrivals are still appended; the feed assumes monotonically increasing
// creation times.
func (s *Store) applyRemoteInsert(c Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(c.ID) >= 0 {
		return
	}
	s.comments = append(s.comments, c)
	s.notifyLocked()
}

// applyRemoteUpdate patches content and edit time in place. Updates for ids
// not yet present are dropped; the next full reload self-heals.
func (s *Store) applyRemoteUpdate(record store.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(record.ID)
	if i < 0 {
		s.log.Debug().Str("comment", record.ID).Msg("thread: update for unknown id dropped")
		return
	}
	s.comments[i].Content = record.Content
	s.comments[i].UpdatedAt = record.UpdatedAt
	s.notifyLocked()
}

func (s *Store) applyRemoteDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
	s.notifyLocked()
}

func (s *Store) indexLocked(id string) int {
	for i := range s.comments {
		if s.comments[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeLocked(id string) {
	i := s.indexLocked(id)
	if i < 0 {
		return
	}
	s.comments = append(s.comments[:i], s.comments[i+1:]...)
}

func copyComments(comments []Comment) []Comment {
	out := make([]Comment, len(comments))
	copy(out, comments)
	return out
}
