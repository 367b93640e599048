package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EventPublisher receives change notifications after each successful comment
// mutation. Implementations fan them out to subscribed clients; publish
// failures must not fail the write.
type EventPublisher interface {
	CommentInserted(ctx context.Context, c Comment)
	CommentUpdated(ctx context.Context, c Comment)
	CommentDeleted(ctx context.Context, c Comment)
}

// Indexer mirrors comment mutations into the search index, fire-and-forget.
type Indexer interface {
	IndexComment(c Comment)
	RemoveComment(id string)
}

type PostgresStore struct {
	db        *sql.DB
	publisher EventPublisher
	indexer   Indexer

	editWindow          time.Duration
	editWindowInclusive bool
}

func NewPostgresStore(db *sql.DB, editWindow time.Duration, inclusive bool) *PostgresStore {
	return &PostgresStore{db: db, editWindow: editWindow, editWindowInclusive: inclusive}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// SetPublisher attaches the realtime fanout. Optional; nil means writes are
// not broadcast.
func (s *PostgresStore) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// SetIndexer attaches the search indexer. Optional.
func (s *PostgresStore) SetIndexer(ix Indexer) {
	s.indexer = ix
}

func (s *PostgresStore) InsertComment(ctx context.Context, threadID, authorID, content string) (Comment, error) {
	comment := Comment{ThreadID: threadID, AuthorID: authorID, Content: content}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (thread_id, author_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, threadID, authorID, content).Scan(&comment.ID, &comment.CreatedAt)
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	if s.publisher != nil {
		s.publisher.CommentInserted(ctx, comment)
	}
	if s.indexer != nil {
		s.indexer.IndexComment(comment)
	}
	return comment, nil
}

// UpdateComment applies an edit when the caller authored the comment and the
// edit window has not closed. This is the authoritative check: the WHERE
// clause evaluates the window against the database clock, so a client whose
// optimistic pre-check passed can still be rejected here.
func (s *PostgresStore) UpdateComment(ctx context.Context, commentID, authorID, content string) (Comment, error) {
	predicate := `created_at > NOW() - make_interval(secs => $4)`
	if s.editWindowInclusive {
		predicate = `created_at >= NOW() - make_interval(secs => $4)`
	}

	comment := Comment{ID: commentID, AuthorID: authorID, Content: content}
	err := s.db.QueryRowContext(ctx, `
		UPDATE comments
		SET content = $3, updated_at = NOW()
		WHERE id = $1 AND author_id = $2 AND `+predicate+`
		RETURNING thread_id, created_at, updated_at
	`, commentID, authorID, content, s.editWindow.Seconds()).
		Scan(&comment.ThreadID, &comment.CreatedAt, &comment.UpdatedAt)
	if err == nil {
		if s.publisher != nil {
			s.publisher.CommentUpdated(ctx, comment)
		}
		if s.indexer != nil {
			s.indexer.IndexComment(comment)
		}
		return comment, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Comment{}, fmt.Errorf("update comment: %w", err)
	}
	return Comment{}, s.classifyEditRejection(ctx, commentID, authorID)
}

// classifyEditRejection distinguishes "gone", "not yours" and "too late" after
// a conditional UPDATE matched no rows.
func (s *PostgresStore) classifyEditRejection(ctx context.Context, commentID, authorID string) error {
	var ownerID string
	err := s.db.QueryRowContext(ctx,
		`SELECT author_id FROM comments WHERE id = $1`, commentID).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCommentNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect rejected edit: %w", err)
	}
	if ownerID != authorID {
		return ErrNotCommentAuthor
	}
	return ErrEditWindowExpired
}

// DeleteComment removes a comment. Unlike edits there is no time window:
// the author may delete at any age, and admins may delete anything.
func (s *PostgresStore) DeleteComment(ctx context.Context, commentID, actorID string) error {
	var deleted Comment
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM comments
		WHERE id = $1
		  AND (author_id = $2
		       OR EXISTS (SELECT 1 FROM users WHERE id = $2 AND is_admin))
		RETURNING id, thread_id, author_id, content, created_at, updated_at
	`, commentID, actorID).
		Scan(&deleted.ID, &deleted.ThreadID, &deleted.AuthorID, &deleted.Content, &deleted.CreatedAt, &deleted.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if checkErr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM comments WHERE id = $1)`, commentID).Scan(&exists); checkErr != nil {
			return fmt.Errorf("inspect rejected delete: %w", checkErr)
		}
		if !exists {
			return ErrCommentNotFound
		}
		return ErrNotCommentAuthor
	}
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	if s.publisher != nil {
		s.publisher.CommentDeleted(ctx, deleted)
	}
	if s.indexer != nil {
		s.indexer.RemoveComment(commentID)
	}
	return nil
}

// ListThreadComments returns one thread's comments in chronological order.
func (s *PostgresStore) ListThreadComments(ctx context.Context, threadID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, author_id, content, created_at, updated_at
		FROM comments
		WHERE thread_id = $1
		ORDER BY created_at ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list thread comments: %w", err)
	}
	return scanComments(rows)
}

// ListCommentsForThreads bulk-loads comments across threads, newest first,
// for the activity feed.
func (s *PostgresStore) ListCommentsForThreads(ctx context.Context, threadIDs []string) ([]Comment, error) {
	if len(threadIDs) == 0 {
		return []Comment{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, author_id, content, created_at, updated_at
		FROM comments
		WHERE thread_id = ANY($1)
		ORDER BY created_at DESC
	`, threadIDs)
	if err != nil {
		return nil, fmt.Errorf("list comments for threads: %w", err)
	}
	return scanComments(rows)
}

func scanComments(rows *sql.Rows) ([]Comment, error) {
	defer rows.Close()
	items := make([]Comment, 0)
	for rows.Next() {
		var item Comment
		if err := rows.Scan(&item.ID, &item.ThreadID, &item.AuthorID, &item.Content, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// UpsertReadMarkers records that userID has seen the given comments. Re-marking
// an already-seen comment is a no-op via the primary-key conflict clause.
func (s *PostgresStore) UpsertReadMarkers(ctx context.Context, userID string, commentIDs []string) error {
	if len(commentIDs) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO read_markers (user_id, comment_id)
		SELECT $1, UNNEST($2::text[])
		ON CONFLICT (user_id, comment_id) DO NOTHING
	`, userID, commentIDs)
	if err != nil {
		return fmt.Errorf("upsert read markers: %w", err)
	}
	return nil
}

// ListReadMarkers returns the subset of commentIDs the user has already seen.
func (s *PostgresStore) ListReadMarkers(ctx context.Context, userID string, commentIDs []string) (map[string]struct{}, error) {
	seen := make(map[string]struct{})
	if len(commentIDs) == 0 {
		return seen, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT comment_id
		FROM read_markers
		WHERE user_id = $1 AND comment_id = ANY($2)
	`, userID, commentIDs)
	if err != nil {
		return nil, fmt.Errorf("list read markers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var commentID string
		if err := rows.Scan(&commentID); err != nil {
			return nil, fmt.Errorf("scan read marker: %w", err)
		}
		seen[commentID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate read markers: %w", err)
	}
	return seen, nil
}

// ListUserTasks returns the tasks where the user is assignee or creator;
// these are the threads that can surface in their activity feed.
func (s *PostgresStore) ListUserTasks(ctx context.Context, userID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, project_name, status_label, COALESCE(assigned_user_id, ''), created_by_user_id, created_at
		FROM tasks
		WHERE assigned_user_id = $1 OR created_by_user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user tasks: %w", err)
	}
	defer rows.Close()
	items := make([]Task, 0)
	for rows.Next() {
		var item Task
		if err := rows.Scan(&item.ID, &item.Title, &item.ProjectName, &item.StatusLabel, &item.AssignedUserID, &item.CreatedByUserID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, COALESCE(avatar_key, ''), is_admin
		FROM users
		WHERE id = $1
	`, userID).Scan(&user.ID, &user.DisplayName, &user.Email, &user.AvatarKey, &user.IsAdmin)
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
