// Package feed builds the cross-thread activity view: one summary per
// conversation the viewer participates in, freshest first.
package feed

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"taskdeck/api/internal/realtime"
	"taskdeck/api/internal/receipt"
	"taskdeck/api/internal/store"
)

// Backend supplies the bulk loads the aggregator needs. *store.PostgresStore
// satisfies it.
type Backend interface {
	ListUserTasks(ctx context.Context, userID string) ([]store.Task, error)
	ListCommentsForThreads(ctx context.Context, threadIDs []string) ([]store.Comment, error)
	ListReadMarkers(ctx context.Context, userID string, commentIDs []string) (map[string]struct{}, error)
}

// ConversationSummary is derived state, never stored: recomputed wholesale
// from the comment and read-marker sets.
type ConversationSummary struct {
	ThreadID      string
	Title         string
	ProjectName   string
	StatusLabel   string
	LastMessage   store.Comment
	UnreadCount   int
	TotalComments int
}

// Aggregator recomputes the viewer's conversation summaries in bulk. It holds
// no per-thread live state; any insert anywhere invalidates everything, and a
// fresh recompute is always derivable from the two source sets.
type Aggregator struct {
	userID  string
	backend Backend
	log     zerolog.Logger

	mu         sync.Mutex
	summaries  []ConversationSummary
	refreshed  bool
	refreshErr error
}

func NewAggregator(userID string, backend Backend, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		userID:  userID,
		backend: backend,
		log:     log.With().Str("user", userID).Logger(),
	}
}

// Refresh rebuilds the summaries from scratch. On failure the previous
// summaries are left untouched.
func (a *Aggregator) Refresh(ctx context.Context) error {
	summaries, err := a.compute(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.refreshErr = err
		a.log.Error().Err(err).Msg("feed: refresh failed")
		return err
	}
	a.summaries = summaries
	a.refreshed = true
	a.refreshErr = nil
	return nil
}

func (a *Aggregator) compute(ctx context.Context) ([]ConversationSummary, error) {
	tasks, err := a.backend.ListUserTasks(ctx, a.userID)
	if err != nil {
		return nil, err
	}
	threadIDs := make([]string, 0, len(tasks))
	taskByID := make(map[string]store.Task, len(tasks))
	for _, task := range tasks {
		threadIDs = append(threadIDs, task.ID)
		taskByID[task.ID] = task
	}

	// Newest first, so the first comment seen per thread is its last message.
	comments, err := a.backend.ListCommentsForThreads(ctx, threadIDs)
	if err != nil {
		return nil, err
	}

	commentIDs := make([]string, 0, len(comments))
	for _, c := range comments {
		commentIDs = append(commentIDs, c.ID)
	}
	seen, err := a.backend.ListReadMarkers(ctx, a.userID, commentIDs)
	if err != nil {
		return nil, err
	}

	byThread := make(map[string][]store.Comment)
	for _, c := range comments {
		byThread[c.ThreadID] = append(byThread[c.ThreadID], c)
	}

	// Threads without comments never surface: only active conversations
	// belong in the feed.
	summaries := make([]ConversationSummary, 0, len(byThread))
	for threadID, threadComments := range byThread {
		task, ok := taskByID[threadID]
		if !ok {
			continue
		}
		summaries = append(summaries, ConversationSummary{
			ThreadID:      threadID,
			Title:         task.Title,
			ProjectName:   task.ProjectName,
			StatusLabel:   task.StatusLabel,
			LastMessage:   threadComments[0],
			UnreadCount:   receipt.UnreadCount(a.userID, threadComments, seen),
			TotalComments: len(threadComments),
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastMessage.CreatedAt.After(summaries[j].LastMessage.CreatedAt)
	})
	return summaries, nil
}

// Summaries returns the most recent successful recompute.
func (a *Aggregator) Summaries() []ConversationSummary {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ConversationSummary, len(a.summaries))
	copy(out, a.summaries)
	return out
}

// RefreshError returns the error of the most recent failed refresh, nil after
// any success.
func (a *Aggregator) RefreshError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshErr
}

// Run performs the initial refresh and then recomputes on every insert seen
// on the unfiltered channel, plus on reconnects, until ctx is cancelled. No
// incremental merging: correctness over efficiency.
func (a *Aggregator) Run(ctx context.Context, channel interface {
	Updates() <-chan realtime.Update
}) {
	_ = a.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-channel.Updates():
			if !ok {
				return
			}
			switch {
			case u.Status == realtime.StatusSubscribed:
				a.mu.Lock()
				done := a.refreshed
				a.mu.Unlock()
				if done {
					_ = a.Refresh(ctx)
				}
			case u.Event != nil && u.Event.Type == realtime.EventInsert:
				_ = a.Refresh(ctx)
			}
		}
	}
}
