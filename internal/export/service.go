package export

import (
	"context"
	"fmt"
	"time"

	"taskdeck/api/internal/store"
)

// DataStore supplies the thread data a transcript needs.
// *store.PostgresStore satisfies the comment side; task and user lookups ride
// on the same store in production.
type DataStore interface {
	ListThreadComments(ctx context.Context, threadID string) ([]store.Comment, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
}

// Service renders thread transcripts.
type Service struct {
	store DataStore
}

func NewService(dataStore DataStore) *Service {
	return &Service{store: dataStore}
}

// Export builds the transcript for a thread and renders it in the requested
// format.
func (s *Service) Export(ctx context.Context, req Request, task store.Task) (*Result, error) {
	comments, err := s.store.ListThreadComments(ctx, req.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentUnavailable, err)
	}

	names := make(map[string]string)
	entries := make([]Entry, 0, len(comments))
	for _, c := range comments {
		name, ok := names[c.AuthorID]
		if !ok {
			user, err := s.store.GetUserByID(ctx, c.AuthorID)
			if err != nil {
				name = c.AuthorID
			} else {
				name = user.DisplayName
			}
			names[c.AuthorID] = name
		}
		entries = append(entries, Entry{
			Author:    name,
			Content:   c.Content,
			CreatedAt: c.CreatedAt,
			Edited:    c.Edited(),
		})
	}

	title := task.Title
	if title == "" {
		title = req.ThreadID
	}
	html, err := RenderHTML(TemplateData{
		Title:       title,
		ProjectName: task.ProjectName,
		StatusLabel: task.StatusLabel,
		ExportedAt:  time.Now(),
		Entries:     entries,
	})
	if err != nil {
		return nil, err
	}

	switch req.Format {
	case FormatDOCX:
		return exportDOCX(html, title)
	default:
		return exportPDF(html, title)
	}
}
