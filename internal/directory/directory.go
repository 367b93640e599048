// Package directory resolves user display metadata for comment author
// hydration.
package directory

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"taskdeck/api/internal/store"
	"taskdeck/api/internal/thread"
)

// UserLookup is the user-record source. *store.PostgresStore satisfies it.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID string) (store.User, error)
}

// Service caches display lookups so remote authors are fetched once per
// process. It satisfies thread.Directory.
type Service struct {
	users   UserLookup
	avatars *AvatarStore
	log     zerolog.Logger

	mu    sync.Mutex
	cache map[string]thread.AuthorDisplay
}

// New creates a directory. avatars may be nil when no blob store is
// configured; displays then carry names only.
func New(users UserLookup, avatars *AvatarStore, log zerolog.Logger) *Service {
	return &Service{
		users:   users,
		avatars: avatars,
		log:     log,
		cache:   make(map[string]thread.AuthorDisplay),
	}
}

func (s *Service) Display(ctx context.Context, userID string) (thread.AuthorDisplay, error) {
	s.mu.Lock()
	if display, ok := s.cache[userID]; ok {
		s.mu.Unlock()
		return display, nil
	}
	s.mu.Unlock()

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return thread.AuthorDisplay{}, err
	}

	display := thread.AuthorDisplay{Name: user.DisplayName}
	if s.avatars != nil && user.AvatarKey != "" {
		avatarURL, err := s.avatars.URL(ctx, user.AvatarKey)
		if err != nil {
			// A missing avatar is cosmetic; keep the name.
			s.log.Warn().Err(err).Str("user", userID).Msg("directory: avatar resolve failed")
		} else {
			display.AvatarURL = avatarURL
		}
	}

	s.mu.Lock()
	s.cache[userID] = display
	s.mu.Unlock()
	return display, nil
}
