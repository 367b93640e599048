package search

import (
	"github.com/rs/zerolog"

	"taskdeck/api/internal/store"
)

// Service is the facade that tries Meilisearch first and falls back to PG
// FTS. It also satisfies store.Indexer so comment mutations keep the index
// current, fire-and-forget.
type Service struct {
	meili *Meili
	pgfts *PgFTS
	log   zerolog.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, pgfts *PgFTS, log zerolog.Logger) *Service {
	return &Service{meili: meili, pgfts: pgfts, log: log}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.Warn().Err(err).Msg("search: meilisearch error, falling back to pgfts")
	}

	results, total, err := s.pgfts.Search(q)
	if err != nil {
		s.log.Error().Err(err).Msg("search: pgfts error")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexComment mirrors a comment create/edit into Meilisearch.
func (s *Service) IndexComment(c store.Comment) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	record := CommentRecord{ID: c.ID, ThreadID: c.ThreadID, AuthorID: c.AuthorID, Content: c.Content}
	go func() {
		if err := s.meili.IndexComment(record); err != nil {
			s.log.Warn().Err(err).Str("comment", record.ID).Msg("search: index comment")
		}
	}()
}

// RemoveComment mirrors a comment delete into Meilisearch.
func (s *Service) RemoveComment(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.RemoveComment(id); err != nil {
			s.log.Warn().Err(err).Str("comment", id).Msg("search: remove comment")
		}
	}()
}

// ReindexAll pushes every comment into Meilisearch, used on bootstrap when
// the index is empty.
func (s *Service) ReindexAll(records []CommentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	if err := s.meili.IndexComments(records); err != nil {
		s.log.Warn().Err(err).Msg("search: reindex comments")
	}
}

func nonNil(results []Result) []Result {
	if results == nil {
		return []Result{}
	}
	return results
}
