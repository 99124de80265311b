package search

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Service is the facade that tries Meilisearch first and falls back to the
// PostgreSQL scan.
type Service struct {
	meili *Meili
	pg    *PgSearch
	log   *logrus.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not
// configured.
func NewService(meili *Meili, pg *PgSearch, log *logrus.Logger) *Service {
	return &Service{meili: meili, pg: pg, log: log}
}

// Search tries Meilisearch if healthy, otherwise falls back to Postgres.
func (s *Service) Search(q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.log.WithError(err).Warn("meilisearch error, falling back to postgres search")
	}

	results, total, err := s.pg.Search(q)
	if err != nil {
		s.log.WithError(err).Error("postgres search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexTask indexes a task (fire-and-forget to Meilisearch).
func (s *Service) IndexTask(t TaskRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexTask(t); err != nil {
			s.log.WithError(err).Warnf("index task %s", t.ID)
		}
	}()
}

// DeleteTask removes a task from the search index (fire-and-forget).
func (s *Service) DeleteTask(id string) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.DeleteTask(id); err != nil {
			s.log.WithError(err).Warnf("delete task %s from index", id)
		}
	}()
}

// ReindexAllFromPG reindexes every task from PostgreSQL into Meilisearch.
// Called at startup when Meilisearch is healthy.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pg == nil {
		return
	}
	tasks, err := s.pg.LoadAllRecords(ctx)
	if err != nil {
		s.log.WithError(err).Warn("search reindex load failed")
		return
	}
	if err := s.meili.IndexTasks(tasks); err != nil {
		s.log.WithError(err).Warn("search reindex failed")
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
