package search

import (
	"context"
	"log/slog"
	"sync"

	"helios/api/internal/logging"
)

const (
	BackendMeili    = "meilisearch"
	BackendPostgres = "postgres"
)

// Service tries the primary index first and falls back to Postgres FTS.
// Index writes run in the background and never fail the caller.
type Service struct {
	primary  Searcher
	indexer  Indexer
	fallback Searcher
	logger   *slog.Logger
	pending  sync.WaitGroup
}

// NewService creates a search service. meili may be nil when Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS) *Service {
	svc := newService(nil, nil, nil)
	if meili != nil {
		svc.primary = meili
		svc.indexer = meili
	}
	if pgfts != nil {
		svc.fallback = pgfts
	}
	return svc
}

func newService(primary Searcher, indexer Indexer, fallback Searcher) *Service {
	return &Service{
		primary:  primary,
		indexer:  indexer,
		fallback: fallback,
		logger:   logging.Component("search"),
	}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.primary != nil && s.primary.Healthy() {
		results, total, err := s.primary.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: BackendMeili}
		}
		s.logger.Warn("primary search failed, falling back to postgres", "error", err)
	}

	empty := Response{Results: []Result{}, Query: q.Text, Backend: BackendPostgres}
	if s.fallback == nil {
		return empty
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error("postgres search failed", "error", err)
		return empty
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Backend: BackendPostgres}
}

func (s *Service) IndexProject(record ProjectRecord) {
	s.async("index project", record.ID, func(ix Indexer) error {
		return ix.IndexProjects([]ProjectRecord{record})
	})
}

func (s *Service) IndexBrief(record BriefRecord) {
	s.async("index brief", record.ProjectID, func(ix Indexer) error {
		return ix.IndexBriefs([]BriefRecord{record})
	})
}

func (s *Service) IndexComment(record CommentRecord) {
	s.async("index comment", record.ID, func(ix Indexer) error {
		return ix.IndexComments([]CommentRecord{record})
	})
}

func (s *Service) RemoveComment(id string) {
	s.async("delete comment", id, func(ix Indexer) error {
		return ix.DeleteComments([]string{id})
	})
}

// RemoveProject drops the project, its brief and the given comments from the index.
func (s *Service) RemoveProject(projectID string, commentIDs []string) {
	s.async("delete project", projectID, func(ix Indexer) error {
		if err := ix.DeleteProject(projectID); err != nil {
			return err
		}
		if len(commentIDs) == 0 {
			return nil
		}
		return ix.DeleteComments(commentIDs)
	})
}

// Reindex loads every searchable row from Postgres and pushes it to the primary index.
func (s *Service) Reindex(ctx context.Context, source RecordSource) error {
	if s.indexer == nil || s.primary == nil || !s.primary.Healthy() || source == nil {
		return nil
	}
	projects, briefs, comments, err := source.LoadAllRecords(ctx)
	if err != nil {
		return err
	}
	if len(projects) > 0 {
		if err := s.indexer.IndexProjects(projects); err != nil {
			return err
		}
	}
	if len(briefs) > 0 {
		if err := s.indexer.IndexBriefs(briefs); err != nil {
			return err
		}
	}
	if len(comments) > 0 {
		if err := s.indexer.IndexComments(comments); err != nil {
			return err
		}
	}
	s.logger.Info("search index rebuilt", "projects", len(projects), "briefs", len(briefs), "comments", len(comments))
	return nil
}

// Wait blocks until background index writes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// RecordSource supplies full record sets for reindexing.
type RecordSource interface {
	LoadAllRecords(ctx context.Context) ([]ProjectRecord, []BriefRecord, []CommentRecord, error)
}

func (s *Service) async(op, id string, fn func(Indexer) error) {
	if s.indexer == nil || s.primary == nil || !s.primary.Healthy() {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := fn(s.indexer); err != nil {
			s.logger.Warn("search index write failed", "op", op, "id", id, "error", err)
		}
	}()
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
