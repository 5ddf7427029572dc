package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"helios/api/internal/logging"
)

const (
	idxProjects = "helios_projects"
	idxBriefs   = "helios_briefs"
	idxComments = "helios_comments"
)

var errMeiliUnhealthy = errors.New("meilisearch unhealthy")

type indexSpec struct {
	uid        string
	primaryKey string
	kind       ResultType
	filterable []string
	searchable []string
}

var indexSpecs = []indexSpec{
	{
		uid:        idxProjects,
		primaryKey: "id",
		kind:       ResultProject,
		filterable: []string{"id", "status"},
		searchable: []string{"name"},
	},
	{
		uid:        idxBriefs,
		primaryKey: "projectId",
		kind:       ResultBrief,
		filterable: []string{"projectId", "approved"},
		searchable: []string{"purpose", "audience", "tone", "projectName"},
	},
	{
		uid:        idxComments,
		primaryKey: "id",
		kind:       ResultComment,
		filterable: []string{"projectId", "section"},
		searchable: []string{"text", "author"},
	},
}

// Meili implements Searcher and Indexer via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	logger  *slog.Logger
}

// NewMeili creates a Meilisearch client, configures indexes when reachable
// and keeps checking health in the background.
func NewMeili(url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
		logger: logging.Component("search"),
	}

	if _, err := m.client.Health(); err != nil {
		m.logger.Warn("meilisearch unavailable", "url", url, "error", err)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop(10 * time.Second)
	return m
}

func (m *Meili) configureIndexes() {
	for _, spec := range indexSpecs {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        spec.uid,
			PrimaryKey: spec.primaryKey,
		}); err != nil {
			m.logger.Debug("create index failed (may already exist)", "index", spec.uid, "error", err)
		}

		index := m.client.Index(spec.uid)
		filterable := make([]interface{}, len(spec.filterable))
		for i, v := range spec.filterable {
			filterable[i] = v
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			m.logger.Warn("update filterable attributes", "index", spec.uid, "error", err)
		}
		searchable := spec.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			m.logger.Warn("update searchable attributes", "index", spec.uid, "error", err)
		}
	}
}

func (m *Meili) healthLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.logger.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries every index, or the one named by the type filter, in a single multi-search.
func (m *Meili) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, errMeiliUnhealthy
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	limit := int64(q.Limit)
	if limit <= 0 {
		limit = 20
	}

	queries := make([]*meili.SearchRequest, 0, len(indexSpecs))
	for _, spec := range indexSpecs {
		if q.FilterType != "" && q.FilterType != spec.kind {
			continue
		}
		req := &meili.SearchRequest{
			IndexUID:              spec.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
		}
		if q.ProjectID != "" {
			field := "projectId"
			if spec.kind == ResultProject {
				field = "id"
			}
			req.Filter = fmt.Sprintf("%s = %q", field, q.ProjectID)
		}
		queries = append(queries, req)
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		kind := indexKind(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, kind))
		}
	}
	return results, total, nil
}

func indexKind(uid string) ResultType {
	for _, spec := range indexSpecs {
		if spec.uid == uid {
			return spec.kind
		}
	}
	return ""
}

func hitToResult(hit meili.Hit, kind ResultType) Result {
	r := Result{Type: kind}
	switch kind {
	case ResultProject:
		r.ID = decodeString(hit, "id")
		r.ProjectID = r.ID
		r.Title = firstNonBlank(decodeFormattedString(hit, "name"), decodeString(hit, "name"))
		r.Snippet = decodeString(hit, "status")
	case ResultBrief:
		r.ID = decodeString(hit, "briefId")
		r.ProjectID = decodeString(hit, "projectId")
		r.Title = decodeString(hit, "projectName")
		r.Snippet = firstNonBlank(
			decodeFormattedString(hit, "purpose"),
			decodeString(hit, "purpose"),
		)
	case ResultComment:
		r.ID = decodeString(hit, "id")
		r.ProjectID = decodeString(hit, "projectId")
		r.Title = decodeString(hit, "section")
		r.Snippet = firstNonBlank(decodeFormattedString(hit, "text"), decodeString(hit, "text"))
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]any
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	value, _ := formatted[key].(string)
	return strings.TrimSpace(value)
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (m *Meili) IndexProjects(records []ProjectRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxProjects).AddDocuments(records, nil)
	return err
}

func (m *Meili) IndexBriefs(records []BriefRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxBriefs).AddDocuments(records, nil)
	return err
}

func (m *Meili) IndexComments(records []CommentRecord) error {
	if len(records) == 0 {
		return nil
	}
	_, err := m.client.Index(idxComments).AddDocuments(records, nil)
	return err
}

// DeleteProject removes the project and its brief; both are keyed by project ID.
func (m *Meili) DeleteProject(projectID string) error {
	if _, err := m.client.Index(idxProjects).DeleteDocument(projectID, nil); err != nil {
		return err
	}
	_, err := m.client.Index(idxBriefs).DeleteDocument(projectID, nil)
	return err
}

func (m *Meili) DeleteComments(ids []string) error {
	for _, id := range ids {
		if _, err := m.client.Index(idxComments).DeleteDocument(id, nil); err != nil {
			return err
		}
	}
	return nil
}
