// Package search indexes projects, briefs and comments. Meilisearch serves
// queries when reachable; PostgreSQL full-text search covers the rest.
package search

import "context"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultProject ResultType = "project"
	ResultBrief   ResultType = "brief"
	ResultComment ResultType = "comment"
)

func ParseResultType(value string) (ResultType, bool) {
	switch ResultType(value) {
	case "":
		return "", true
	case ResultProject, ResultBrief, ResultComment:
		return ResultType(value), true
	default:
		return "", false
	}
}

type Result struct {
	Type      ResultType `json:"type"`
	ID        string     `json:"id"`
	ProjectID string     `json:"projectId"`
	Title     string     `json:"title"`
	Snippet   string     `json:"snippet"`
}

type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	ProjectID  string
	Limit      int
	Offset     int
}

type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Backend string   `json:"backend"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexProjects(records []ProjectRecord) error
	IndexBriefs(records []BriefRecord) error
	IndexComments(records []CommentRecord) error
	DeleteProject(projectID string) error
	DeleteComments(ids []string) error
}

type ProjectRecord struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Status string `json:"status" db:"status"`
}

// BriefRecord is keyed by project; a project has at most one brief.
type BriefRecord struct {
	ProjectID   string `json:"projectId" db:"project_id"`
	BriefID     string `json:"briefId" db:"id"`
	ProjectName string `json:"projectName" db:"project_name"`
	Purpose     string `json:"purpose" db:"purpose"`
	Audience    string `json:"audience" db:"audience"`
	Tone        string `json:"tone" db:"tone"`
	Approved    bool   `json:"approved" db:"is_approved"`
}

type CommentRecord struct {
	ID        string `json:"id" db:"id"`
	ProjectID string `json:"projectId" db:"project_id"`
	Section   string `json:"section" db:"section"`
	Author    string `json:"author" db:"author"`
	Text      string `json:"text" db:"text"`
}
