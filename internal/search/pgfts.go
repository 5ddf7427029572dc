package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// PgFTS implements Searcher with PostgreSQL full-text search.
type PgFTS struct {
	db *sqlx.DB
}

func NewPgFTS(db *sqlx.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy is always true; without Postgres nothing else works either.
func (p *PgFTS) Healthy() bool {
	return true
}

type ftsRow struct {
	Type      string  `db:"type"`
	ID        string  `db:"id"`
	ProjectID string  `db:"project_id"`
	Title     string  `db:"title"`
	Snippet   string  `db:"snippet"`
	Rank      float64 `db:"rank"`
}

// Search unions the project, brief and comment tsvector columns, ranked with
// ts_rank and excerpted with ts_headline.
func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	unionSQL, args := buildUnion(q)
	if unionSQL == "" {
		return nil, 0, nil
	}

	var total int
	if err := p.db.GetContext(ctx, &total, "SELECT count(*) FROM ("+unionSQL+") sub", args...); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	dataSQL := fmt.Sprintf(`SELECT type, id, project_id, title, snippet, rank
		FROM (%s) sub
		ORDER BY rank DESC, id
		LIMIT %d OFFSET %d`, unionSQL, limit, offset)
	var rows []ftsRow
	if err := p.db.SelectContext(ctx, &rows, dataSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		results = append(results, Result{
			Type:      ResultType(row.Type),
			ID:        row.ID,
			ProjectID: row.ProjectID,
			Title:     row.Title,
			Snippet:   row.Snippet,
		})
	}
	return results, total, nil
}

func buildUnion(q Query) (string, []any) {
	const tsQuery = "plainto_tsquery('english', $1)"
	const headline = "'StartSel=<mark>,StopSel=</mark>,MaxFragments=1,MaxWords=30'"
	args := []any{q.Text}
	projectFilter := ""
	if q.ProjectID != "" {
		args = append(args, q.ProjectID)
		projectFilter = " AND %s = $2"
	}
	scoped := func(column string) string {
		if projectFilter == "" {
			return ""
		}
		return fmt.Sprintf(projectFilter, column)
	}

	var parts []string
	if q.FilterType == "" || q.FilterType == ResultProject {
		parts = append(parts, fmt.Sprintf(`
			SELECT 'project'::text AS type, p.id, p.id AS project_id, p.name AS title,
				p.status AS snippet,
				ts_rank(p.search_tsv, %[1]s) AS rank
			FROM projects p
			WHERE p.search_tsv @@ %[1]s%[2]s`, tsQuery, scoped("p.id")))
	}
	if q.FilterType == "" || q.FilterType == ResultBrief {
		parts = append(parts, fmt.Sprintf(`
			SELECT 'brief'::text AS type, b.id, b.project_id, p.name AS title,
				ts_headline('english', b.purpose, %[1]s, %[3]s) AS snippet,
				ts_rank(b.search_tsv, %[1]s) AS rank
			FROM briefs b
			JOIN projects p ON p.id = b.project_id
			WHERE b.search_tsv @@ %[1]s%[2]s`, tsQuery, scoped("b.project_id"), headline))
	}
	if q.FilterType == "" || q.FilterType == ResultComment {
		parts = append(parts, fmt.Sprintf(`
			SELECT 'comment'::text AS type, c.id, c.project_id, c.section AS title,
				ts_headline('english', c.text, %[1]s, %[3]s) AS snippet,
				ts_rank(c.search_tsv, %[1]s) AS rank
			FROM comments c
			WHERE c.search_tsv @@ %[1]s%[2]s`, tsQuery, scoped("c.project_id"), headline))
	}
	return strings.Join(parts, " UNION ALL "), args
}

// LoadAllRecords returns every searchable row for a full reindex.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ProjectRecord, []BriefRecord, []CommentRecord, error) {
	projects := make([]ProjectRecord, 0)
	if err := p.db.SelectContext(ctx, &projects, `SELECT id, name, status FROM projects`); err != nil {
		return nil, nil, nil, fmt.Errorf("load projects: %w", err)
	}

	briefs := make([]BriefRecord, 0)
	err := p.db.SelectContext(ctx, &briefs, `
		SELECT b.id, b.project_id, p.name AS project_name, b.purpose,
			trim(b.primary_audience || ' ' || b.secondary_audience) AS audience,
			b.tone, b.is_approved
		FROM briefs b
		JOIN projects p ON p.id = b.project_id`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load briefs: %w", err)
	}

	comments := make([]CommentRecord, 0)
	if err := p.db.SelectContext(ctx, &comments, `SELECT id, project_id, section, author, text FROM comments`); err != nil {
		return nil, nil, nil, fmt.Errorf("load comments: %w", err)
	}
	return projects, briefs, comments, nil
}
