package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "pgx")}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db.DB
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const projectColumns = `id, name, status, created_at, updated_at`

func (s *PostgresStore) ListProjectSummaries(ctx context.Context) ([]ProjectSummary, error) {
	const query = `
		SELECT p.id, p.name, p.status, p.created_at, p.updated_at,
			b.id IS NOT NULL AS has_brief,
			COALESCE(b.is_approved, FALSE) AS is_approved,
			(SELECT COUNT(*) FROM artifacts a WHERE a.project_id = p.id) AS artifact_count,
			(SELECT COUNT(*) FROM comments c WHERE c.project_id = p.id) AS comment_count,
			(SELECT COUNT(*) FROM change_requests cr WHERE cr.project_id = p.id AND cr.status = 'pending') AS pending_change_requests
		FROM projects p
		LEFT JOIN briefs b ON b.project_id = p.id
		ORDER BY p.created_at DESC
	`
	items := []ProjectSummary{}
	if err := s.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetProject(ctx context.Context, projectID string) (Project, error) {
	var project Project
	err := s.db.GetContext(ctx, &project, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, projectID)
	if err != nil {
		return Project{}, wrapRead("get project", err)
	}
	return project, nil
}

func (s *PostgresStore) InsertProject(ctx context.Context, project Project) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO projects (id, name, status, created_at, updated_at)
		VALUES (:id, :name, :status, :created_at, :updated_at)
	`, project)
	if err != nil {
		return wrapWrite("insert project", err)
	}
	return nil
}

func (s *PostgresStore) RenameProject(ctx context.Context, projectID, name string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE projects SET name=$2, updated_at=NOW() WHERE id=$1`, projectID, name)
	if err != nil {
		return fmt.Errorf("rename project: %w", err)
	}
	return requireRow(result, "rename project")
}

func (s *PostgresStore) UpdateProjectStatus(ctx context.Context, projectID, status string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE projects SET status=$2, updated_at=NOW() WHERE id=$1`, projectID, status)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	return requireRow(result, "update project status")
}

// DeleteProject removes the project; foreign keys cascade to every owned row.
func (s *PostgresStore) DeleteProject(ctx context.Context, projectID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireRow(result, "delete project")
}

func (s *PostgresStore) UpsertIntake(ctx context.Context, intake Intake) (Intake, error) {
	query, args, err := sqlx.Named(`
		INSERT INTO intakes (id, project_id, stakeholder_documents, boilerplate_language, created_at, updated_at)
		VALUES (:id, :project_id, :stakeholder_documents, :boilerplate_language, :created_at, :updated_at)
		ON CONFLICT (project_id) DO UPDATE SET
			stakeholder_documents = EXCLUDED.stakeholder_documents,
			boilerplate_language = EXCLUDED.boilerplate_language,
			updated_at = EXCLUDED.updated_at
		RETURNING id, project_id, stakeholder_documents, boilerplate_language, created_at, updated_at
	`, intake)
	if err != nil {
		return Intake{}, fmt.Errorf("bind intake: %w", err)
	}
	var saved Intake
	if err := s.db.GetContext(ctx, &saved, s.db.Rebind(query), args...); err != nil {
		return Intake{}, wrapWrite("upsert intake", err)
	}
	return saved, nil
}

func (s *PostgresStore) GetIntake(ctx context.Context, projectID string) (Intake, error) {
	var intake Intake
	err := s.db.GetContext(ctx, &intake, `
		SELECT id, project_id, stakeholder_documents, boilerplate_language, created_at, updated_at
		FROM intakes WHERE project_id=$1
	`, projectID)
	if err != nil {
		return Intake{}, wrapRead("get intake", err)
	}
	return intake, nil
}

const briefColumns = `id, project_id, purpose, primary_audience, secondary_audience, tone,
	sitemap, constraints, assumptions, open_questions, is_approved, approved_at, created_at, updated_at`

// InsertBrief returns ErrAlreadyExists when the project already has a brief.
func (s *PostgresStore) InsertBrief(ctx context.Context, brief Brief) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO briefs (id, project_id, purpose, primary_audience, secondary_audience, tone,
			sitemap, constraints, assumptions, open_questions, is_approved, approved_at, created_at, updated_at)
		VALUES (:id, :project_id, :purpose, :primary_audience, :secondary_audience, :tone,
			:sitemap, :constraints, :assumptions, :open_questions, FALSE, NULL, :created_at, :updated_at)
	`, brief)
	if err != nil {
		return wrapWrite("insert brief", err)
	}
	return nil
}

func (s *PostgresStore) GetBrief(ctx context.Context, projectID string) (Brief, error) {
	var brief Brief
	if err := s.db.GetContext(ctx, &brief, `SELECT `+briefColumns+` FROM briefs WHERE project_id=$1`, projectID); err != nil {
		return Brief{}, wrapRead("get brief", err)
	}
	return brief, nil
}

func (s *PostgresStore) GetBriefByID(ctx context.Context, briefID string) (Brief, error) {
	var brief Brief
	if err := s.db.GetContext(ctx, &brief, `SELECT `+briefColumns+` FROM briefs WHERE id=$1`, briefID); err != nil {
		return Brief{}, wrapRead("get brief by id", err)
	}
	return brief, nil
}

// ApproveBrief locks the brief, marks the project approved and appends the
// audit entries in one transaction. It reports false without writing anything
// when the brief was already approved.
func (s *PostgresStore) ApproveBrief(ctx context.Context, projectID string, approvedAt time.Time, entries []ChangeLogEntry) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin approve tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE briefs SET is_approved=TRUE, approved_at=$2, updated_at=$2
		WHERE project_id=$1 AND is_approved=FALSE
	`, projectID, approvedAt)
	if err != nil {
		return false, fmt.Errorf("approve brief: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve brief rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `UPDATE projects SET status='approved', updated_at=$2 WHERE id=$1`, projectID, approvedAt); err != nil {
		return false, fmt.Errorf("mark project approved: %w", err)
	}
	for _, entry := range entries {
		if err := insertChangeLog(ctx, tx, entry); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit approve tx: %w", err)
	}
	return true, nil
}

const artifactOrder = `array_position(ARRAY['content','design','seo','assumptions','history']::text[], type)`

func (s *PostgresStore) ListArtifacts(ctx context.Context, projectID string) ([]Artifact, error) {
	items := []Artifact{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT id, project_id, type, content, created_at
		FROM artifacts WHERE project_id=$1
		ORDER BY created_at ASC, `+artifactOrder, projectID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetArtifact(ctx context.Context, projectID, artifactType string) (Artifact, error) {
	var artifact Artifact
	err := s.db.GetContext(ctx, &artifact, `
		SELECT id, project_id, type, content, created_at
		FROM artifacts WHERE project_id=$1 AND type=$2
	`, projectID, artifactType)
	if err != nil {
		return Artifact{}, wrapRead("get artifact", err)
	}
	return artifact, nil
}

func (s *PostgresStore) CountArtifacts(ctx context.Context, projectID string) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM artifacts WHERE project_id=$1`, projectID); err != nil {
		return 0, fmt.Errorf("count artifacts: %w", err)
	}
	return count, nil
}

// InsertArtifact returns ErrAlreadyExists when the project already has this artifact type.
func (s *PostgresStore) InsertArtifact(ctx context.Context, artifact Artifact) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO artifacts (id, project_id, type, content, created_at)
		VALUES (:id, :project_id, :type, :content, :created_at)
	`, artifact)
	if err != nil {
		return wrapWrite("insert artifact", err)
	}
	return nil
}

const commentColumns = `id, project_id, author, text, section, created_at, updated_at`

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO comments (id, project_id, author, text, section, created_at, updated_at)
		VALUES (:id, :project_id, :author, :text, :section, :created_at, :updated_at)
	`, comment)
	if err != nil {
		return wrapWrite("insert comment", err)
	}
	return nil
}

func (s *PostgresStore) GetComment(ctx context.Context, commentID string) (Comment, error) {
	var comment Comment
	if err := s.db.GetContext(ctx, &comment, `SELECT `+commentColumns+` FROM comments WHERE id=$1`, commentID); err != nil {
		return Comment{}, wrapRead("get comment", err)
	}
	return comment, nil
}

func (s *PostgresStore) UpdateCommentText(ctx context.Context, commentID, text string, updatedAt time.Time) (Comment, error) {
	var comment Comment
	err := s.db.GetContext(ctx, &comment, `
		UPDATE comments SET text=$2, updated_at=$3 WHERE id=$1
		RETURNING `+commentColumns, commentID, text, updatedAt)
	if err != nil {
		return Comment{}, wrapRead("update comment", err)
	}
	return comment, nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return requireRow(result, "delete comment")
}

// ListComments returns newest first. An empty section lists every section.
func (s *PostgresStore) ListComments(ctx context.Context, projectID, section string) ([]Comment, error) {
	items := []Comment{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+commentColumns+` FROM comments
		WHERE project_id=$1 AND ($2 = '' OR section = $2)
		ORDER BY created_at DESC, id DESC
	`, projectID, section)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CommentCountsBySection(ctx context.Context, projectID string) ([]SectionCount, error) {
	items := []SectionCount{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT section, COUNT(*) AS count FROM comments
		WHERE project_id=$1 GROUP BY section ORDER BY section
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("count comments by section: %w", err)
	}
	return items, nil
}

const changeRequestColumns = `id, project_id, brief_id, requester, sections, feedback, priority, status,
	reviewed_by, reviewed_at, resolution, implemented_by, implemented_at, created_at, updated_at`

func (s *PostgresStore) InsertChangeRequest(ctx context.Context, request ChangeRequest) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO change_requests (id, project_id, brief_id, requester, sections, feedback, priority, status, created_at, updated_at)
		VALUES (:id, :project_id, :brief_id, :requester, :sections, :feedback, :priority, :status, :created_at, :updated_at)
	`, request)
	if err != nil {
		return wrapWrite("insert change request", err)
	}
	return nil
}

func (s *PostgresStore) GetChangeRequest(ctx context.Context, requestID string) (ChangeRequest, error) {
	var request ChangeRequest
	if err := s.db.GetContext(ctx, &request, `SELECT `+changeRequestColumns+` FROM change_requests WHERE id=$1`, requestID); err != nil {
		return ChangeRequest{}, wrapRead("get change request", err)
	}
	return request, nil
}

func (s *PostgresStore) ListChangeRequests(ctx context.Context, projectID string) ([]ChangeRequest, error) {
	items := []ChangeRequest{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT `+changeRequestColumns+` FROM change_requests
		WHERE project_id=$1 ORDER BY created_at DESC, id DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list change requests: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ChangeRequestStats(ctx context.Context, projectID string) (ChangeRequestStats, error) {
	var stats ChangeRequestStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending,
			COUNT(*) FILTER (WHERE status = 'approved') AS approved,
			COUNT(*) FILTER (WHERE status = 'rejected') AS rejected,
			COUNT(*) FILTER (WHERE status = 'implemented') AS implemented,
			COUNT(*) FILTER (WHERE priority = 'critical') AS critical
		FROM change_requests WHERE project_id=$1
	`, projectID)
	if err != nil {
		return ChangeRequestStats{}, fmt.Errorf("change request stats: %w", err)
	}
	return stats, nil
}

// ReviewChangeRequest moves a pending request to approved or rejected. It
// reports false when the request is no longer pending.
func (s *PostgresStore) ReviewChangeRequest(ctx context.Context, requestID, status, reviewedBy string, resolution *string, reviewedAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE change_requests
		SET status=$2, reviewed_by=$3, resolution=$4, reviewed_at=$5, updated_at=$5
		WHERE id=$1 AND status='pending'
	`, requestID, status, reviewedBy, resolution, reviewedAt)
	if err != nil {
		return false, fmt.Errorf("review change request: %w", err)
	}
	return changed(result, "review change request")
}

// MarkChangeRequestImplemented moves an approved request to implemented. It
// reports false when the request is not approved.
func (s *PostgresStore) MarkChangeRequestImplemented(ctx context.Context, requestID, implementedBy string, implementedAt time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE change_requests
		SET status='implemented', implemented_by=$2, implemented_at=$3, updated_at=$3
		WHERE id=$1 AND status='approved'
	`, requestID, implementedBy, implementedAt)
	if err != nil {
		return false, fmt.Errorf("mark change request implemented: %w", err)
	}
	return changed(result, "mark change request implemented")
}

func (s *PostgresStore) DeleteChangeRequest(ctx context.Context, requestID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM change_requests WHERE id=$1`, requestID)
	if err != nil {
		return fmt.Errorf("delete change request: %w", err)
	}
	return requireRow(result, "delete change request")
}

func (s *PostgresStore) InsertChangeLog(ctx context.Context, entry ChangeLogEntry) error {
	return insertChangeLog(ctx, s.db, entry)
}

func insertChangeLog(ctx context.Context, exec sqlx.ExtContext, entry ChangeLogEntry) error {
	_, err := sqlx.NamedExecContext(ctx, exec, `
		INSERT INTO change_log (id, project_id, action, actor_kind, actor_name, metadata, created_at)
		VALUES (:id, :project_id, :action, :actor_kind, :actor_name, :metadata, :created_at)
	`, entry)
	if err != nil {
		return wrapWrite("insert change log", err)
	}
	return nil
}

// ListChangeLog returns the newest entries first. A non-positive limit returns everything.
func (s *PostgresStore) ListChangeLog(ctx context.Context, projectID string, limit int) ([]ChangeLogEntry, error) {
	items := []ChangeLogEntry{}
	query := `
		SELECT id, project_id, action, actor_kind, actor_name, metadata, created_at
		FROM change_log WHERE project_id=$1
		ORDER BY created_at DESC, id DESC
	`
	args := []any{projectID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	if err := s.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list change log: %w", err)
	}
	return items, nil
}

// ExportRecord reads the project, brief, artifacts and comments from one
// repeatable-read snapshot so the export cannot mix states.
func (s *PostgresStore) ExportRecord(ctx context.Context, projectID string) (ExportRecord, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return ExportRecord{}, fmt.Errorf("begin export tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var record ExportRecord
	if err := tx.GetContext(ctx, &record.Project, `SELECT `+projectColumns+` FROM projects WHERE id=$1`, projectID); err != nil {
		return ExportRecord{}, wrapRead("export project", err)
	}
	if err := tx.GetContext(ctx, &record.Brief, `SELECT `+briefColumns+` FROM briefs WHERE project_id=$1`, projectID); err != nil {
		return ExportRecord{}, wrapRead("export brief", err)
	}
	record.Artifacts = []Artifact{}
	if err := tx.SelectContext(ctx, &record.Artifacts, `
		SELECT id, project_id, type, content, created_at
		FROM artifacts WHERE project_id=$1
		ORDER BY created_at ASC, `+artifactOrder, projectID); err != nil {
		return ExportRecord{}, fmt.Errorf("export artifacts: %w", err)
	}
	record.Comments = []Comment{}
	if err := tx.SelectContext(ctx, &record.Comments, `
		SELECT `+commentColumns+` FROM comments
		WHERE project_id=$1 ORDER BY created_at DESC, id DESC
	`, projectID); err != nil {
		return ExportRecord{}, fmt.Errorf("export comments: %w", err)
	}
	return record, nil
}

func wrapRead(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sql.ErrNoRows
	}
	return fmt.Errorf("%s: %w", op, err)
}

func wrapWrite(op string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, ErrAlreadyExists)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func requireRow(result sql.Result, op string) error {
	ok, err := changed(result, op)
	if err != nil {
		return err
	}
	if !ok {
		return sql.ErrNoRows
	}
	return nil
}

func changed(result sql.Result, op string) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s rows: %w", op, err)
	}
	return affected > 0, nil
}
