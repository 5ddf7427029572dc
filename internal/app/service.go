package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"helios/api/internal/brief"
	"helios/api/internal/config"
	"helios/api/internal/export"
	"helios/api/internal/llm"
	"helios/api/internal/lock"
	"helios/api/internal/logging"
	"helios/api/internal/objectstore"
	"helios/api/internal/search"
	"helios/api/internal/snapshot"
	"helios/api/internal/store"
	"helios/api/internal/util"
)

type dataStore interface {
	Ping(context.Context) error

	ListProjectSummaries(context.Context) ([]store.ProjectSummary, error)
	GetProject(context.Context, string) (store.Project, error)
	InsertProject(context.Context, store.Project) error
	RenameProject(context.Context, string, string) error
	UpdateProjectStatus(context.Context, string, string) error
	DeleteProject(context.Context, string) error

	UpsertIntake(context.Context, store.Intake) (store.Intake, error)
	GetIntake(context.Context, string) (store.Intake, error)

	InsertBrief(context.Context, store.Brief) error
	GetBrief(context.Context, string) (store.Brief, error)
	GetBriefByID(context.Context, string) (store.Brief, error)
	ApproveBrief(context.Context, string, time.Time, []store.ChangeLogEntry) (bool, error)

	ListArtifacts(context.Context, string) ([]store.Artifact, error)
	GetArtifact(context.Context, string, string) (store.Artifact, error)
	CountArtifacts(context.Context, string) (int, error)
	InsertArtifact(context.Context, store.Artifact) error

	InsertComment(context.Context, store.Comment) error
	GetComment(context.Context, string) (store.Comment, error)
	UpdateCommentText(context.Context, string, string, time.Time) (store.Comment, error)
	DeleteComment(context.Context, string) error
	ListComments(context.Context, string, string) ([]store.Comment, error)
	CommentCountsBySection(context.Context, string) ([]store.SectionCount, error)

	InsertChangeRequest(context.Context, store.ChangeRequest) error
	GetChangeRequest(context.Context, string) (store.ChangeRequest, error)
	ListChangeRequests(context.Context, string) ([]store.ChangeRequest, error)
	ChangeRequestStats(context.Context, string) (store.ChangeRequestStats, error)
	ReviewChangeRequest(context.Context, string, string, string, *string, time.Time) (bool, error)
	MarkChangeRequestImplemented(context.Context, string, string, time.Time) (bool, error)
	DeleteChangeRequest(context.Context, string) error

	InsertChangeLog(context.Context, store.ChangeLogEntry) error
	ListChangeLog(context.Context, string, int) ([]store.ChangeLogEntry, error)

	ExportRecord(context.Context, string) (store.ExportRecord, error)
}

// generator drafts briefs and artifacts from text prompts.
type generator interface {
	Model() string
	DraftBrief(context.Context, brief.Intake) (brief.Content, error)
	DraftArtifact(context.Context, brief.ArtifactType, brief.Content) (brief.Payload, error)
}

type snapshotter interface {
	Record(projectID string, content brief.Content, author, message string) (snapshot.Commit, error)
	Tag(projectID, name, message string) error
	History(projectID string, limit int) ([]snapshot.Commit, error)
	Read(projectID, revision string) (brief.Content, error)
	Remove(projectID string) error
}

type searchIndex interface {
	Search(context.Context, search.Query) search.Response
	IndexProject(search.ProjectRecord)
	IndexBrief(search.BriefRecord)
	IndexComment(search.CommentRecord)
	RemoveComment(id string)
	RemoveProject(projectID string, commentIDs []string)
}

type archiver interface {
	Store(ctx context.Context, projectID, filename, contentType string, body []byte) (objectstore.Object, error)
}

type exportRenderer interface {
	Render(ctx context.Context, format export.Format, agg export.Aggregate, at time.Time) (*export.Result, error)
}

type Options struct {
	Config    config.Config
	Store     *store.PostgresStore
	Generator *llm.Client
	Locker    lock.Locker
	Snapshots *snapshot.Service
	Search    *search.Service
	Archive   *objectstore.Archive
	Exports   *export.Renderer
	Logger    *slog.Logger
}

// Service enforces the project, brief and change request lifecycle and writes
// an audit entry for every mutation.
type Service struct {
	cfg       config.Config
	store     dataStore
	generator generator
	locks     lock.Locker
	snapshots snapshotter
	search    searchIndex
	archive   archiver
	exports   exportRenderer
	logger    *slog.Logger
	now       func() time.Time
}

func New(opts Options) *Service {
	svc := &Service{
		cfg:    opts.Config,
		store:  opts.Store,
		locks:  opts.Locker,
		logger: opts.Logger,
		now:    time.Now,
	}
	// Optional collaborators stay nil interfaces when absent.
	if opts.Generator != nil {
		svc.generator = opts.Generator
	}
	if opts.Snapshots != nil {
		svc.snapshots = opts.Snapshots
	}
	if opts.Search != nil {
		svc.search = opts.Search
	}
	if opts.Archive != nil {
		svc.archive = opts.Archive
	}
	if opts.Exports != nil {
		svc.exports = opts.Exports
	} else {
		svc.exports = export.NewRenderer(export.NewPDFRenderer(0))
	}
	if svc.locks == nil {
		svc.locks = lock.NewLocal()
	}
	if svc.logger == nil {
		svc.logger = logging.Component("lifecycle")
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// timestamp is the current time at the precision Postgres stores.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *Service) log() *slog.Logger {
	if s.logger == nil {
		return logging.Discard()
	}
	return s.logger
}

func (s *Service) changeRequestPolicy() string {
	if s.cfg.ChangeRequestsOnApproved == config.ChangeRequestsAllow {
		return config.ChangeRequestsAllow
	}
	return config.ChangeRequestsReject
}

// storeFailure logs the underlying error and returns the generic persistence error.
func (s *Service) storeFailure(op string, err error) error {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	s.log().Error("store operation failed", "op", op, "error", err)
	return persistenceError(fmt.Errorf("%s: %w", op, err))
}

func isNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// requireProject loads the project or returns NotFound.
func (s *Service) requireProject(ctx context.Context, projectID string) (store.Project, error) {
	project, err := s.store.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		if isNotFound(err) {
			return store.Project{}, notFoundError("Project not found")
		}
		return store.Project{}, s.storeFailure("get project", err)
	}
	return project, nil
}

func newChangeLogEntry(projectID, action string, actor brief.Actor, metadata map[string]any, at time.Time) store.ChangeLogEntry {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return store.ChangeLogEntry{
		ID:        util.NewID("log"),
		ProjectID: projectID,
		Action:    action,
		ActorKind: actor.Kind(),
		ActorName: actor.Name(),
		Metadata:  store.JSON[map[string]any]{V: metadata},
		CreatedAt: at,
	}
}

// audit appends one change log entry for projectID.
func (s *Service) audit(ctx context.Context, projectID, action string, actor brief.Actor, metadata map[string]any) error {
	entry := newChangeLogEntry(projectID, action, actor, metadata, s.timestamp())
	if err := s.store.InsertChangeLog(ctx, entry); err != nil {
		return s.storeFailure("insert change log", err)
	}
	return nil
}

// withGenerationLock runs fn while holding the project's generation lock for kind.
func (s *Service) withGenerationLock(ctx context.Context, kind, projectID string, fn func() error) error {
	wait := s.cfg.GenerationLockTTL
	if wait <= 0 {
		wait = 3 * time.Minute
	}
	lockCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	release, err := s.locks.Acquire(lockCtx, "generate:"+kind+":"+projectID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Only a wait that ran out means another caller holds the lock.
		if errors.Is(err, context.DeadlineExceeded) && lockCtx.Err() != nil {
			s.log().Warn("generation lock busy", "kind", kind, "project_id", projectID)
			return preconditionError("Generation is already in progress for this project. Please try again shortly.")
		}
		s.log().Error("generation lock unavailable", "kind", kind, "project_id", projectID, "error", err)
		return persistenceError(fmt.Errorf("acquire generation lock: %w", err))
	}
	defer release()
	return fn()
}

func (s *Service) recordSnapshot(projectID string, content brief.Content, actor brief.Actor, message string) {
	if s.snapshots == nil {
		return
	}
	if _, err := s.snapshots.Record(projectID, content, actor.Name(), message); err != nil {
		s.log().Warn("snapshot record failed", "project_id", projectID, "error", err)
	}
}

func (s *Service) tagSnapshot(projectID, name, message string) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Tag(projectID, name, message); err != nil && !errors.Is(err, snapshot.ErrNoSnapshots) {
		s.log().Warn("snapshot tag failed", "project_id", projectID, "tag", name, "error", err)
	}
}

// Snapshots lists the recorded brief revisions for a project, newest first.
func (s *Service) Snapshots(ctx context.Context, projectID string, limit int) ([]snapshot.Commit, error) {
	if _, err := s.requireProject(ctx, projectID); err != nil {
		return nil, err
	}
	if s.snapshots == nil {
		return []snapshot.Commit{}, nil
	}
	commits, err := s.snapshots.History(projectID, limit)
	if err != nil {
		return nil, s.storeFailure("snapshot history", err)
	}
	return commits, nil
}

// SnapshotContent returns the brief as recorded at revision, a commit hash or
// the approval tag.
func (s *Service) SnapshotContent(ctx context.Context, projectID, revision string) (brief.Content, error) {
	if _, err := s.requireProject(ctx, projectID); err != nil {
		return brief.Content{}, err
	}
	revision = strings.TrimSpace(revision)
	if revision == "" {
		return brief.Content{}, validationError("Revision is required")
	}
	if s.snapshots == nil {
		return brief.Content{}, notFoundError(snapshotNotFoundMessage)
	}
	content, err := s.snapshots.Read(projectID, revision)
	if err != nil {
		if errors.Is(err, snapshot.ErrNoSnapshots) || errors.Is(err, snapshot.ErrRevisionNotFound) {
			return brief.Content{}, notFoundError(snapshotNotFoundMessage)
		}
		return brief.Content{}, s.storeFailure("read snapshot", err)
	}
	return content, nil
}

// Search queries the search backend. Without one it returns an empty response.
func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

func (s *Service) indexProject(p store.Project) {
	if s.search != nil {
		s.search.IndexProject(search.ProjectRecord{ID: p.ID, Name: p.Name, Status: p.Status})
	}
}

func (s *Service) indexBrief(projectName string, b store.Brief) {
	if s.search == nil {
		return
	}
	s.search.IndexBrief(search.BriefRecord{
		ProjectID:   b.ProjectID,
		BriefID:     b.ID,
		ProjectName: projectName,
		Purpose:     b.Purpose,
		Audience:    strings.TrimSpace(b.PrimaryAudience + " " + b.SecondaryAudience),
		Tone:        b.Tone,
		Approved:    b.IsApproved,
	})
}

func (s *Service) indexComment(c store.Comment) {
	if s.search != nil {
		s.search.IndexComment(search.CommentRecord{
			ID:        c.ID,
			ProjectID: c.ProjectID,
			Section:   c.Section,
			Author:    c.Author,
			Text:      c.Text,
		})
	}
}
