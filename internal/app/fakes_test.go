package app

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"helios/api/internal/brief"
	"helios/api/internal/export"
	"helios/api/internal/lock"
	"helios/api/internal/logging"
	"helios/api/internal/objectstore"
	"helios/api/internal/search"
	"helios/api/internal/snapshot"
	"helios/api/internal/store"
)

// fakeStore is an in-memory dataStore. Any xxxFn hook that is set replaces the default behaviour.
type fakeStore struct {
	mu        sync.Mutex
	projects  map[string]store.Project
	intakes   map[string]store.Intake
	briefs    map[string]store.Brief
	artifacts []store.Artifact
	comments  []store.Comment
	requests  []store.ChangeRequest
	changeLog []store.ChangeLogEntry

	pingFn            func(context.Context) error
	insertBriefFn     func(context.Context, store.Brief) error
	insertArtifactFn  func(context.Context, store.Artifact) error
	listChangeLogFn   func(context.Context, string, int) ([]store.ChangeLogEntry, error)
	insertChangeLogFn func(context.Context, store.ChangeLogEntry) error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects: make(map[string]store.Project),
		intakes:  make(map[string]store.Intake),
		briefs:   make(map[string]store.Brief),
	}
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) ListProjectSummaries(context.Context) ([]store.ProjectSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []store.ProjectSummary{}
	for _, p := range f.projects {
		summary := store.ProjectSummary{Project: p}
		if b, ok := f.briefs[p.ID]; ok {
			summary.HasBrief = true
			summary.IsApproved = b.IsApproved
		}
		for _, a := range f.artifacts {
			if a.ProjectID == p.ID {
				summary.ArtifactCount++
			}
		}
		for _, c := range f.comments {
			if c.ProjectID == p.ID {
				summary.CommentCount++
			}
		}
		for _, r := range f.requests {
			if r.ProjectID == p.ID && r.Status == string(brief.RequestPending) {
				summary.PendingChangeRequests++
			}
		}
		items = append(items, summary)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

func (f *fakeStore) GetProject(_ context.Context, id string) (store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) InsertProject(_ context.Context, p store.Project) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[p.ID]; ok {
		return fmt.Errorf("insert project: %w", store.ErrAlreadyExists)
	}
	f.projects[p.ID] = p
	return nil
}

func (f *fakeStore) RenameProject(_ context.Context, id, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Name = name
	f.projects[id] = p
	return nil
}

func (f *fakeStore) UpdateProjectStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = status
	f.projects[id] = p
	return nil
}

func (f *fakeStore) DeleteProject(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.projects, id)
	delete(f.intakes, id)
	delete(f.briefs, id)
	f.artifacts = filterOut(f.artifacts, func(a store.Artifact) bool { return a.ProjectID == id })
	f.comments = filterOut(f.comments, func(c store.Comment) bool { return c.ProjectID == id })
	f.requests = filterOut(f.requests, func(r store.ChangeRequest) bool { return r.ProjectID == id })
	f.changeLog = filterOut(f.changeLog, func(e store.ChangeLogEntry) bool { return e.ProjectID == id })
	return nil
}

func (f *fakeStore) UpsertIntake(_ context.Context, in store.Intake) (store.Intake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.intakes[in.ProjectID]; ok {
		existing.StakeholderDocuments = in.StakeholderDocuments
		existing.BoilerplateLanguage = in.BoilerplateLanguage
		existing.UpdatedAt = in.UpdatedAt
		f.intakes[in.ProjectID] = existing
		return existing, nil
	}
	f.intakes[in.ProjectID] = in
	return in, nil
}

func (f *fakeStore) GetIntake(_ context.Context, projectID string) (store.Intake, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.intakes[projectID]
	if !ok {
		return store.Intake{}, sql.ErrNoRows
	}
	return in, nil
}

func (f *fakeStore) InsertBrief(ctx context.Context, b store.Brief) error {
	if f.insertBriefFn != nil {
		return f.insertBriefFn(ctx, b)
	}
	return f.putBrief(b)
}

func (f *fakeStore) putBrief(b store.Brief) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.briefs[b.ProjectID]; ok {
		return fmt.Errorf("insert brief: %w", store.ErrAlreadyExists)
	}
	b.IsApproved = false
	b.ApprovedAt = nil
	f.briefs[b.ProjectID] = b
	return nil
}

func (f *fakeStore) GetBrief(_ context.Context, projectID string) (store.Brief, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.briefs[projectID]
	if !ok {
		return store.Brief{}, sql.ErrNoRows
	}
	return b, nil
}

func (f *fakeStore) GetBriefByID(_ context.Context, id string) (store.Brief, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.briefs {
		if b.ID == id {
			return b, nil
		}
	}
	return store.Brief{}, sql.ErrNoRows
}

func (f *fakeStore) ApproveBrief(_ context.Context, projectID string, at time.Time, entries []store.ChangeLogEntry) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.briefs[projectID]
	if !ok || b.IsApproved {
		return false, nil
	}
	b.IsApproved = true
	b.ApprovedAt = &at
	b.UpdatedAt = at
	f.briefs[projectID] = b
	p := f.projects[projectID]
	p.Status = string(brief.ProjectApproved)
	f.projects[projectID] = p
	f.changeLog = append(f.changeLog, entries...)
	return true, nil
}

func (f *fakeStore) ListArtifacts(_ context.Context, projectID string) ([]store.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []store.Artifact{}
	for _, a := range f.artifacts {
		if a.ProjectID == projectID {
			items = append(items, a)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.Before(items[j].CreatedAt)
		}
		return typeIndex(items[i].Type) < typeIndex(items[j].Type)
	})
	return items, nil
}

func typeIndex(kind string) int {
	for i, known := range brief.AllTypes {
		if string(known) == kind {
			return i
		}
	}
	return len(brief.AllTypes)
}

func (f *fakeStore) GetArtifact(_ context.Context, projectID, kind string) (store.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.artifacts {
		if a.ProjectID == projectID && a.Type == kind {
			return a, nil
		}
	}
	return store.Artifact{}, sql.ErrNoRows
}

func (f *fakeStore) CountArtifacts(ctx context.Context, projectID string) (int, error) {
	items, err := f.ListArtifacts(ctx, projectID)
	return len(items), err
}

func (f *fakeStore) InsertArtifact(ctx context.Context, a store.Artifact) error {
	if f.insertArtifactFn != nil {
		return f.insertArtifactFn(ctx, a)
	}
	return f.putArtifact(a)
}

func (f *fakeStore) putArtifact(a store.Artifact) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.artifacts {
		if existing.ProjectID == a.ProjectID && existing.Type == a.Type {
			return fmt.Errorf("insert artifact: %w", store.ErrAlreadyExists)
		}
	}
	f.artifacts = append(f.artifacts, a)
	return nil
}

func (f *fakeStore) InsertComment(_ context.Context, c store.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, c)
	return nil
}

func (f *fakeStore) GetComment(_ context.Context, id string) (store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.comments {
		if c.ID == id {
			return c, nil
		}
	}
	return store.Comment{}, sql.ErrNoRows
}

func (f *fakeStore) UpdateCommentText(_ context.Context, id, text string, at time.Time) (store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.comments {
		if c.ID == id {
			c.Text = text
			c.UpdatedAt = at
			f.comments[i] = c
			return c, nil
		}
	}
	return store.Comment{}, sql.ErrNoRows
}

func (f *fakeStore) DeleteComment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.comments)
	f.comments = filterOut(f.comments, func(c store.Comment) bool { return c.ID == id })
	if len(f.comments) == before {
		return sql.ErrNoRows
	}
	return nil
}

func (f *fakeStore) ListComments(_ context.Context, projectID, section string) ([]store.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []store.Comment{}
	for i := len(f.comments) - 1; i >= 0; i-- {
		c := f.comments[i]
		if c.ProjectID == projectID && (section == "" || c.Section == section) {
			items = append(items, c)
		}
	}
	return items, nil
}

func (f *fakeStore) CommentCountsBySection(_ context.Context, projectID string) ([]store.SectionCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int{}
	for _, c := range f.comments {
		if c.ProjectID == projectID {
			counts[c.Section]++
		}
	}
	items := []store.SectionCount{}
	for section, count := range counts {
		items = append(items, store.SectionCount{Section: section, Count: count})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Section < items[j].Section })
	return items, nil
}

func (f *fakeStore) InsertChangeRequest(_ context.Context, r store.ChangeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
	return nil
}

func (f *fakeStore) GetChangeRequest(_ context.Context, id string) (store.ChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.ID == id {
			return r, nil
		}
	}
	return store.ChangeRequest{}, sql.ErrNoRows
}

func (f *fakeStore) ListChangeRequests(_ context.Context, projectID string) ([]store.ChangeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []store.ChangeRequest{}
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].ProjectID == projectID {
			items = append(items, f.requests[i])
		}
	}
	return items, nil
}

func (f *fakeStore) ChangeRequestStats(_ context.Context, projectID string) (store.ChangeRequestStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats store.ChangeRequestStats
	for _, r := range f.requests {
		if r.ProjectID != projectID {
			continue
		}
		stats.Total++
		switch brief.RequestStatus(r.Status) {
		case brief.RequestPending:
			stats.Pending++
		case brief.RequestApproved:
			stats.Approved++
		case brief.RequestRejected:
			stats.Rejected++
		case brief.RequestImplemented:
			stats.Implemented++
		}
		if r.Priority == string(brief.PriorityCritical) {
			stats.Critical++
		}
	}
	return stats, nil
}

func (f *fakeStore) ReviewChangeRequest(_ context.Context, id, status, reviewedBy string, resolution *string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.requests {
		if r.ID != id {
			continue
		}
		if r.Status != string(brief.RequestPending) {
			return false, nil
		}
		r.Status = status
		r.ReviewedBy = &reviewedBy
		r.ReviewedAt = &at
		r.Resolution = resolution
		r.UpdatedAt = at
		f.requests[i] = r
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) MarkChangeRequestImplemented(_ context.Context, id, by string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.requests {
		if r.ID != id {
			continue
		}
		if r.Status != string(brief.RequestApproved) {
			return false, nil
		}
		r.Status = string(brief.RequestImplemented)
		r.ImplementedBy = &by
		r.ImplementedAt = &at
		r.UpdatedAt = at
		f.requests[i] = r
		return true, nil
	}
	return false, nil
}

func (f *fakeStore) DeleteChangeRequest(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.requests)
	f.requests = filterOut(f.requests, func(r store.ChangeRequest) bool { return r.ID == id })
	if len(f.requests) == before {
		return sql.ErrNoRows
	}
	return nil
}

func (f *fakeStore) InsertChangeLog(ctx context.Context, e store.ChangeLogEntry) error {
	if f.insertChangeLogFn != nil {
		return f.insertChangeLogFn(ctx, e)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changeLog = append(f.changeLog, e)
	return nil
}

func (f *fakeStore) ListChangeLog(ctx context.Context, projectID string, limit int) ([]store.ChangeLogEntry, error) {
	if f.listChangeLogFn != nil {
		return f.listChangeLogFn(ctx, projectID, limit)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	items := []store.ChangeLogEntry{}
	for i := len(f.changeLog) - 1; i >= 0; i-- {
		if f.changeLog[i].ProjectID == projectID {
			items = append(items, f.changeLog[i])
		}
	}
	// Newest first by created_at like the SQL query; ties keep reverse insertion order.
	sort.SliceStable(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeStore) ExportRecord(ctx context.Context, projectID string) (store.ExportRecord, error) {
	project, err := f.GetProject(ctx, projectID)
	if err != nil {
		return store.ExportRecord{}, err
	}
	b, err := f.GetBrief(ctx, projectID)
	if err != nil {
		return store.ExportRecord{}, err
	}
	artifacts, _ := f.ListArtifacts(ctx, projectID)
	comments, _ := f.ListComments(ctx, projectID, "")
	return store.ExportRecord{Project: project, Brief: b, Artifacts: artifacts, Comments: comments}, nil
}

// actions lists the project's audit actions oldest first.
func (f *fakeStore) actions(projectID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for _, e := range f.changeLog {
		if e.ProjectID == projectID {
			out = append(out, e.Action)
		}
	}
	return out
}

func (f *fakeStore) lastEntry(projectID string) store.ChangeLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.changeLog) - 1; i >= 0; i-- {
		if f.changeLog[i].ProjectID == projectID {
			return f.changeLog[i]
		}
	}
	return store.ChangeLogEntry{}
}

func filterOut[T any](items []T, drop func(T) bool) []T {
	out := items[:0]
	for _, item := range items {
		if !drop(item) {
			out = append(out, item)
		}
	}
	return out
}

// fakeGenerator returns canned content and counts calls.
type fakeGenerator struct {
	mu            sync.Mutex
	briefCalls    int
	artifactCalls map[brief.ArtifactType]int

	draftBriefFn    func(context.Context, brief.Intake) (brief.Content, error)
	draftArtifactFn func(context.Context, brief.ArtifactType, brief.Content) (brief.Payload, error)
}

func (g *fakeGenerator) Model() string { return "test-model" }

func (g *fakeGenerator) DraftBrief(ctx context.Context, intake brief.Intake) (brief.Content, error) {
	g.mu.Lock()
	g.briefCalls++
	g.mu.Unlock()
	if g.draftBriefFn != nil {
		return g.draftBriefFn(ctx, intake)
	}
	return sampleContent(), nil
}

func (g *fakeGenerator) DraftArtifact(ctx context.Context, kind brief.ArtifactType, content brief.Content) (brief.Payload, error) {
	g.mu.Lock()
	if g.artifactCalls == nil {
		g.artifactCalls = map[brief.ArtifactType]int{}
	}
	g.artifactCalls[kind]++
	g.mu.Unlock()
	if g.draftArtifactFn != nil {
		return g.draftArtifactFn(ctx, kind, content)
	}
	return samplePayload(kind), nil
}

func (g *fakeGenerator) calls() (int, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.artifactCalls {
		total += n
	}
	return g.briefCalls, total
}

func sampleContent() brief.Content {
	return brief.Content{
		Purpose:           "Help prospective students find and apply to degree programs.",
		PrimaryAudience:   "Prospective undergraduate students",
		SecondaryAudience: "Parents and counselors",
		Tone:              "Welcoming and confident",
		Sitemap:           []string{"Home", "Programs", "Admissions", "Contact"},
		Constraints:       []string{"WCAG 2.1 AA compliance", "Webspark 2.0 components only"},
		Assumptions: []brief.Assumption{
			{Text: "Program data comes from the catalog feed", Confidence: brief.ConfidenceHigh},
			{Text: "Launch before fall admissions", Confidence: brief.ConfidenceMedium},
			{Text: "Video content will be supplied", Confidence: brief.ConfidenceLow},
		},
		OpenQuestions: []string{"Who owns program page updates?"},
	}
}

func samplePayload(kind brief.ArtifactType) brief.Payload {
	switch kind {
	case brief.ArtifactContent:
		return &brief.ContentPlan{Title: kind.Title(), Items: []brief.ContentItem{{Page: "Home", Component: "Hero", Rationale: "First impression"}}}
	case brief.ArtifactDesign:
		return &brief.DesignGuide{Title: kind.Title(), Items: []brief.DesignItem{{Type: "Photography", Style: "Candid campus life", Reference: "asu.edu"}}}
	case brief.ArtifactSEO:
		return &brief.SEOResearch{Title: kind.Title(), Keywords: []brief.Keyword{{Term: "online degree", Volume: "High", Difficulty: "Medium"}}, Metadata: "Program-first titles"}
	case brief.ArtifactAssumptions:
		return &brief.AssumptionLog{Title: kind.Title(), Items: []brief.Assumption{{Text: "Catalog feed is stable", Confidence: brief.ConfidenceMedium}}}
	default:
		return nil
	}
}

// lockerFunc adapts a function to lock.Locker.
type lockerFunc func(ctx context.Context, key string) (lock.Release, error)

func (f lockerFunc) Acquire(ctx context.Context, key string) (lock.Release, error) {
	return f(ctx, key)
}

type fakeSnapshots struct {
	mu       sync.Mutex
	records  []string
	tags     []string
	removed  []string
	contents map[string]brief.Content
	recordFn func(string, brief.Content, string, string) (snapshot.Commit, error)
}

func (f *fakeSnapshots) Record(projectID string, content brief.Content, author, message string) (snapshot.Commit, error) {
	if f.recordFn != nil {
		return f.recordFn(projectID, content, author, message)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, projectID+":"+message+":"+author)
	if f.contents == nil {
		f.contents = make(map[string]brief.Content)
	}
	f.contents[projectID+"@abc1234"] = content
	return snapshot.Commit{Hash: "abc1234", Message: message, Author: author}, nil
}

func (f *fakeSnapshots) Read(projectID, revision string) (brief.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if revision == approvedTag {
		for _, tag := range f.tags {
			if tag == projectID+":"+approvedTag {
				revision = "abc1234"
			}
		}
	}
	content, ok := f.contents[projectID+"@"+revision]
	if !ok {
		return brief.Content{}, snapshot.ErrRevisionNotFound
	}
	return content, nil
}

func (f *fakeSnapshots) Tag(projectID, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, projectID+":"+name)
	return nil
}

func (f *fakeSnapshots) History(string, int) ([]snapshot.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	commits := make([]snapshot.Commit, 0, len(f.records))
	for _, r := range f.records {
		commits = append(commits, snapshot.Commit{Message: r})
	}
	return commits, nil
}

func (f *fakeSnapshots) Remove(projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, projectID)
	return nil
}

type fakeSearch struct {
	mu              sync.Mutex
	projects        []search.ProjectRecord
	briefs          []search.BriefRecord
	comments        []search.CommentRecord
	removedComments []string
	removedProjects []string
	response        search.Response
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	resp := f.response
	resp.Query = q.Text
	return resp
}

func (f *fakeSearch) IndexProject(r search.ProjectRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, r)
}

func (f *fakeSearch) IndexBrief(r search.BriefRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.briefs = append(f.briefs, r)
}

func (f *fakeSearch) IndexComment(r search.CommentRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, r)
}

func (f *fakeSearch) RemoveComment(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedComments = append(f.removedComments, id)
}

func (f *fakeSearch) RemoveProject(projectID string, commentIDs []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removedProjects = append(f.removedProjects, projectID)
	f.removedComments = append(f.removedComments, commentIDs...)
}

type fakeArchive struct {
	stored  []string
	storeFn func(context.Context, string, string, string, []byte) (objectstore.Object, error)
}

func (f *fakeArchive) Store(ctx context.Context, projectID, filename, contentType string, body []byte) (objectstore.Object, error) {
	if f.storeFn != nil {
		return f.storeFn(ctx, projectID, filename, contentType, body)
	}
	f.stored = append(f.stored, projectID+"/"+filename)
	return objectstore.Object{Key: "exports/" + projectID + "/" + filename, Size: int64(len(body)), URL: "https://files.example/" + filename}, nil
}

// testClock starts at a fixed instant and advances one second per reading.
func testClock() func() time.Time {
	var mu sync.Mutex
	current := time.Date(2024, 3, 5, 14, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newTestService(st *fakeStore, gen *fakeGenerator) *Service {
	svc := &Service{
		store:   st,
		locks:   lock.NewLocal(),
		exports: export.NewRenderer(export.NewPDFRenderer(time.Second)),
		logger:  logging.Discard(),
		now:     testClock(),
	}
	if gen != nil {
		svc.generator = gen
	}
	return svc
}

// seedProject creates a project with a saved intake.
func seedProject(ctx context.Context, svc *Service, name string) (Project, error) {
	project, err := svc.CreateProject(ctx, name, brief.User("Dana Lee"))
	if err != nil {
		return Project{}, err
	}
	if _, err := svc.SaveIntake(ctx, project.ID, "Stakeholder notes: expand online programs.", "Professional, student-first.", brief.User("Dana Lee")); err != nil {
		return Project{}, err
	}
	return project, nil
}

// seedApprovedProject creates a project whose brief is generated and approved.
func seedApprovedProject(ctx context.Context, svc *Service, name string) (Project, error) {
	project, err := seedProject(ctx, svc, name)
	if err != nil {
		return Project{}, err
	}
	if _, _, err := svc.GenerateBrief(ctx, project.ID, brief.User("Dana Lee")); err != nil {
		return Project{}, err
	}
	if _, _, err := svc.ApproveBrief(ctx, project.ID, brief.User("Morgan Approver")); err != nil {
		return Project{}, err
	}
	return project, nil
}
