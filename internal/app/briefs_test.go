package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"helios/api/internal/brief"
	"helios/api/internal/lock"
	"helios/api/internal/store"
)

func requireKind(t *testing.T, err error, kind ErrorKind) *DomainError {
	t.Helper()
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected %s domain error, got %v", kind, err)
	}
	if domainErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%s)", kind, domainErr.Kind, domainErr.Message)
	}
	return domainErr
}

func TestGenerateBriefStoresAndAudits(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	gen := &fakeGenerator{}
	svc := newTestService(st, gen)
	snaps := &fakeSnapshots{}
	idx := &fakeSearch{}
	svc.snapshots = snaps
	svc.search = idx

	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, alreadyExists, err := svc.GenerateBrief(ctx, project.ID, brief.User("Dana Lee"))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if alreadyExists {
		t.Fatalf("first generation should not report alreadyExists")
	}
	if got.IsApproved || got.Purpose == "" || len(got.Sitemap) != 4 {
		t.Fatalf("unexpected brief: %+v", got)
	}

	entry := st.lastEntry(project.ID)
	if entry.Action != "Brief generated via AI" || entry.ActorName != "Dana Lee" {
		t.Fatalf("unexpected audit entry: %+v", entry)
	}
	if entry.Metadata.V["model"] != "test-model" || entry.Metadata.V["sitemapPages"] != 4 {
		t.Fatalf("unexpected audit metadata: %+v", entry.Metadata.V)
	}
	if len(snaps.records) != 1 {
		t.Fatalf("expected one snapshot, got %v", snaps.records)
	}
	if len(idx.briefs) != 1 || idx.briefs[0].ProjectName != "Acme Redesign" {
		t.Fatalf("expected brief to be indexed, got %+v", idx.briefs)
	}
}

func TestGenerateBriefIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	gen := &fakeGenerator{}
	svc := newTestService(st, gen)

	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	first, _, err := svc.GenerateBrief(ctx, project.ID, brief.System)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	entries := len(st.actions(project.ID))

	second, alreadyExists, err := svc.GenerateBrief(ctx, project.ID, brief.System)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if !alreadyExists {
		t.Fatalf("expected alreadyExists on second call")
	}
	if second.ID != first.ID {
		t.Fatalf("expected the stored brief %s, got %s", first.ID, second.ID)
	}
	if briefCalls, _ := gen.calls(); briefCalls != 1 {
		t.Fatalf("expected one generator call, got %d", briefCalls)
	}
	if got := len(st.actions(project.ID)); got != entries {
		t.Fatalf("second call wrote %d audit entries", got-entries)
	}
}

func TestGenerateBriefConcurrentCallsGenerateOnce(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	gen := &fakeGenerator{}
	svc := newTestService(st, gen)

	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	const callers = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     = map[string]bool{}
		created int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, alreadyExists, err := svc.GenerateBrief(ctx, project.ID, brief.System)
			if err != nil {
				t.Errorf("generate: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[got.ID] = true
			if !alreadyExists {
				created++
			}
		}()
	}
	wg.Wait()

	if briefCalls, _ := gen.calls(); briefCalls != 1 {
		t.Fatalf("expected one generator call, got %d", briefCalls)
	}
	if created != 1 || len(ids) != 1 {
		t.Fatalf("expected one created brief shared by all callers, created=%d ids=%v", created, ids)
	}
}

func TestGenerateBriefReturnsRowStoredByConcurrentWriter(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc := newTestService(st, &fakeGenerator{})

	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	winner := storedBrief("brf_winner", project.ID, sampleContent(), svc.timestamp())
	st.insertBriefFn = func(_ context.Context, _ store.Brief) error {
		if err := st.putBrief(winner); err != nil {
			return err
		}
		return store.ErrAlreadyExists
	}

	got, alreadyExists, err := svc.GenerateBrief(ctx, project.ID, brief.System)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !alreadyExists || got.ID != "brf_winner" {
		t.Fatalf("expected the concurrent writer's brief, got %s alreadyExists=%v", got.ID, alreadyExists)
	}
}

func TestGenerateBriefRequiresIntake(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	gen := &fakeGenerator{}
	svc := newTestService(st, gen)

	project, err := svc.CreateProject(ctx, "No Intake", brief.System)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, _, err = svc.GenerateBrief(ctx, project.ID, brief.System)
	domainErr := requireKind(t, err, KindPrecondition)
	if domainErr.Message != intakeMissingMessage {
		t.Fatalf("unexpected message %q", domainErr.Message)
	}
	if briefCalls, _ := gen.calls(); briefCalls != 0 {
		t.Fatalf("generator should not be called without intake")
	}
}

func TestGenerateBriefUnknownProject(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeGenerator{})
	_, _, err := svc.GenerateBrief(context.Background(), "prj_missing", brief.System)
	requireKind(t, err, KindNotFound)
}

func TestGenerateBriefRejectsInvalidOutput(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	gen := &fakeGenerator{draftBriefFn: func(context.Context, brief.Intake) (brief.Content, error) {
		content := sampleContent()
		content.Assumptions[0].Confidence = "certain"
		return content, nil
	}}
	svc := newTestService(st, gen)

	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := len(st.actions(project.ID))
	_, _, err = svc.GenerateBrief(ctx, project.ID, brief.System)
	domainErr := requireKind(t, err, KindGeneration)
	if domainErr.Message != briefGenerationFailMessage {
		t.Fatalf("unexpected message %q", domainErr.Message)
	}
	if _, err := st.GetBrief(ctx, project.ID); err == nil {
		t.Fatalf("no brief should be stored after a generation failure")
	}
	if len(st.actions(project.ID)) != before {
		t.Fatalf("no audit entry should be written after a generation failure")
	}
}

func TestGenerateBriefWithoutGenerator(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeStore(), nil)
	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, _, err = svc.GenerateBrief(ctx, project.ID, brief.System)
	requireKind(t, err, KindGeneration)
}

func TestApproveBriefLocksProject(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc := newTestService(st, &fakeGenerator{})
	snaps := &fakeSnapshots{}
	svc.snapshots = snaps

	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := svc.GenerateBrief(ctx, project.ID, brief.System); err != nil {
		t.Fatalf("generate: %v", err)
	}

	approved, alreadyExists, err := svc.ApproveBrief(ctx, project.ID, brief.User("Morgan Approver"))
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if alreadyExists || !approved.IsApproved || approved.ApprovedAt == nil {
		t.Fatalf("unexpected approval result: %+v alreadyExists=%v", approved, alreadyExists)
	}
	stored, _ := st.GetProject(ctx, project.ID)
	if stored.Status != string(brief.ProjectApproved) {
		t.Fatalf("expected project status approved, got %s", stored.Status)
	}

	actions := st.actions(project.ID)
	tail := actions[len(actions)-2:]
	if tail[0] != "Brief approved" || tail[1] != "Project status changed to approved" {
		t.Fatalf("unexpected audit tail: %v", tail)
	}
	entry := st.lastEntry(project.ID)
	if entry.ActorName != "Morgan Approver" || entry.Metadata.V["previousStatus"] != "draft" {
		t.Fatalf("unexpected status audit entry: %+v", entry)
	}
	if len(snaps.tags) != 1 || snaps.tags[0] != project.ID+":approved" {
		t.Fatalf("expected approved tag, got %v", snaps.tags)
	}
}

func TestApproveBriefAuditEntriesHaveDistinctTimes(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc := newTestService(st, &fakeGenerator{})
	frozen := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return frozen }

	project, err := seedApprovedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	entries, err := svc.ListChangeLog(ctx, project.ID, 2)
	if err != nil {
		t.Fatalf("list change log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].Action != "Project status changed to approved" || entries[1].Action != "Brief approved" {
		t.Fatalf("unexpected newest entries: %q, %q", entries[0].Action, entries[1].Action)
	}
	if !entries[0].CreatedAt.After(entries[1].CreatedAt) {
		t.Fatalf("status entry should be later than approval: %v vs %v", entries[0].CreatedAt, entries[1].CreatedAt)
	}
	if !entries[1].CreatedAt.Equal(frozen) {
		t.Fatalf("approval entry should carry the approval time, got %v", entries[1].CreatedAt)
	}
}

func TestApproveBriefTwiceIsNoOp(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc := newTestService(st, &fakeGenerator{})

	project, err := seedApprovedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	first, _ := st.GetBrief(ctx, project.ID)
	entries := len(st.actions(project.ID))

	again, alreadyExists, err := svc.ApproveBrief(ctx, project.ID, brief.User("Someone Else"))
	if err != nil {
		t.Fatalf("approve again: %v", err)
	}
	if !alreadyExists {
		t.Fatalf("expected alreadyExists on second approval")
	}
	if again.ApprovedAt == nil || !again.ApprovedAt.Equal(*first.ApprovedAt) {
		t.Fatalf("approvedAt changed: %v vs %v", again.ApprovedAt, first.ApprovedAt)
	}
	if got := len(st.actions(project.ID)); got != entries {
		t.Fatalf("second approval wrote %d audit entries", got-entries)
	}
}

func TestApproveBriefWithoutBrief(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeStore(), &fakeGenerator{})
	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, _, err = svc.ApproveBrief(ctx, project.ID, brief.System)
	domainErr := requireKind(t, err, KindNotFound)
	if domainErr.Message != briefNotFoundMessage {
		t.Fatalf("unexpected message %q", domainErr.Message)
	}
}

func TestAuditFailureSurfacesAsPersistenceError(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	svc := newTestService(st, &fakeGenerator{})
	st.insertChangeLogFn = func(context.Context, store.ChangeLogEntry) error {
		return errors.New("connection reset")
	}
	_, err := svc.CreateProject(ctx, "Acme Redesign", brief.System)
	domainErr := requireKind(t, err, KindPersistence)
	if domainErr.Status != 500 || domainErr.Code != "PERSISTENCE_ERROR" {
		t.Fatalf("unexpected error: %+v", domainErr)
	}
}

func TestSnapshotContentReadsRecordedRevisions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeStore(), &fakeGenerator{})
	snaps := &fakeSnapshots{}
	svc.snapshots = snaps

	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err = svc.SnapshotContent(ctx, project.ID, "approved")
	domainErr := requireKind(t, err, KindNotFound)
	if domainErr.Message != snapshotNotFoundMessage {
		t.Fatalf("unexpected message %q", domainErr.Message)
	}
	_, err = svc.SnapshotContent(ctx, project.ID, "  ")
	requireKind(t, err, KindValidation)

	if _, _, err := svc.GenerateBrief(ctx, project.ID, brief.System); err != nil {
		t.Fatalf("generate: %v", err)
	}
	content, err := svc.SnapshotContent(ctx, project.ID, "abc1234")
	if err != nil {
		t.Fatalf("read by hash: %v", err)
	}
	if content.Purpose != sampleContent().Purpose {
		t.Fatalf("unexpected snapshot content: %+v", content)
	}

	if _, _, err := svc.ApproveBrief(ctx, project.ID, brief.User("Morgan Approver")); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := svc.SnapshotContent(ctx, project.ID, "approved"); err != nil {
		t.Fatalf("read approved tag: %v", err)
	}

	_, err = svc.SnapshotContent(ctx, "prj_missing", "approved")
	requireKind(t, err, KindNotFound)

	svc.snapshots = nil
	_, err = svc.SnapshotContent(ctx, project.ID, "approved")
	requireKind(t, err, KindNotFound)
}

func TestGenerationLockBackendFailureIsPersistenceError(t *testing.T) {
	ctx := context.Background()
	st := newFakeStore()
	gen := &fakeGenerator{}
	svc := newTestService(st, gen)

	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	outage := errors.New("dial tcp 127.0.0.1:6379: connect: connection refused")
	svc.locks = lockerFunc(func(context.Context, string) (lock.Release, error) {
		return nil, outage
	})

	_, _, err = svc.GenerateBrief(ctx, project.ID, brief.System)
	domainErr := requireKind(t, err, KindPersistence)
	if domainErr.Status != 500 || !errors.Is(err, outage) {
		t.Fatalf("unexpected error: %+v", domainErr)
	}
	if briefCalls, _ := gen.calls(); briefCalls != 0 {
		t.Fatalf("generator must not run without the lock")
	}
}

func TestGenerationLockContentionIsPrecondition(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newFakeStore(), &fakeGenerator{})
	svc.cfg.GenerationLockTTL = 20 * time.Millisecond

	project, err := seedProject(ctx, svc, "Acme Redesign")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	release, err := svc.locks.Acquire(ctx, "generate:brief:"+project.ID)
	if err != nil {
		t.Fatalf("hold lock: %v", err)
	}
	defer release()

	_, _, err = svc.GenerateBrief(ctx, project.ID, brief.System)
	domainErr := requireKind(t, err, KindPrecondition)
	if domainErr.Status != 409 {
		t.Fatalf("unexpected status %d", domainErr.Status)
	}
}
