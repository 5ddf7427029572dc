package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"helios/api/internal/brief"
	"helios/api/internal/store"
	"helios/api/internal/util"
)

const (
	artifactGenerationFailMessage = "Failed to generate artifacts. Please try again."
	briefNotApprovedMessage       = "Brief must be approved before generating artifacts."
	historyEventLimit             = 20
	isoMillis                     = "2006-01-02T15:04:05.000Z07:00"
)

// GenerateArtifacts produces the planning artifacts for an approved brief.
// A project that already has artifacts gets them back with alreadyExists set.
// Each generated type fails independently; the history artifact is always built.
func (s *Service) GenerateArtifacts(ctx context.Context, projectID string, actor brief.Actor) ([]Artifact, bool, error) {
	project, approved, err := s.requireApprovedBrief(ctx, projectID)
	if err != nil {
		return nil, false, err
	}
	count, err := s.store.CountArtifacts(ctx, project.ID)
	if err != nil {
		return nil, false, s.storeFailure("count artifacts", err)
	}
	if count > 0 {
		existing, err := s.store.ListArtifacts(ctx, project.ID)
		if err != nil {
			return nil, false, s.storeFailure("list artifacts", err)
		}
		return mapSlice(existing, toArtifact), true, nil
	}

	var (
		created       []Artifact
		alreadyExists bool
	)
	err = s.withGenerationLock(ctx, "artifacts", project.ID, func() error {
		existing, err := s.store.ListArtifacts(ctx, project.ID)
		if err != nil {
			return s.storeFailure("list artifacts", err)
		}
		if len(existing) > 0 {
			created, alreadyExists = mapSlice(existing, toArtifact), true
			return nil
		}
		created, err = s.fillArtifacts(ctx, project, approved, nil, actor)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return created, alreadyExists, nil
}

// RegenerateMissingArtifacts fills in artifact types that are absent, for
// example after one type failed to generate. Existing artifacts are untouched.
func (s *Service) RegenerateMissingArtifacts(ctx context.Context, projectID string, actor brief.Actor) ([]Artifact, error) {
	project, approved, err := s.requireApprovedBrief(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if count, err := s.store.CountArtifacts(ctx, project.ID); err != nil {
		return nil, s.storeFailure("count artifacts", err)
	} else if count >= len(brief.AllTypes) {
		return []Artifact{}, nil
	}
	var created []Artifact
	err = s.withGenerationLock(ctx, "artifacts", project.ID, func() error {
		existing, err := s.store.ListArtifacts(ctx, project.ID)
		if err != nil {
			return s.storeFailure("list artifacts", err)
		}
		have := make(map[brief.ArtifactType]bool, len(existing))
		for _, a := range existing {
			have[brief.ArtifactType(a.Type)] = true
		}
		if len(have) == len(brief.AllTypes) {
			created = []Artifact{}
			return nil
		}
		created, err = s.fillArtifacts(ctx, project, approved, have, actor)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) requireApprovedBrief(ctx context.Context, projectID string) (store.Project, store.Brief, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return store.Project{}, store.Brief{}, err
	}
	stored, err := s.store.GetBrief(ctx, project.ID)
	if err != nil {
		if isNotFound(err) {
			return store.Project{}, store.Brief{}, preconditionError(briefNotApprovedMessage)
		}
		return store.Project{}, store.Brief{}, s.storeFailure("get brief", err)
	}
	if !stored.IsApproved {
		return store.Project{}, store.Brief{}, preconditionError(briefNotApprovedMessage)
	}
	return project, stored, nil
}

// fillArtifacts generates every type not in have, stores what succeeded and
// writes one audit entry for the batch. Callers hold the generation lock.
func (s *Service) fillArtifacts(ctx context.Context, project store.Project, approved store.Brief, have map[brief.ArtifactType]bool, actor brief.Actor) ([]Artifact, error) {
	content := briefContent(approved)
	if err := content.Validate(); err != nil {
		return nil, s.storeFailure("load brief content", err)
	}

	var pending []brief.ArtifactType
	for _, kind := range brief.GeneratedTypes {
		if !have[kind] {
			pending = append(pending, kind)
		}
	}
	payloads := s.draftArtifacts(ctx, project.ID, content, pending)

	now := s.timestamp()
	created := make([]Artifact, 0, len(brief.AllTypes))
	for i, kind := range pending {
		if payloads[i] == nil {
			continue
		}
		artifact, err := s.storeArtifact(ctx, project.ID, payloads[i], now)
		if err != nil {
			s.log().Warn("artifact store failed", "project_id", project.ID, "type", kind, "error", err)
			continue
		}
		created = append(created, artifact)
	}

	if !have[brief.ArtifactHistory] {
		history, err := s.buildHistory(ctx, project.ID)
		if err != nil {
			return nil, generationError(artifactGenerationFailMessage, err)
		}
		artifact, err := s.storeArtifact(ctx, project.ID, history, now)
		if err != nil {
			return nil, s.storeFailure("insert history artifact", err)
		}
		created = append(created, artifact)
	}

	types := make([]string, 0, len(created))
	for _, a := range created {
		types = append(types, string(a.Type))
	}
	metadata := map[string]any{"artifactCount": len(created), "types": types}
	if err := s.audit(ctx, project.ID, "Artifacts generated", actor, metadata); err != nil {
		return nil, err
	}
	s.log().Info("artifacts generated", "project_id", project.ID, "types", strings.Join(types, ","))
	return created, nil
}

// draftArtifacts asks the generator for each kind concurrently. The result is
// aligned with kinds; a failed kind leaves a nil payload.
func (s *Service) draftArtifacts(ctx context.Context, projectID string, content brief.Content, kinds []brief.ArtifactType) []brief.Payload {
	payloads := make([]brief.Payload, len(kinds))
	if len(kinds) == 0 {
		return payloads
	}
	if s.generator == nil {
		s.log().Warn("artifact generation skipped", "project_id", projectID, "error", errNoGenerator)
		return payloads
	}

	var g errgroup.Group
	g.SetLimit(len(kinds))
	for i, kind := range kinds {
		g.Go(func() error {
			payload, err := s.generator.DraftArtifact(ctx, kind, content)
			if err == nil && payload != nil {
				// Round trip through the tagged parser so only well-formed payloads are kept.
				var raw json.RawMessage
				if raw, err = brief.MarshalPayload(payload); err == nil {
					payload, err = brief.ParsePayload(kind, raw)
				}
			}
			if err == nil && payload == nil {
				err = errors.New("empty payload")
			}
			if err != nil {
				s.log().Warn("artifact generation failed", "project_id", projectID, "type", kind, "error", err)
				return nil
			}
			payloads[i] = payload
			return nil
		})
	}
	_ = g.Wait()
	return payloads
}

// storeArtifact inserts the payload. When another caller stored the same type
// first, their row is returned instead.
func (s *Service) storeArtifact(ctx context.Context, projectID string, payload brief.Payload, at time.Time) (Artifact, error) {
	raw, err := brief.MarshalPayload(payload)
	if err != nil {
		return Artifact{}, err
	}
	artifact := store.Artifact{
		ID:        util.NewID("art"),
		ProjectID: projectID,
		Type:      string(payload.Type()),
		Content:   store.JSON[json.RawMessage]{V: raw},
		CreatedAt: at,
	}
	if err := s.store.InsertArtifact(ctx, artifact); err != nil {
		if !errors.Is(err, store.ErrAlreadyExists) {
			return Artifact{}, err
		}
		existing, getErr := s.store.GetArtifact(ctx, projectID, artifact.Type)
		if getErr != nil {
			return Artifact{}, getErr
		}
		return toArtifact(existing), nil
	}
	return toArtifact(artifact), nil
}

// buildHistory reshapes the newest change log entries into the history artifact.
func (s *Service) buildHistory(ctx context.Context, projectID string) (*brief.ChangeHistory, error) {
	entries, err := s.store.ListChangeLog(ctx, projectID, historyEventLimit)
	if err != nil {
		return nil, err
	}
	events := make([]brief.HistoryEvent, 0, len(entries))
	for _, entry := range entries {
		events = append(events, brief.HistoryEvent{
			Date:   entry.CreatedAt.UTC().Format(isoMillis),
			Action: entry.Action,
			User:   brief.ActorFrom(entry.ActorKind, entry.ActorName).Name(),
		})
	}
	return &brief.ChangeHistory{Title: brief.ArtifactHistory.Title(), Events: events}, nil
}

func (s *Service) ListArtifacts(ctx context.Context, projectID string) ([]Artifact, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListArtifacts(ctx, project.ID)
	if err != nil {
		return nil, s.storeFailure("list artifacts", err)
	}
	return mapSlice(items, toArtifact), nil
}

func (s *Service) GetArtifact(ctx context.Context, projectID, artifactType string) (Artifact, error) {
	kind, err := brief.ParseArtifactType(artifactType)
	if err != nil {
		return Artifact{}, validationError("Unknown artifact type")
	}
	artifact, err := s.store.GetArtifact(ctx, strings.TrimSpace(projectID), string(kind))
	if err != nil {
		if isNotFound(err) {
			return Artifact{}, notFoundError("Artifact not found")
		}
		return Artifact{}, s.storeFailure("get artifact", err)
	}
	return toArtifact(artifact), nil
}
