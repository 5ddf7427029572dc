package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"helios/api/internal/brief"
	"helios/api/internal/store"
	"helios/api/internal/util"
)

const (
	briefNotFoundMessage       = "Brief not found"
	snapshotNotFoundMessage    = "Snapshot not found"
	briefGenerationFailMessage = "Failed to generate brief. Please try again."
	approvedTag                = "approved"
)

var errNoGenerator = errors.New("text generator is not configured")

// GenerateBrief drafts the project's brief from its intake. When a brief
// already exists it is returned with alreadyExists set and the generator is
// not called.
func (s *Service) GenerateBrief(ctx context.Context, projectID string, actor brief.Actor) (Brief, bool, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return Brief{}, false, err
	}
	if existing, found, err := s.findBrief(ctx, project.ID); err != nil || found {
		return existing, found, err
	}
	intake, err := s.store.GetIntake(ctx, project.ID)
	if err != nil {
		if isNotFound(err) {
			return Brief{}, false, preconditionError(intakeMissingMessage)
		}
		return Brief{}, false, s.storeFailure("get intake", err)
	}

	var (
		result        Brief
		alreadyExists bool
	)
	err = s.withGenerationLock(ctx, "brief", project.ID, func() error {
		// Another caller may have finished while we waited for the lock.
		existing, found, err := s.findBrief(ctx, project.ID)
		if err != nil {
			return err
		}
		if found {
			result, alreadyExists = existing, true
			return nil
		}
		result, alreadyExists, err = s.draftBrief(ctx, project, intake, actor)
		return err
	})
	if err != nil {
		return Brief{}, false, err
	}
	return result, alreadyExists, nil
}

func (s *Service) draftBrief(ctx context.Context, project store.Project, intake store.Intake, actor brief.Actor) (Brief, bool, error) {
	if s.generator == nil {
		return Brief{}, false, generationError(briefGenerationFailMessage, errNoGenerator)
	}
	content, err := s.generator.DraftBrief(ctx, brief.Intake{
		StakeholderDocuments: intake.StakeholderDocuments,
		BoilerplateLanguage:  intake.BoilerplateLanguage,
	})
	if err == nil {
		err = content.Validate()
	}
	if err != nil {
		s.log().Warn("brief generation failed", "project_id", project.ID, "error", err)
		return Brief{}, false, generationError(briefGenerationFailMessage, err)
	}

	stored := storedBrief(util.NewID("brf"), project.ID, content, s.timestamp())
	if err := s.store.InsertBrief(ctx, stored); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			existing, found, findErr := s.findBrief(ctx, project.ID)
			if findErr != nil {
				return Brief{}, false, findErr
			}
			if found {
				return existing, true, nil
			}
		}
		return Brief{}, false, s.storeFailure("insert brief", err)
	}

	metadata := map[string]any{
		"model":         s.generator.Model(),
		"sitemapPages":  len(content.Sitemap),
		"constraints":   len(content.Constraints),
		"assumptions":   len(content.Assumptions),
		"openQuestions": len(content.OpenQuestions),
	}
	if err := s.audit(ctx, project.ID, "Brief generated via AI", actor, metadata); err != nil {
		return Brief{}, false, err
	}
	s.recordSnapshot(project.ID, content, actor, "Brief generated via AI")
	s.indexBrief(project.Name, stored)
	s.log().Info("brief generated", "project_id", project.ID, "brief_id", stored.ID)
	return toBrief(stored), false, nil
}

// findBrief reports whether the project has a brief, without treating absence as an error.
func (s *Service) findBrief(ctx context.Context, projectID string) (Brief, bool, error) {
	stored, err := s.store.GetBrief(ctx, projectID)
	if err != nil {
		if isNotFound(err) {
			return Brief{}, false, nil
		}
		return Brief{}, false, s.storeFailure("get brief", err)
	}
	return toBrief(stored), true, nil
}

func (s *Service) GetBrief(ctx context.Context, projectID string) (Brief, error) {
	found, ok, err := s.findBrief(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return Brief{}, err
	}
	if !ok {
		return Brief{}, notFoundError(briefNotFoundMessage)
	}
	return found, nil
}

// ApproveBrief locks the brief and marks the project approved. Approval is
// permanent; approving again changes nothing and reports alreadyExists.
func (s *Service) ApproveBrief(ctx context.Context, projectID string, actor brief.Actor) (Brief, bool, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return Brief{}, false, err
	}
	stored, err := s.store.GetBrief(ctx, project.ID)
	if err != nil {
		if isNotFound(err) {
			return Brief{}, false, notFoundError(briefNotFoundMessage)
		}
		return Brief{}, false, s.storeFailure("get brief", err)
	}
	if stored.IsApproved {
		return toBrief(stored), true, nil
	}

	now := s.timestamp()
	// The status entry sorts after the approval entry in the newest-first log.
	entries := []store.ChangeLogEntry{
		newChangeLogEntry(project.ID, "Brief approved", actor, map[string]any{"briefId": stored.ID}, now),
		newChangeLogEntry(project.ID, "Project status changed to approved", actor, map[string]any{
			"status":         string(brief.ProjectApproved),
			"previousStatus": project.Status,
		}, now.Add(time.Microsecond)),
	}
	approved, err := s.store.ApproveBrief(ctx, project.ID, now, entries)
	if err != nil {
		return Brief{}, false, s.storeFailure("approve brief", err)
	}
	if !approved {
		// A concurrent approval won; report what it stored.
		current, _, err := s.findBrief(ctx, project.ID)
		if err != nil {
			return Brief{}, false, err
		}
		return current, true, nil
	}

	stored.IsApproved = true
	stored.ApprovedAt = &now
	stored.UpdatedAt = now
	project.Status = string(brief.ProjectApproved)

	s.tagSnapshot(project.ID, approvedTag, fmt.Sprintf("Brief approved by %s", actor.Name()))
	s.indexProject(project)
	s.indexBrief(project.Name, stored)
	s.log().Info("brief approved", "project_id", project.ID, "brief_id", stored.ID, "actor", actor.Name())
	return toBrief(stored), false, nil
}
