package app

import (
	"context"
	"fmt"
	"strings"

	"helios/api/internal/brief"
	"helios/api/internal/store"
	"helios/api/internal/util"
)

const recentChangeLogLimit = 20

func (s *Service) ListProjects(ctx context.Context) ([]ProjectSummary, error) {
	items, err := s.store.ListProjectSummaries(ctx)
	if err != nil {
		return nil, s.storeFailure("list projects", err)
	}
	return mapSlice(items, toProjectSummary), nil
}

func (s *Service) CreateProject(ctx context.Context, name string, actor brief.Actor) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, validationError("Project name cannot be empty")
	}
	now := s.timestamp()
	project := store.Project{
		ID:        util.NewID("prj"),
		Name:      name,
		Status:    string(brief.ProjectDraft),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertProject(ctx, project); err != nil {
		return Project{}, s.storeFailure("insert project", err)
	}
	if err := s.audit(ctx, project.ID, "Project created", actor, map[string]any{"name": name}); err != nil {
		return Project{}, err
	}
	s.indexProject(project)
	return toProject(project), nil
}

// GetProject returns the project with its intake, brief, artifacts, comments,
// change requests and most recent change log entries.
func (s *Service) GetProject(ctx context.Context, projectID string) (ProjectDetail, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return ProjectDetail{}, err
	}
	detail := ProjectDetail{Project: toProject(project)}

	intake, err := s.store.GetIntake(ctx, project.ID)
	switch {
	case err == nil:
		view := toIntake(intake)
		detail.Intake = &view
	case !isNotFound(err):
		return ProjectDetail{}, s.storeFailure("get intake", err)
	}

	stored, err := s.store.GetBrief(ctx, project.ID)
	switch {
	case err == nil:
		view := toBrief(stored)
		detail.Brief = &view
	case !isNotFound(err):
		return ProjectDetail{}, s.storeFailure("get brief", err)
	}

	artifacts, err := s.store.ListArtifacts(ctx, project.ID)
	if err != nil {
		return ProjectDetail{}, s.storeFailure("list artifacts", err)
	}
	comments, err := s.store.ListComments(ctx, project.ID, "")
	if err != nil {
		return ProjectDetail{}, s.storeFailure("list comments", err)
	}
	requests, err := s.store.ListChangeRequests(ctx, project.ID)
	if err != nil {
		return ProjectDetail{}, s.storeFailure("list change requests", err)
	}
	entries, err := s.store.ListChangeLog(ctx, project.ID, recentChangeLogLimit)
	if err != nil {
		return ProjectDetail{}, s.storeFailure("list change log", err)
	}
	detail.Artifacts = mapSlice(artifacts, toArtifact)
	detail.Comments = mapSlice(comments, toComment)
	detail.ChangeRequests = mapSlice(requests, toChangeRequest)
	detail.ChangeLog = mapSlice(entries, toChangeLogEntry)
	return detail, nil
}

func (s *Service) RenameProject(ctx context.Context, projectID, name string, actor brief.Actor) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, validationError("Project name cannot be empty")
	}
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if err := s.store.RenameProject(ctx, project.ID, name); err != nil {
		if isNotFound(err) {
			return Project{}, notFoundError("Project not found")
		}
		return Project{}, s.storeFailure("rename project", err)
	}
	if err := s.audit(ctx, project.ID, "Project renamed", actor, map[string]any{"name": name, "previousName": project.Name}); err != nil {
		return Project{}, err
	}
	project.Name = name
	project.UpdatedAt = s.timestamp()
	s.indexProject(project)
	return toProject(project), nil
}

// UpdateProjectStatus sets the status directly. An approved project keeps its
// approved brief; moving it back to draft does not unlock the brief.
func (s *Service) UpdateProjectStatus(ctx context.Context, projectID, status string, actor brief.Actor) (Project, error) {
	parsed, err := brief.ParseProjectStatus(status)
	if err != nil {
		return Project{}, validationError("Status must be draft or approved")
	}
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return Project{}, err
	}
	if err := s.store.UpdateProjectStatus(ctx, project.ID, string(parsed)); err != nil {
		if isNotFound(err) {
			return Project{}, notFoundError("Project not found")
		}
		return Project{}, s.storeFailure("update project status", err)
	}
	action := fmt.Sprintf("Project status changed to %s", parsed)
	if err := s.audit(ctx, project.ID, action, actor, map[string]any{"status": string(parsed), "previousStatus": project.Status}); err != nil {
		return Project{}, err
	}
	project.Status = string(parsed)
	project.UpdatedAt = s.timestamp()
	s.indexProject(project)
	return toProject(project), nil
}

// DeleteProject hard-deletes the project; the database cascades to every owned row.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return err
	}
	comments, err := s.store.ListComments(ctx, project.ID, "")
	if err != nil {
		return s.storeFailure("list comments", err)
	}
	if err := s.store.DeleteProject(ctx, project.ID); err != nil {
		if isNotFound(err) {
			return notFoundError("Project not found")
		}
		return s.storeFailure("delete project", err)
	}
	if s.search != nil {
		ids := make([]string, 0, len(comments))
		for _, c := range comments {
			ids = append(ids, c.ID)
		}
		s.search.RemoveProject(project.ID, ids)
	}
	if s.snapshots != nil {
		if err := s.snapshots.Remove(project.ID); err != nil {
			s.log().Warn("snapshot removal failed", "project_id", project.ID, "error", err)
		}
	}
	s.log().Info("project deleted", "project_id", project.ID)
	return nil
}

// ListChangeLog returns the project's audit trail, newest first.
func (s *Service) ListChangeLog(ctx context.Context, projectID string, limit int) ([]ChangeLogEntry, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListChangeLog(ctx, project.ID, limit)
	if err != nil {
		return nil, s.storeFailure("list change log", err)
	}
	return mapSlice(entries, toChangeLogEntry), nil
}
