package app

import (
	"context"
	"fmt"
	"strings"

	"helios/api/internal/brief"
	"helios/api/internal/config"
	"helios/api/internal/store"
	"helios/api/internal/util"
)

const changeRequestNotFoundMessage = "Change request not found"

type ChangeRequestInput struct {
	// BriefID may be blank, meaning the project's current brief.
	BriefID   string   `json:"briefId"`
	Requester string   `json:"requester"`
	Sections  []string `json:"sections"`
	Feedback  string   `json:"feedback"`
	Priority  string   `json:"priority"`
}

func (s *Service) CreateChangeRequest(ctx context.Context, projectID string, input ChangeRequestInput) (ChangeRequest, error) {
	requester := strings.TrimSpace(input.Requester)
	feedback := strings.TrimSpace(input.Feedback)
	sections := cleanSections(input.Sections)
	if requester == "" || feedback == "" || len(sections) == 0 {
		return ChangeRequest{}, validationError("Requester, feedback, and at least one section are required")
	}
	priority, err := brief.ParsePriority(input.Priority)
	if err != nil {
		return ChangeRequest{}, validationError("Priority must be one of low, normal, high, or critical")
	}

	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return ChangeRequest{}, err
	}
	target, err := s.briefForChangeRequest(ctx, project.ID, strings.TrimSpace(input.BriefID))
	if err != nil {
		return ChangeRequest{}, err
	}
	if target.IsApproved && s.changeRequestPolicy() == config.ChangeRequestsReject {
		return ChangeRequest{}, preconditionError("Cannot request changes to an approved brief")
	}

	now := s.timestamp()
	request := store.ChangeRequest{
		ID:        util.NewID("chg"),
		ProjectID: project.ID,
		BriefID:   target.ID,
		Requester: requester,
		Sections:  store.JSON[[]string]{V: sections},
		Feedback:  feedback,
		Priority:  string(priority),
		Status:    string(brief.RequestPending),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.InsertChangeRequest(ctx, request); err != nil {
		return ChangeRequest{}, s.storeFailure("insert change request", err)
	}
	metadata := map[string]any{
		"requestId": request.ID,
		"sections":  sections,
		"priority":  string(priority),
	}
	if err := s.audit(ctx, project.ID, "Change request submitted", brief.User(requester), metadata); err != nil {
		return ChangeRequest{}, err
	}
	return toChangeRequest(request), nil
}

func (s *Service) briefForChangeRequest(ctx context.Context, projectID, briefID string) (store.Brief, error) {
	var (
		target store.Brief
		err    error
	)
	if briefID == "" {
		target, err = s.store.GetBrief(ctx, projectID)
	} else {
		target, err = s.store.GetBriefByID(ctx, briefID)
	}
	if err != nil {
		if isNotFound(err) {
			return store.Brief{}, notFoundError(briefNotFoundMessage)
		}
		return store.Brief{}, s.storeFailure("get brief", err)
	}
	if target.ProjectID != projectID {
		return store.Brief{}, notFoundError(briefNotFoundMessage)
	}
	return target, nil
}

func (s *Service) ListChangeRequests(ctx context.Context, projectID string) ([]ChangeRequest, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.ListChangeRequests(ctx, project.ID)
	if err != nil {
		return nil, s.storeFailure("list change requests", err)
	}
	return mapSlice(items, toChangeRequest), nil
}

func (s *Service) ChangeRequestStats(ctx context.Context, projectID string) (store.ChangeRequestStats, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return store.ChangeRequestStats{}, err
	}
	stats, err := s.store.ChangeRequestStats(ctx, project.ID)
	if err != nil {
		return store.ChangeRequestStats{}, s.storeFailure("change request stats", err)
	}
	return stats, nil
}

// ReviewChangeRequest approves or rejects a pending request. A request is
// reviewed once; later reviews fail without changing it.
func (s *Service) ReviewChangeRequest(ctx context.Context, requestID, status, reviewedBy, resolution string) (ChangeRequest, error) {
	decision, err := brief.ParseReviewDecision(status)
	if err != nil {
		return ChangeRequest{}, validationError("Status must be approved or rejected")
	}
	reviewer := strings.TrimSpace(reviewedBy)
	if reviewer == "" {
		return ChangeRequest{}, validationError("Reviewer name is required")
	}
	request, err := s.requireChangeRequest(ctx, requestID)
	if err != nil {
		return ChangeRequest{}, err
	}
	if !brief.RequestStatus(request.Status).CanTransition(decision) {
		return ChangeRequest{}, preconditionError(fmt.Sprintf("Change request has already been %s", request.Status))
	}

	var note *string
	if trimmed := strings.TrimSpace(resolution); trimmed != "" {
		note = &trimmed
	}
	now := s.timestamp()
	updated, err := s.store.ReviewChangeRequest(ctx, request.ID, string(decision), reviewer, note, now)
	if err != nil {
		return ChangeRequest{}, s.storeFailure("review change request", err)
	}
	if !updated {
		return ChangeRequest{}, preconditionError("Change request has already been reviewed")
	}

	metadata := map[string]any{
		"requestId":         request.ID,
		"originalRequester": request.Requester,
	}
	if note != nil {
		metadata["resolution"] = *note
	}
	action := fmt.Sprintf("Change request %s", decision)
	if err := s.audit(ctx, request.ProjectID, action, brief.User(reviewer), metadata); err != nil {
		return ChangeRequest{}, err
	}

	request.Status = string(decision)
	request.ReviewedBy = &reviewer
	request.ReviewedAt = &now
	request.Resolution = note
	request.UpdatedAt = now
	return toChangeRequest(request), nil
}

// MarkImplemented closes an approved request.
func (s *Service) MarkImplemented(ctx context.Context, requestID, implementedBy string) (ChangeRequest, error) {
	implementer := strings.TrimSpace(implementedBy)
	if implementer == "" {
		return ChangeRequest{}, validationError("Implementer name is required")
	}
	request, err := s.requireChangeRequest(ctx, requestID)
	if err != nil {
		return ChangeRequest{}, err
	}
	if !brief.RequestStatus(request.Status).CanTransition(brief.RequestImplemented) {
		return ChangeRequest{}, preconditionError("Only approved change requests can be marked as implemented")
	}

	now := s.timestamp()
	updated, err := s.store.MarkChangeRequestImplemented(ctx, request.ID, implementer, now)
	if err != nil {
		return ChangeRequest{}, s.storeFailure("mark change request implemented", err)
	}
	if !updated {
		return ChangeRequest{}, preconditionError("Only approved change requests can be marked as implemented")
	}
	if err := s.audit(ctx, request.ProjectID, "Change request implemented", brief.User(implementer), map[string]any{"requestId": request.ID}); err != nil {
		return ChangeRequest{}, err
	}

	request.Status = string(brief.RequestImplemented)
	request.ImplementedBy = &implementer
	request.ImplementedAt = &now
	request.UpdatedAt = now
	return toChangeRequest(request), nil
}

// DeleteChangeRequest removes a request in any state. The audit entry keeps
// the id and requester so the trail survives the row.
func (s *Service) DeleteChangeRequest(ctx context.Context, requestID string) error {
	request, err := s.requireChangeRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteChangeRequest(ctx, request.ID); err != nil {
		if isNotFound(err) {
			return notFoundError(changeRequestNotFoundMessage)
		}
		return s.storeFailure("delete change request", err)
	}
	metadata := map[string]any{
		"requestId": request.ID,
		"requester": request.Requester,
	}
	return s.audit(ctx, request.ProjectID, "Change request deleted", brief.System, metadata)
}

func (s *Service) requireChangeRequest(ctx context.Context, requestID string) (store.ChangeRequest, error) {
	request, err := s.store.GetChangeRequest(ctx, strings.TrimSpace(requestID))
	if err != nil {
		if isNotFound(err) {
			return store.ChangeRequest{}, notFoundError(changeRequestNotFoundMessage)
		}
		return store.ChangeRequest{}, s.storeFailure("get change request", err)
	}
	return request, nil
}

// cleanSections trims names and drops blanks and repeats, keeping first-seen order.
func cleanSections(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
