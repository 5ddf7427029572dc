package app

import (
	"context"
	"strings"

	"helios/api/internal/brief"
	"helios/api/internal/store"
	"helios/api/internal/util"
)

const intakeMissingMessage = "Intake data not found. Please complete the stakeholder intake first."

// SaveIntake upserts the stakeholder intake. Every call is audited, including
// saves that leave the text unchanged.
func (s *Service) SaveIntake(ctx context.Context, projectID, documents, boilerplate string, actor brief.Actor) (Intake, error) {
	documents = strings.TrimSpace(documents)
	boilerplate = strings.TrimSpace(boilerplate)
	if documents == "" || boilerplate == "" {
		return Intake{}, validationError("Both stakeholder documents and boilerplate language are required")
	}
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return Intake{}, err
	}

	now := s.timestamp()
	saved, err := s.store.UpsertIntake(ctx, store.Intake{
		ID:                   util.NewID("int"),
		ProjectID:            project.ID,
		StakeholderDocuments: documents,
		BoilerplateLanguage:  boilerplate,
		CreatedAt:            now,
		UpdatedAt:            now,
	})
	if err != nil {
		return Intake{}, s.storeFailure("upsert intake", err)
	}
	metadata := map[string]any{
		"documentsLength":   len([]rune(documents)),
		"boilerplateLength": len([]rune(boilerplate)),
	}
	if err := s.audit(ctx, project.ID, "Intake data saved", actor, metadata); err != nil {
		return Intake{}, err
	}
	return toIntake(saved), nil
}

func (s *Service) GetIntake(ctx context.Context, projectID string) (Intake, error) {
	intake, err := s.store.GetIntake(ctx, strings.TrimSpace(projectID))
	if err != nil {
		if isNotFound(err) {
			return Intake{}, notFoundError(intakeMissingMessage)
		}
		return Intake{}, s.storeFailure("get intake", err)
	}
	return toIntake(intake), nil
}
