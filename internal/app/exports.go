package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"helios/api/internal/brief"
	"helios/api/internal/export"
	"helios/api/internal/store"
)

const exportBriefMissingMessage = "No brief found for this project"

// GetExportData loads the project, brief, artifacts and comments in one
// consistent read. It writes nothing.
func (s *Service) GetExportData(ctx context.Context, projectID string) (export.Aggregate, error) {
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return export.Aggregate{}, err
	}
	record, err := s.store.ExportRecord(ctx, project.ID)
	if err != nil {
		if isNotFound(err) {
			return export.Aggregate{}, notFoundError(exportBriefMissingMessage)
		}
		return export.Aggregate{}, s.storeFailure("load export record", err)
	}
	return s.aggregate(record)
}

func (s *Service) aggregate(record store.ExportRecord) (export.Aggregate, error) {
	content := briefContent(record.Brief)
	if err := content.Validate(); err != nil {
		return export.Aggregate{}, s.storeFailure("load brief content", err)
	}
	agg := export.Aggregate{
		Project: export.Project{
			ID:        record.Project.ID,
			Name:      record.Project.Name,
			Status:    record.Project.Status,
			CreatedAt: record.Project.CreatedAt,
		},
		Brief: export.Brief{
			ID:         record.Brief.ID,
			Content:    content,
			IsApproved: record.Brief.IsApproved,
			ApprovedAt: record.Brief.ApprovedAt,
			CreatedAt:  record.Brief.CreatedAt,
		},
		Artifacts: make([]export.Artifact, 0, len(record.Artifacts)),
		Comments:  make([]export.Comment, 0, len(record.Comments)),
	}
	for _, a := range record.Artifacts {
		agg.Artifacts = append(agg.Artifacts, export.Artifact{
			Type:      brief.ArtifactType(a.Type),
			Content:   a.Content.V,
			CreatedAt: a.CreatedAt,
		})
	}
	for _, c := range record.Comments {
		agg.Comments = append(agg.Comments, export.Comment{
			Author:    c.Author,
			Text:      c.Text,
			Section:   c.Section,
			CreatedAt: c.CreatedAt,
		})
	}
	return agg, nil
}

// Export renders the brief in format and records the export. When an archive
// is configured the file is uploaded too; an upload failure does not fail the export.
func (s *Service) Export(ctx context.Context, projectID, format string, actor brief.Actor) (ExportFile, error) {
	parsed, err := parseExportFormat(format)
	if err != nil {
		return ExportFile{}, err
	}
	agg, err := s.GetExportData(ctx, projectID)
	if err != nil {
		return ExportFile{}, err
	}
	rendered, err := s.exports.Render(ctx, parsed, agg, s.timestamp())
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return ExportFile{}, domainError(KindPrecondition, http.StatusServiceUnavailable, "PDF_UNAVAILABLE",
				"PDF export is unavailable because no headless browser is installed on the server", nil)
		}
		s.log().Error("export render failed", "project_id", agg.Project.ID, "format", parsed, "error", err)
		return ExportFile{}, generationError(fmt.Sprintf("Failed to export brief as %s. Please try again.", parsed.Label()), err)
	}
	if err := s.recordExport(ctx, agg.Project.ID, parsed, actor); err != nil {
		return ExportFile{}, err
	}

	file := ExportFile{Filename: rendered.Filename, MimeType: rendered.MimeType, Data: rendered.Data}
	if s.archive != nil {
		object, err := s.archive.Store(ctx, agg.Project.ID, rendered.Filename, rendered.MimeType, rendered.Data)
		if err != nil {
			s.log().Warn("export archive failed", "project_id", agg.Project.ID, "error", err)
		} else {
			file.Archive = &ArchivedFile{Key: object.Key, URL: object.URL, ExpiresAt: object.ExpiresAt}
		}
	}
	return file, nil
}

// LogExport records an export performed by the caller from data it already fetched.
func (s *Service) LogExport(ctx context.Context, projectID, format string, actor brief.Actor) error {
	parsed, err := parseExportFormat(format)
	if err != nil {
		return err
	}
	project, err := s.requireProject(ctx, projectID)
	if err != nil {
		return err
	}
	return s.recordExport(ctx, project.ID, parsed, actor)
}

func (s *Service) recordExport(ctx context.Context, projectID string, format export.Format, actor brief.Actor) error {
	action := fmt.Sprintf("Brief exported as %s", format.Label())
	return s.audit(ctx, projectID, action, actor, map[string]any{"format": string(format)})
}

func parseExportFormat(value string) (export.Format, error) {
	format, err := export.ParseFormat(value)
	if err != nil {
		return "", validationError("Format must be markdown, json, or pdf")
	}
	return format, nil
}
