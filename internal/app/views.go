package app

import (
	"encoding/json"
	"time"

	"helios/api/internal/brief"
	"helios/api/internal/store"
)

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ProjectSummary struct {
	Project
	HasBrief              bool `json:"hasBrief"`
	IsApproved            bool `json:"isApproved"`
	ArtifactCount         int  `json:"artifactCount"`
	CommentCount          int  `json:"commentCount"`
	PendingChangeRequests int  `json:"pendingChangeRequests"`
}

// ProjectDetail is a project with everything it owns.
type ProjectDetail struct {
	Project
	Intake         *Intake          `json:"intake"`
	Brief          *Brief           `json:"brief"`
	Artifacts      []Artifact       `json:"artifacts"`
	Comments       []Comment        `json:"comments"`
	ChangeRequests []ChangeRequest  `json:"changeRequests"`
	ChangeLog      []ChangeLogEntry `json:"changeLog"`
}

type Intake struct {
	ID                   string    `json:"id"`
	ProjectID            string    `json:"projectId"`
	StakeholderDocuments string    `json:"stakeholderDocuments"`
	BoilerplateLanguage  string    `json:"boilerplateLanguage"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

type Brief struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	brief.Content
	IsApproved bool       `json:"isApproved"`
	ApprovedAt *time.Time `json:"approvedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type Artifact struct {
	ID        string             `json:"id"`
	ProjectID string             `json:"projectId"`
	Type      brief.ArtifactType `json:"type"`
	Content   json.RawMessage    `json:"content"`
	CreatedAt time.Time          `json:"createdAt"`
}

type Comment struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Section   string    `json:"section"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type SectionCount struct {
	Section string `json:"section"`
	Count   int    `json:"count"`
}

type ChangeRequest struct {
	ID            string     `json:"id"`
	ProjectID     string     `json:"projectId"`
	BriefID       string     `json:"briefId"`
	Requester     string     `json:"requester"`
	Sections      []string   `json:"sections"`
	Feedback      string     `json:"feedback"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	ReviewedBy    *string    `json:"reviewedBy"`
	ReviewedAt    *time.Time `json:"reviewedAt"`
	Resolution    *string    `json:"resolution"`
	ImplementedBy *string    `json:"implementedBy"`
	ImplementedAt *time.Time `json:"implementedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type ChangeLogEntry struct {
	ID        string         `json:"id"`
	ProjectID string         `json:"projectId"`
	Action    string         `json:"action"`
	User      string         `json:"user"`
	ActorKind string         `json:"actorKind"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ExportFile is a rendered export. Archive is set when the file was also uploaded.
type ExportFile struct {
	Filename string        `json:"filename"`
	MimeType string        `json:"mimeType"`
	Data     []byte        `json:"-"`
	Archive  *ArchivedFile `json:"archive,omitempty"`
}

type ArchivedFile struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toProject(p store.Project) Project {
	return Project{ID: p.ID, Name: p.Name, Status: p.Status, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
}

func toProjectSummary(p store.ProjectSummary) ProjectSummary {
	return ProjectSummary{
		Project:               toProject(p.Project),
		HasBrief:              p.HasBrief,
		IsApproved:            p.IsApproved,
		ArtifactCount:         p.ArtifactCount,
		CommentCount:          p.CommentCount,
		PendingChangeRequests: p.PendingChangeRequests,
	}
}

func toIntake(i store.Intake) Intake {
	return Intake{
		ID:                   i.ID,
		ProjectID:            i.ProjectID,
		StakeholderDocuments: i.StakeholderDocuments,
		BoilerplateLanguage:  i.BoilerplateLanguage,
		CreatedAt:            i.CreatedAt,
		UpdatedAt:            i.UpdatedAt,
	}
}

func toBrief(b store.Brief) Brief {
	return Brief{
		ID:         b.ID,
		ProjectID:  b.ProjectID,
		Content:    briefContent(b),
		IsApproved: b.IsApproved,
		ApprovedAt: b.ApprovedAt,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

// briefContent lifts the stored columns into domain content. Lists are never nil.
func briefContent(b store.Brief) brief.Content {
	assumptions := make([]brief.Assumption, 0, len(b.Assumptions.V))
	for _, a := range b.Assumptions.V {
		assumptions = append(assumptions, brief.Assumption{Text: a.Text, Confidence: brief.Confidence(a.Confidence)})
	}
	return brief.Content{
		Purpose:           b.Purpose,
		PrimaryAudience:   b.PrimaryAudience,
		SecondaryAudience: b.SecondaryAudience,
		Tone:              b.Tone,
		Sitemap:           nonNilStrings(b.Sitemap.V),
		Constraints:       nonNilStrings(b.Constraints.V),
		Assumptions:       assumptions,
		OpenQuestions:     nonNilStrings(b.OpenQuestions.V),
	}
}

func storedBrief(id, projectID string, content brief.Content, at time.Time) store.Brief {
	assumptions := make([]store.Assumption, 0, len(content.Assumptions))
	for _, a := range content.Assumptions {
		assumptions = append(assumptions, store.Assumption{Text: a.Text, Confidence: string(a.Confidence)})
	}
	return store.Brief{
		ID:                id,
		ProjectID:         projectID,
		Purpose:           content.Purpose,
		PrimaryAudience:   content.PrimaryAudience,
		SecondaryAudience: content.SecondaryAudience,
		Tone:              content.Tone,
		Sitemap:           store.JSON[[]string]{V: nonNilStrings(content.Sitemap)},
		Constraints:       store.JSON[[]string]{V: nonNilStrings(content.Constraints)},
		Assumptions:       store.JSON[[]store.Assumption]{V: assumptions},
		OpenQuestions:     store.JSON[[]string]{V: nonNilStrings(content.OpenQuestions)},
		CreatedAt:         at,
		UpdatedAt:         at,
	}
}

func toArtifact(a store.Artifact) Artifact {
	return Artifact{
		ID:        a.ID,
		ProjectID: a.ProjectID,
		Type:      brief.ArtifactType(a.Type),
		Content:   a.Content.V,
		CreatedAt: a.CreatedAt,
	}
}

func toComment(c store.Comment) Comment {
	return Comment{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Author:    c.Author,
		Text:      c.Text,
		Section:   c.Section,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toChangeRequest(r store.ChangeRequest) ChangeRequest {
	return ChangeRequest{
		ID:            r.ID,
		ProjectID:     r.ProjectID,
		BriefID:       r.BriefID,
		Requester:     r.Requester,
		Sections:      nonNilStrings(r.Sections.V),
		Feedback:      r.Feedback,
		Priority:      r.Priority,
		Status:        r.Status,
		ReviewedBy:    r.ReviewedBy,
		ReviewedAt:    r.ReviewedAt,
		Resolution:    r.Resolution,
		ImplementedBy: r.ImplementedBy,
		ImplementedAt: r.ImplementedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toChangeLogEntry(e store.ChangeLogEntry) ChangeLogEntry {
	metadata := e.Metadata.V
	if metadata == nil {
		metadata = map[string]any{}
	}
	return ChangeLogEntry{
		ID:        e.ID,
		ProjectID: e.ProjectID,
		Action:    e.Action,
		User:      brief.ActorFrom(e.ActorKind, e.ActorName).Name(),
		ActorKind: e.ActorKind,
		Metadata:  metadata,
		CreatedAt: e.CreatedAt,
	}
}

func mapSlice[S any, T any](items []S, fn func(S) T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
