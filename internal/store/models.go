package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyExists is returned when a unique constraint rejects an insert.
var ErrAlreadyExists = errors.New("already exists")

// JSON stores V as a jsonb column.
type JSON[T any] struct {
	V T
}

func (j *JSON[T]) Scan(src any) error {
	var zero T
	switch value := src.(type) {
	case nil:
		j.V = zero
		return nil
	case []byte:
		return json.Unmarshal(value, &j.V)
	case string:
		return json.Unmarshal([]byte(value), &j.V)
	default:
		return fmt.Errorf("scan json: unsupported source %T", src)
	}
}

func (j JSON[T]) Value() (driver.Value, error) {
	payload, err := json.Marshal(j.V)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return string(payload), nil
}

type Project struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type ProjectSummary struct {
	Project
	HasBrief              bool `db:"has_brief"`
	IsApproved            bool `db:"is_approved"`
	ArtifactCount         int  `db:"artifact_count"`
	CommentCount          int  `db:"comment_count"`
	PendingChangeRequests int  `db:"pending_change_requests"`
}

type Intake struct {
	ID                   string    `db:"id"`
	ProjectID            string    `db:"project_id"`
	StakeholderDocuments string    `db:"stakeholder_documents"`
	BoilerplateLanguage  string    `db:"boilerplate_language"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

type Assumption struct {
	Text       string `json:"text"`
	Confidence string `json:"confidence"`
}

type Brief struct {
	ID                string             `db:"id"`
	ProjectID         string             `db:"project_id"`
	Purpose           string             `db:"purpose"`
	PrimaryAudience   string             `db:"primary_audience"`
	SecondaryAudience string             `db:"secondary_audience"`
	Tone              string             `db:"tone"`
	Sitemap           JSON[[]string]     `db:"sitemap"`
	Constraints       JSON[[]string]     `db:"constraints"`
	Assumptions       JSON[[]Assumption] `db:"assumptions"`
	OpenQuestions     JSON[[]string]     `db:"open_questions"`
	IsApproved        bool               `db:"is_approved"`
	ApprovedAt        *time.Time         `db:"approved_at"`
	CreatedAt         time.Time          `db:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at"`
}

type Artifact struct {
	ID        string                `db:"id"`
	ProjectID string                `db:"project_id"`
	Type      string                `db:"type"`
	Content   JSON[json.RawMessage] `db:"content"`
	CreatedAt time.Time             `db:"created_at"`
}

type Comment struct {
	ID        string    `db:"id"`
	ProjectID string    `db:"project_id"`
	Author    string    `db:"author"`
	Text      string    `db:"text"`
	Section   string    `db:"section"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type SectionCount struct {
	Section string `db:"section"`
	Count   int    `db:"count"`
}

type ChangeRequest struct {
	ID            string         `db:"id"`
	ProjectID     string         `db:"project_id"`
	BriefID       string         `db:"brief_id"`
	Requester     string         `db:"requester"`
	Sections      JSON[[]string] `db:"sections"`
	Feedback      string         `db:"feedback"`
	Priority      string         `db:"priority"`
	Status        string         `db:"status"`
	ReviewedBy    *string        `db:"reviewed_by"`
	ReviewedAt    *time.Time     `db:"reviewed_at"`
	Resolution    *string        `db:"resolution"`
	ImplementedBy *string        `db:"implemented_by"`
	ImplementedAt *time.Time     `db:"implemented_at"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
}

type ChangeRequestStats struct {
	Total       int `db:"total" json:"total"`
	Pending     int `db:"pending" json:"pending"`
	Approved    int `db:"approved" json:"approved"`
	Rejected    int `db:"rejected" json:"rejected"`
	Implemented int `db:"implemented" json:"implemented"`
	Critical    int `db:"critical" json:"critical"`
}

type ChangeLogEntry struct {
	ID        string               `db:"id"`
	ProjectID string               `db:"project_id"`
	Action    string               `db:"action"`
	ActorKind string               `db:"actor_kind"`
	ActorName string               `db:"actor_name"`
	Metadata  JSON[map[string]any] `db:"metadata"`
	CreatedAt time.Time            `db:"created_at"`
}

// ExportRecord is a consistent read of everything an export needs.
type ExportRecord struct {
	Project   Project
	Brief     Brief
	Artifacts []Artifact
	Comments  []Comment
}
