// Package export renders an approved or draft brief as Markdown, JSON or PDF.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"helios/api/internal/brief"
)

type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatPDF      Format = "pdf"
)

func ParseFormat(value string) (Format, error) {
	switch format := Format(strings.ToLower(strings.TrimSpace(value))); format {
	case FormatMarkdown, FormatJSON, FormatPDF:
		return format, nil
	case "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", value)
	}
}

// Label is the upper-case name used in audit messages.
func (f Format) Label() string {
	return strings.ToUpper(string(f))
}

func (f Format) Extension() string {
	if f == FormatMarkdown {
		return "md"
	}
	return string(f)
}

func (f Format) MimeType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	default:
		return "application/pdf"
	}
}

// Aggregate is everything an export reads, loaded in one consistent snapshot.
type Aggregate struct {
	Project   Project    `json:"project"`
	Brief     Brief      `json:"brief"`
	Artifacts []Artifact `json:"artifacts"`
	Comments  []Comment  `json:"comments"`
}

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type Brief struct {
	ID         string        `json:"id"`
	Content    brief.Content `json:"content"`
	IsApproved bool          `json:"isApproved"`
	ApprovedAt *time.Time    `json:"approvedAt"`
	CreatedAt  time.Time     `json:"createdAt"`
}

type Artifact struct {
	Type      brief.ArtifactType `json:"type"`
	Content   json.RawMessage    `json:"content"`
	CreatedAt time.Time          `json:"createdAt"`
}

type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	Section   string    `json:"section"`
	CreatedAt time.Time `json:"createdAt"`
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates no headless browser is available for PDF export.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
