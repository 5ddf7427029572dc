package export

import (
	"bytes"
	"encoding/json"
	"time"

	"helios/api/internal/brief"
)

const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type jsonExport struct {
	Metadata      jsonMetadata      `json:"metadata"`
	Project       jsonProject       `json:"project"`
	Brief         jsonBrief         `json:"brief"`
	Artifacts     artifactMap       `json:"artifacts"`
	Collaboration jsonCollaboration `json:"collaboration"`
	Technical     jsonTechnical     `json:"technical"`
}

type jsonMetadata struct {
	ExportedAt string `json:"exportedAt"`
	ExportedBy string `json:"exportedBy"`
	Version    string `json:"version"`
}

type jsonProject struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	URL       string `json:"url"`
}

type jsonBrief struct {
	Status     string      `json:"status"`
	ApprovedAt *string     `json:"approvedAt"`
	Content    jsonContent `json:"content"`
}

type jsonContent struct {
	Purpose       string           `json:"purpose"`
	Audiences     jsonAudiences    `json:"audiences"`
	Tone          string           `json:"tone"`
	Sitemap       []string         `json:"sitemap"`
	Constraints   []string         `json:"constraints"`
	Assumptions   []jsonAssumption `json:"assumptions"`
	OpenQuestions []string         `json:"openQuestions"`
}

type jsonAudiences struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

type jsonAssumption struct {
	Statement            string `json:"statement"`
	Confidence           string `json:"confidence"`
	RequiresVerification bool   `json:"requiresVerification"`
}

type jsonCollaboration struct {
	CommentCount int           `json:"commentCount"`
	Comments     []jsonComment `json:"comments"`
}

type jsonComment struct {
	Author    string `json:"author"`
	Text      string `json:"text"`
	Section   string `json:"section"`
	Timestamp string `json:"timestamp"`
}

type jsonTechnical struct {
	Platform      string `json:"platform"`
	Framework     string `json:"framework"`
	Accessibility string `json:"accessibility"`
	Responsive    bool   `json:"responsive"`
	CMS           string `json:"cms"`
}

// artifactMap keeps first-seen key order; a repeated type overwrites the earlier value in place.
type artifactMap struct {
	keys   []string
	values map[string]json.RawMessage
}

func (m *artifactMap) set(key string, value json.RawMessage) {
	if m.values == nil {
		m.values = make(map[string]json.RawMessage)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	if len(value) == 0 {
		value = json.RawMessage("null")
	}
	m.values[key] = value
}

func (m artifactMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(m.values[key])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// JSON renders the developer-facing export. Only metadata.exportedAt depends
// on anything outside the aggregate.
func JSON(agg Aggregate, exportedAt time.Time) ([]byte, error) {
	content := agg.Brief.Content
	doc := jsonExport{
		Metadata: jsonMetadata{
			ExportedAt: isoTime(exportedAt),
			ExportedBy: "Helios AI Web Briefing Agent",
			Version:    "1.0",
		},
		Project: jsonProject{
			ID:        agg.Project.ID,
			Name:      agg.Project.Name,
			Status:    agg.Project.Status,
			CreatedAt: isoTime(agg.Project.CreatedAt),
			URL:       "/brief/" + agg.Project.ID,
		},
		Brief: jsonBrief{
			Status: "draft",
			Content: jsonContent{
				Purpose: content.Purpose,
				Audiences: jsonAudiences{
					Primary:   content.PrimaryAudience,
					Secondary: content.SecondaryAudience,
				},
				Tone:          content.Tone,
				Sitemap:       nonNilStrings(content.Sitemap),
				Constraints:   nonNilStrings(content.Constraints),
				Assumptions:   make([]jsonAssumption, 0, len(content.Assumptions)),
				OpenQuestions: nonNilStrings(content.OpenQuestions),
			},
		},
		Collaboration: jsonCollaboration{
			CommentCount: len(agg.Comments),
			Comments:     make([]jsonComment, 0, len(agg.Comments)),
		},
		Technical: jsonTechnical{
			Platform:      "ASU Drupal",
			Framework:     "Webspark 2.0",
			Accessibility: "WCAG 2.1 AA",
			Responsive:    true,
			CMS:           "Drupal",
		},
	}
	if agg.Brief.IsApproved {
		doc.Brief.Status = "approved"
	}
	if agg.Brief.ApprovedAt != nil {
		approvedAt := isoTime(*agg.Brief.ApprovedAt)
		doc.Brief.ApprovedAt = &approvedAt
	}
	for _, assumption := range content.Assumptions {
		doc.Brief.Content.Assumptions = append(doc.Brief.Content.Assumptions, jsonAssumption{
			Statement:            assumption.Text,
			Confidence:           string(assumption.Confidence),
			RequiresVerification: assumption.Confidence == brief.ConfidenceLow,
		})
	}
	for _, artifact := range agg.Artifacts {
		doc.Artifacts.set(string(artifact.Type), artifact.Content)
	}
	for _, comment := range agg.Comments {
		doc.Collaboration.Comments = append(doc.Collaboration.Comments, jsonComment{
			Author:    comment.Author,
			Text:      comment.Text,
			Section:   comment.Section,
			Timestamp: isoTime(comment.CreatedAt),
		})
	}

	return json.MarshalIndent(doc, "", "  ")
}

func isoTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
