package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"helios/api/internal/brief"
)

//go:embed templates/*.html
var templateFS embed.FS

var briefTemplate = template.Must(template.New("brief.html").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
	"shortDate": func(value any) string {
		switch t := value.(type) {
		case time.Time:
			return formatShortDate(t)
		case *time.Time:
			if t == nil {
				return ""
			}
			return formatShortDate(*t)
		default:
			return ""
		}
	},
}).ParseFS(templateFS, "templates/brief.html"))

type templateData struct {
	Project    Project
	Content    brief.Content
	Status     string
	ApprovedAt *time.Time
	Artifacts  []templateArtifact
	Comments   []Comment
}

type templateArtifact struct {
	Title string
	Body  string
}

// RenderHTML renders the printable brief page.
func RenderHTML(agg Aggregate) (string, error) {
	data := templateData{
		Project:  agg.Project,
		Content:  agg.Brief.Content,
		Status:   "draft",
		Comments: agg.Comments,
	}
	if agg.Brief.IsApproved {
		data.Status = "approved"
		data.ApprovedAt = agg.Brief.ApprovedAt
	}
	for _, artifact := range agg.Artifacts {
		data.Artifacts = append(data.Artifacts, templateArtifact{
			Title: artifact.Type.Title(),
			Body:  indentJSON(artifact.Content),
		})
	}

	var buf bytes.Buffer
	if err := briefTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
