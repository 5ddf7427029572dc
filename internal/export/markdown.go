package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"helios/api/internal/brief"
)

const shortDate = "1/2/2006"

// Markdown renders the brief for pasting into docs and wikis. The output
// depends only on the aggregate.
func Markdown(agg Aggregate) []byte {
	var b strings.Builder
	content := agg.Brief.Content

	fmt.Fprintf(&b, "# %s\n\n", agg.Project.Name)
	fmt.Fprintf(&b, "**Status:** %s\n", agg.Project.Status)
	fmt.Fprintf(&b, "**Created:** %s\n", formatShortDate(agg.Project.CreatedAt))
	if agg.Brief.IsApproved && agg.Brief.ApprovedAt != nil {
		fmt.Fprintf(&b, "**Approved:** %s\n", formatShortDate(*agg.Brief.ApprovedAt))
	}
	b.WriteString("\n---\n\n")

	fmt.Fprintf(&b, "## Purpose\n\n%s\n\n", content.Purpose)

	b.WriteString("## Target Audiences\n\n")
	fmt.Fprintf(&b, "### Primary Audience\n%s\n\n", content.PrimaryAudience)
	fmt.Fprintf(&b, "### Secondary Audience\n%s\n\n", content.SecondaryAudience)

	fmt.Fprintf(&b, "## Tone & Voice\n\n%s\n\n", content.Tone)

	b.WriteString("## Sitemap\n\n")
	for _, page := range content.Sitemap {
		fmt.Fprintf(&b, "- %s\n", page)
	}
	b.WriteString("\n")

	b.WriteString("## Constraints\n\n")
	for _, constraint := range content.Constraints {
		fmt.Fprintf(&b, "- ✓ %s\n", constraint)
	}
	b.WriteString("\n")

	b.WriteString("## Assumptions\n\n")
	for _, assumption := range content.Assumptions {
		fmt.Fprintf(&b, "- %s **[%s]** %s\n",
			confidenceMarker(assumption.Confidence),
			strings.ToUpper(string(assumption.Confidence)),
			assumption.Text,
		)
	}
	b.WriteString("\n")

	b.WriteString("## Open Questions\n\n")
	for _, question := range content.OpenQuestions {
		fmt.Fprintf(&b, "- ⚠️ %s\n", question)
	}
	b.WriteString("\n")

	if len(agg.Artifacts) > 0 {
		b.WriteString("---\n\n## Artifacts\n\n")
		for _, artifact := range agg.Artifacts {
			fmt.Fprintf(&b, "### %s\n\n", strings.ToUpper(string(artifact.Type)))
			fmt.Fprintf(&b, "```json\n%s\n```\n\n", indentJSON(artifact.Content))
		}
	}

	if len(agg.Comments) > 0 {
		b.WriteString("---\n\n## Comments\n\n")
		for _, comment := range agg.Comments {
			fmt.Fprintf(&b, "**%s** _(%s)_\n", comment.Author, comment.Section)
			fmt.Fprintf(&b, "> %s\n", comment.Text)
			fmt.Fprintf(&b, "_%s_\n\n", formatShortDate(comment.CreatedAt))
		}
	}

	return []byte(b.String())
}

func confidenceMarker(c brief.Confidence) string {
	switch c {
	case brief.ConfidenceHigh:
		return "🟢"
	case brief.ConfidenceMedium:
		return "🟡"
	default:
		return "🔴"
	}
}

func formatShortDate(t time.Time) string {
	return t.UTC().Format(shortDate)
}

func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "null"
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}
