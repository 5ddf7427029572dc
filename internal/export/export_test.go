package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"helios/api/internal/brief"
)

func fixtureAggregate() Aggregate {
	created := time.Date(2026, 1, 15, 18, 30, 0, 0, time.UTC)
	approved := time.Date(2026, 1, 20, 9, 0, 0, 0, time.UTC)
	return Aggregate{
		Project: Project{ID: "proj_1", Name: "Acme Redesign", Status: "approved", CreatedAt: created},
		Brief: Brief{
			ID: "brief_1",
			Content: brief.Content{
				Purpose:           "Grow enrolment.",
				PrimaryAudience:   "Prospective students.",
				SecondaryAudience: "Parents.",
				Tone:              "Warm and confident.",
				Sitemap:           []string{"Home", "Programs"},
				Constraints:       []string{"WCAG 2.1 AA compliance"},
				Assumptions: []brief.Assumption{
					{Text: "Photography exists", Confidence: brief.ConfidenceHigh},
					{Text: "Budget approved", Confidence: brief.ConfidenceMedium},
					{Text: "Launch in May", Confidence: brief.ConfidenceLow},
				},
				OpenQuestions: []string{"Who owns content?"},
			},
			IsApproved: true,
			ApprovedAt: &approved,
			CreatedAt:  created,
		},
		Artifacts: []Artifact{
			{Type: brief.ArtifactContent, Content: json.RawMessage(`{"title":"Content & Page Planning","items":[]}`), CreatedAt: created},
			{Type: brief.ArtifactSEO, Content: json.RawMessage(`{"title":"SEO Research","keywords":[],"metadata":"m"}`), CreatedAt: created},
		},
		Comments: []Comment{
			{Author: "Dana", Text: "Shorten the purpose", Section: "Purpose", CreatedAt: approved},
		},
	}
}

func TestMarkdownLayout(t *testing.T) {
	md := string(Markdown(fixtureAggregate()))

	wantInOrder := []string{
		"# Acme Redesign\n\n",
		"**Status:** approved\n",
		"**Created:** 1/15/2026\n",
		"**Approved:** 1/20/2026\n",
		"\n---\n\n## Purpose\n\nGrow enrolment.\n\n",
		"## Target Audiences\n\n### Primary Audience\nProspective students.\n\n### Secondary Audience\nParents.\n\n",
		"## Tone & Voice\n\nWarm and confident.\n\n",
		"## Sitemap\n\n- Home\n- Programs\n\n",
		"## Constraints\n\n- ✓ WCAG 2.1 AA compliance\n\n",
		"## Assumptions\n\n- 🟢 **[HIGH]** Photography exists\n- 🟡 **[MEDIUM]** Budget approved\n- 🔴 **[LOW]** Launch in May\n\n",
		"## Open Questions\n\n- ⚠️ Who owns content?\n\n",
		"---\n\n## Artifacts\n\n### CONTENT\n\n```json\n{\n  \"title\": \"Content & Page Planning\",\n  \"items\": []\n}\n```\n\n",
		"### SEO\n\n",
		"---\n\n## Comments\n\n**Dana** _(Purpose)_\n> Shorten the purpose\n_1/20/2026_\n\n",
	}
	pos := 0
	for _, want := range wantInOrder {
		idx := strings.Index(md[pos:], want)
		if idx < 0 {
			t.Fatalf("missing or out of order %q in:\n%s", want, md)
		}
		pos += idx + len(want)
	}
}

func TestMarkdownOmitsEmptySectionsAndIsDeterministic(t *testing.T) {
	agg := fixtureAggregate()
	agg.Artifacts = nil
	agg.Comments = nil
	agg.Brief.IsApproved = false
	agg.Brief.ApprovedAt = nil

	first := string(Markdown(agg))
	if strings.Contains(first, "## Artifacts") || strings.Contains(first, "## Comments") || strings.Contains(first, "**Approved:**") {
		t.Fatalf("unexpected optional sections:\n%s", first)
	}
	if second := string(Markdown(agg)); second != first {
		t.Fatal("markdown output is not deterministic")
	}
}

func TestJSONShape(t *testing.T) {
	at := time.Date(2026, 2, 1, 12, 0, 0, 123000000, time.UTC)
	raw, err := JSON(fixtureAggregate(), at)
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if !strings.Contains(string(raw), "\n  \"metadata\": {\n    \"exportedAt\"") {
		t.Fatalf("expected two-space indentation:\n%s", raw)
	}

	var doc struct {
		Metadata map[string]string `json:"metadata"`
		Project  map[string]string `json:"project"`
		Brief    struct {
			Status     string  `json:"status"`
			ApprovedAt *string `json:"approvedAt"`
			Content    struct {
				Audiences   map[string]string `json:"audiences"`
				Assumptions []struct {
					Statement            string `json:"statement"`
					Confidence           string `json:"confidence"`
					RequiresVerification bool   `json:"requiresVerification"`
				} `json:"assumptions"`
			} `json:"content"`
		} `json:"brief"`
		Artifacts     map[string]json.RawMessage `json:"artifacts"`
		Collaboration struct {
			CommentCount int `json:"commentCount"`
			Comments     []struct {
				Timestamp string `json:"timestamp"`
			} `json:"comments"`
		} `json:"collaboration"`
		Technical map[string]any `json:"technical"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}

	if doc.Metadata["exportedAt"] != "2026-02-01T12:00:00.123Z" || doc.Metadata["exportedBy"] != "Helios AI Web Briefing Agent" || doc.Metadata["version"] != "1.0" {
		t.Fatalf("unexpected metadata: %v", doc.Metadata)
	}
	if doc.Project["url"] != "/brief/proj_1" || doc.Project["createdAt"] != "2026-01-15T18:30:00.000Z" {
		t.Fatalf("unexpected project: %v", doc.Project)
	}
	if doc.Brief.Status != "approved" || doc.Brief.ApprovedAt == nil {
		t.Fatalf("unexpected brief status: %+v", doc.Brief)
	}
	if doc.Brief.Content.Audiences["secondary"] != "Parents." {
		t.Fatalf("unexpected audiences: %v", doc.Brief.Content.Audiences)
	}
	assumptions := doc.Brief.Content.Assumptions
	if len(assumptions) != 3 || assumptions[0].RequiresVerification || !assumptions[2].RequiresVerification {
		t.Fatalf("unexpected assumptions: %+v", assumptions)
	}
	if len(doc.Artifacts) != 2 || doc.Artifacts["seo"] == nil {
		t.Fatalf("unexpected artifacts: %v", doc.Artifacts)
	}
	if doc.Collaboration.CommentCount != 1 || doc.Collaboration.Comments[0].Timestamp != "2026-01-20T09:00:00.000Z" {
		t.Fatalf("unexpected collaboration: %+v", doc.Collaboration)
	}
	if doc.Technical["platform"] != "ASU Drupal" || doc.Technical["responsive"] != true {
		t.Fatalf("unexpected technical block: %v", doc.Technical)
	}
}

func TestJSONDraftHasNullApproval(t *testing.T) {
	agg := fixtureAggregate()
	agg.Brief.IsApproved = false
	agg.Brief.ApprovedAt = nil
	agg.Artifacts = nil
	agg.Comments = nil

	raw, err := JSON(agg, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	out := string(raw)
	for _, want := range []string{`"status": "draft"`, `"approvedAt": null`, `"artifacts": {}`, `"comments": []`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in:\n%s", want, out)
		}
	}
}

func TestJSONIsStableApartFromExportTime(t *testing.T) {
	agg := fixtureAggregate()
	first, _ := JSON(agg, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	second, _ := JSON(agg, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	strip := func(raw []byte) string {
		lines := strings.Split(string(raw), "\n")
		kept := lines[:0]
		for _, line := range lines {
			if !strings.Contains(line, `"exportedAt"`) {
				kept = append(kept, line)
			}
		}
		return strings.Join(kept, "\n")
	}
	if strip(first) != strip(second) {
		t.Fatal("JSON export differs beyond exportedAt")
	}
}

func TestJSONArtifactDuplicatesOverwriteInPlace(t *testing.T) {
	agg := fixtureAggregate()
	agg.Artifacts = append(agg.Artifacts, Artifact{Type: brief.ArtifactContent, Content: json.RawMessage(`{"title":"newer"}`)})
	raw, err := JSON(agg, time.Now())
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	out := string(raw)
	// brief.content plus the single content artifact
	if strings.Count(out, `"content": {`) != 2 {
		t.Fatalf("expected a single content artifact:\n%s", out)
	}
	if !strings.Contains(out, `"title": "newer"`) || strings.Index(out, `"title": "newer"`) > strings.Index(out, `"seo"`) {
		t.Fatalf("later duplicate should overwrite in first position:\n%s", out)
	}
}

func TestRenderHTMLIncludesBriefAndEscapes(t *testing.T) {
	agg := fixtureAggregate()
	agg.Comments[0].Text = "<script>alert(1)</script>"
	html, err := RenderHTML(agg)
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	for _, want := range []string{"Acme Redesign", "Grow enrolment.", "[HIGH]", "SEO Research", "Approved 1/20/2026"} {
		if !strings.Contains(html, want) {
			t.Fatalf("missing %q in html", want)
		}
	}
	if strings.Contains(html, "<script>alert(1)</script>") {
		t.Fatal("comment text was not escaped")
	}
}

func TestPDFWithoutBrowser(t *testing.T) {
	renderer := NewPDFRenderer(time.Second)
	renderer.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := renderer.Render(context.Background(), fixtureAggregate())
	if !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("expected ErrPDFDependencyMissing, got %v", err)
	}
}

func TestRendererMarkdownResult(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	result, err := NewRenderer(nil).Render(context.Background(), FormatMarkdown, fixtureAggregate(), at)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if result.Filename != "acme_redesign_brief_2026-03-09.md" {
		t.Fatalf("filename = %q", result.Filename)
	}
	if !strings.HasPrefix(result.MimeType, "text/markdown") {
		t.Fatalf("mime = %q", result.MimeType)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"markdown": FormatMarkdown, "MD": FormatMarkdown, " json ": FormatJSON, "pdf": FormatPDF} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("docx"); err == nil {
		t.Fatal("docx should be rejected")
	}
	if FormatPDF.Label() != "PDF" || FormatMarkdown.Extension() != "md" {
		t.Fatal("format helpers broken")
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	if got := percentEncodeForDataURL("a b&é"); got != "a%20b%26%C3%A9" {
		t.Fatalf("percentEncodeForDataURL() = %q", got)
	}
}
