package export

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Renderer turns an aggregate into a downloadable file.
type Renderer struct {
	pdf *PDFRenderer
}

func NewRenderer(pdf *PDFRenderer) *Renderer {
	if pdf == nil {
		pdf = NewPDFRenderer(0)
	}
	return &Renderer{pdf: pdf}
}

func (r *Renderer) Render(ctx context.Context, format Format, agg Aggregate, at time.Time) (*Result, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatMarkdown:
		data = Markdown(agg)
	case FormatJSON:
		data, err = JSON(agg, at)
	case FormatPDF:
		data, err = r.pdf.Render(ctx, agg)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Filename: Filename(agg.Project.Name, format, at),
		MimeType: format.MimeType(),
	}, nil
}

// Filename follows <name>_brief_<YYYY-MM-DD>.<ext>, with the name lower-cased
// and every non-alphanumeric character replaced by an underscore.
func Filename(projectName string, format Format, at time.Time) string {
	return fmt.Sprintf("%s_brief_%s.%s", sanitizeFilename(projectName), at.UTC().Format("2006-01-02"), format.Extension())
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	result := b.String()
	if len(result) > 60 {
		result = result[:60]
	}
	if strings.Trim(result, "_") == "" {
		return "brief"
	}
	return result
}
