package layout

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Lllllllleong/waterqualityflow/internal/models"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultPageLimit is the page count an online layout request accepts.
const DefaultPageLimit = 15

// pageRanges covers pages 1..pageCount with consecutive ranges of at most limit pages.
func pageRanges(pageCount, limit int) []string {
	var ranges []string
	for first := 1; first <= pageCount; first += limit {
		last := min(first+limit-1, pageCount)
		if first == last {
			ranges = append(ranges, fmt.Sprint(first))
		} else {
			ranges = append(ranges, fmt.Sprintf("%d-%d", first, last))
		}
	}
	return ranges
}

// splitPDF cuts content into documents of at most limit pages. A document within
// the limit is returned as the only chunk.
func splitPDF(content []byte, limit int) ([][]byte, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pageCount, err := api.PageCount(bytes.NewReader(content), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	if pageCount <= limit {
		return [][]byte{content}, nil
	}

	var chunks [][]byte
	for _, r := range pageRanges(pageCount, limit) {
		var buf bytes.Buffer
		if err := api.Trim(bytes.NewReader(content), &buf, []string{r}, conf); err != nil {
			return nil, fmt.Errorf("failed to extract pages %s: %w", r, err)
		}
		chunks = append(chunks, buf.Bytes())
	}
	return chunks, nil
}

// merge joins per-chunk results in order, renumbering tables so numbering stays
// continuous across the whole document.
func merge(parts []*models.IntermediateDocument) *models.IntermediateDocument {
	if len(parts) == 1 {
		return parts[0]
	}
	out := &models.IntermediateDocument{Tables: []models.Table{}}
	var text strings.Builder
	for _, p := range parts {
		text.WriteString(p.Text)
		out.Pages += p.Pages
		for _, t := range p.Tables {
			t.Number = len(out.Tables) + 1
			out.Tables = append(out.Tables, t)
		}
	}
	out.Text = text.String()
	return out
}
