package layout

import (
	"strings"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/Lllllllleong/waterqualityflow/internal/models"
)

// Flatten converts a processed document into the intermediate representation.
// Text is every line of every page, in page then line order, one per row.
// Tables are numbered from 1 across all pages.
func Flatten(doc *documentaipb.Document) *models.IntermediateDocument {
	full := []rune(doc.GetText())
	out := &models.IntermediateDocument{
		Tables: []models.Table{},
		Pages:  len(doc.GetPages()),
	}

	var text strings.Builder
	for _, page := range doc.GetPages() {
		for _, line := range page.GetLines() {
			text.WriteString(strings.TrimRight(anchorText(full, line.GetLayout().GetTextAnchor()), "\r\n"))
			text.WriteByte('\n')
		}
	}
	out.Text = text.String()

	for _, page := range doc.GetPages() {
		for _, table := range page.GetTables() {
			out.Tables = append(out.Tables, flattenTable(full, table, len(out.Tables)+1))
		}
	}
	return out
}

// anchorText resolves a text anchor against the document text. Segment indices
// count code points, so the text is indexed as runes.
func anchorText(full []rune, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	segments := anchor.GetTextSegments()
	if len(segments) == 0 {
		return anchor.GetContent()
	}

	var b strings.Builder
	n := int64(len(full))
	for _, seg := range segments {
		start, end := seg.GetStartIndex(), seg.GetEndIndex()
		if start < 0 {
			start = 0
		}
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		b.WriteString(string(full[start:end]))
	}
	return b.String()
}

type gridPos struct{ row, col int }

// flattenTable lays header rows then body rows on one grid. A spanning cell occupies
// every position it covers, so following cells shift right past it.
func flattenTable(full []rune, table *documentaipb.Document_Page_Table, number int) models.Table {
	rows := make([]*documentaipb.Document_Page_Table_TableRow, 0, len(table.GetHeaderRows())+len(table.GetBodyRows()))
	rows = append(rows, table.GetHeaderRows()...)
	rows = append(rows, table.GetBodyRows()...)

	occupied := make(map[gridPos]bool)
	out := models.Table{Number: number, Cells: []models.Cell{}}

	for r, row := range rows {
		col := 0
		for _, cell := range row.GetCells() {
			for occupied[gridPos{r, col}] {
				col++
			}
			out.Cells = append(out.Cells, models.Cell{
				Row:     r,
				Column:  col,
				Content: strings.TrimSpace(anchorText(full, cell.GetLayout().GetTextAnchor())),
			})

			rowSpan, colSpan := int(cell.GetRowSpan()), int(cell.GetColSpan())
			rowSpan = max(rowSpan, 1)
			colSpan = max(colSpan, 1)
			for i := 0; i < rowSpan; i++ {
				for j := 0; j < colSpan; j++ {
					occupied[gridPos{r + i, col + j}] = true
				}
			}
			out.Rows = max(out.Rows, r+rowSpan)
			out.Columns = max(out.Columns, col+colSpan)
			col += colSpan
		}
	}
	out.Rows = max(out.Rows, len(rows))
	return out
}
