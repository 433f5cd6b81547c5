package relay

import (
	"encoding/csv"
	"strings"
	"unicode/utf8"

	"cortexrelay/models"
)

// MessageOptions are the inline commands parsed out of a user message.
type MessageOptions struct {
	// ShowSQL includes the generated SQL statement in the reply (/sql).
	ShowSQL bool
}

// ParseMessageCommands strips inline commands from a message and returns the
// clean prompt plus the parsed options.
func ParseMessageCommands(text string) (string, MessageOptions) {
	var opts MessageOptions

	if strings.Contains(text, "/sql") {
		opts.ShowSQL = true
		text = strings.ReplaceAll(text, "/sql", "")
	}

	return strings.TrimSpace(text), opts
}

// RenderResultsTable renders a query result as a fixed-width text table for
// a monospace Slack code block.
func RenderResultsTable(result *models.QueryResult) string {
	widths := make([]int, len(result.Columns))
	for i, column := range result.Columns {
		widths[i] = utf8.RuneCountInString(column)
	}
	for _, row := range result.Rows {
		for i, cell := range row {
			if w := utf8.RuneCountInString(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(cell)
			if pad := widths[i] - utf8.RuneCountInString(cell); i < len(cells)-1 && pad > 0 {
				b.WriteString(strings.Repeat(" ", pad))
			}
		}
		b.WriteString("\n")
	}

	writeRow(result.Columns)
	for _, row := range result.Rows {
		writeRow(row)
	}

	return strings.TrimRight(b.String(), "\n")
}

// BuildResultsCSV encodes a query result as CSV for the file-upload fallback.
func BuildResultsCSV(result *models.QueryResult) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(result.Columns); err != nil {
		return "", err
	}
	for _, row := range result.Rows {
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return b.String(), nil
}
