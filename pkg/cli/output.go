package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/annodb/pkg/domain/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	headerColor = color.New(color.Bold, color.FgCyan)
	okColor     = color.New(color.FgGreen)
	failColor   = color.New(color.FgRed, color.Bold)
	warnColor   = color.New(color.FgYellow)
	dimColor    = color.New(color.Faint)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return goerr.Wrap(err, "failed to encode output")
	}
	return nil
}

// printRow pads every column to its width before colouring so that escape
// codes do not break the alignment.
func printRow(w io.Writer, c *color.Color, widths []int, cols ...string) {
	parts := make([]string, len(cols))
	for i, col := range cols {
		if i < len(widths) && i < len(cols)-1 {
			col = fmt.Sprintf("%-*s", widths[i], col)
		}
		if c != nil {
			col = c.Sprint(col)
		}
		parts[i] = col
	}
	fmt.Fprintln(w, strings.Join(parts, "  "))
}

func columnWidths(header []string, rows [][]string) []int {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, col := range row {
			if i < len(widths) && len(col) > widths[i] {
				widths[i] = len(col)
			}
		}
	}
	return widths
}

func printTable(w io.Writer, header []string, rows [][]string) {
	widths := columnWidths(header, rows)
	printRow(w, headerColor, widths, header...)
	for _, row := range rows {
		printRow(w, nil, widths, row...)
	}
}

func statusColor(s model.Status) *color.Color {
	switch s {
	case model.StatusSuccess:
		return okColor
	case model.StatusFailure:
		return failColor
	default:
		return dimColor
	}
}

func formatSpans(spans [][2]int) string {
	parts := make([]string, len(spans))
	for i, s := range spans {
		parts[i] = fmt.Sprintf("%d-%d", s[0], s[1])
	}
	return strings.Join(parts, ",")
}
