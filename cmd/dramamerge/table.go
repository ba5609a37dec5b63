package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

type column struct {
	header string
	align  columnAlignment
}

// segmentColumns is shared by merge reports and history show.
var segmentColumns = []column{
	{"#", alignRight},
	{"Output", alignLeft},
	{"Files", alignRight},
	{"Duration", alignRight},
	{"Size", alignRight},
	{"Status", alignLeft},
}

// segmentFooter totals a segment table.
func segmentFooter(count int, duration time.Duration, size int64) []string {
	return []string{"", fmt.Sprintf("%d segment(s)", count), "", formatDuration(duration), formatBytes(size), ""}
}

// renderTable draws rows under columns. Short rows are padded; a non-empty
// footer is rendered below a separator. CJK titles are measured by display
// width so columns stay aligned.
func renderTable(columns []column, rows [][]string, footer ...string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(padRow(nil, len(columns), columnHeader(columns)))
	for _, row := range rows {
		tw.AppendRow(padRow(row, len(columns), nil))
	}
	if len(footer) > 0 {
		tw.AppendFooter(padRow(footer, len(columns), nil))
	}

	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		align := text.AlignLeft
		if col.align == alignRight {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			AlignFooter: align,
		}
	}
	tw.SetColumnConfigs(configs)
	tw.Style().Format.Footer = text.FormatDefault

	return tw.Render()
}

func columnHeader(columns []column) []string {
	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	return headers
}

func padRow(values []string, width int, fallback []string) table.Row {
	if values == nil {
		values = fallback
	}
	row := make(table.Row, width)
	for i := range width {
		if i < len(values) {
			row[i] = values[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
