package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

// pathColumnWidth caps path-like columns so long library paths wrap instead
// of pushing the table off screen.
const pathColumnWidth = 60

type tableOptions struct {
	aligns []columnAlignment
	// wrap lists zero-based columns that wrap at pathColumnWidth.
	wrap   []int
	footer []string
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	return renderTableWith(headers, rows, tableOptions{aligns: aligns})
}

func renderTableWith(headers []string, rows [][]string, opts tableOptions) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(headers, columns))
	for _, row := range rows {
		tw.AppendRow(toRow(row, columns))
	}
	if len(opts.footer) > 0 {
		tw.AppendFooter(toRow(opts.footer, columns))
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		cc := table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
		}
		if i < len(opts.aligns) && opts.aligns[i] == alignRight {
			cc.Align = text.AlignRight
			cc.AlignFooter = text.AlignRight
		}
		for _, w := range opts.wrap {
			if w == i {
				cc.WidthMax = pathColumnWidth
				cc.WidthMaxEnforcer = text.WrapSoft
			}
		}
		columnConfigs = append(columnConfigs, cc)
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render() + "\n"
}

func toRow(values []string, columns int) table.Row {
	r := make(table.Row, columns)
	for i := range columns {
		if i < len(values) {
			r[i] = values[i]
		} else {
			r[i] = ""
		}
	}
	return r
}
