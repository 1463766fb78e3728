package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/tangzhangming/jpeep/internal/optimizer"
)

// printReport 每个方法一行，每条规则一列
func printReport(w io.Writer, report *optimizer.Report) {
	m := Msg()
	names := report.RuleNames()
	if len(names) == 0 && len(report.Skipped()) == 0 {
		fmt.Fprintln(w, m.NothingToDo)
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf(m.ReportTitle, report.Class))

	header := table.Row{m.ReportMethod}
	for _, name := range names {
		header = append(header, name)
	}
	header = append(header, m.ReportPasses, m.ReportRemoved, m.ReportStatus)
	t.AppendHeader(header)

	totalRemoved := 0
	for _, mr := range report.Methods {
		row := table.Row{mr.Method}
		for _, name := range names {
			row = append(row, mr.Result.Rewrites[name])
		}
		status := m.StatusOK
		if mr.Result.Skipped {
			status = m.StatusSkipped + ": " + mr.Error
		}
		row = append(row, mr.Result.Passes, mr.Result.Removed, status)
		t.AppendRow(row)
		totalRemoved += mr.Result.Removed
	}

	totals := report.Totals()
	footer := table.Row{m.ReportTotal}
	for _, name := range names {
		footer = append(footer, totals[name])
	}
	footer = append(footer, "", totalRemoved, "")
	t.AppendFooter(footer)

	t.Render()
}
