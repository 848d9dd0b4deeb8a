package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/maltedev/encarte-scraper/internal/models"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// renderReports prints one row per store and a total per retailer.
func renderReports(w io.Writer, reports []*models.RunReport) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Retailer", "Store", "Artifacts", "Status", "Duration"})

	total := 0
	for _, report := range reports {
		for _, store := range report.Stores {
			t.AppendRow(table.Row{report.Retailer, store.Store.Label(), store.Artifacts, storeStatus(store), store.Duration})
		}
		if report.Error != "" {
			t.AppendRow(table.Row{report.Retailer, "-", 0, "error: " + report.Error, ""})
		}
		total += report.Artifacts()
		t.AppendSeparator()
	}

	t.AppendFooter(table.Row{"", "Total", total, fmt.Sprintf("%d runs", len(reports)), ""})
	t.Render()
}

func storeStatus(s models.StoreReport) string {
	switch {
	case s.Error != "":
		return "failed: " + s.Error
	case s.Skipped:
		return "skipped"
	default:
		return "ok"
	}
}
