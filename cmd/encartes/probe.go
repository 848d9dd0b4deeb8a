package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maltedev/encarte-scraper/internal/browser"
	"github.com/maltedev/encarte-scraper/internal/parser"
	"github.com/maltedev/encarte-scraper/internal/runner"
)

func init() {
	rootCmd.AddCommand(probeCmd)
}

var probeCmd = &cobra.Command{
	Use:   "probe <url> <selector...>",
	Short: "Opens a page and reports what each selector matches, for repairing a broken retailer.",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, selectors := args[0], args[1:]

		b, err := browser.New(runner.BrowserOptions(cfg), log)
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		defer b.Close()

		page, err := b.NewPage()
		if err != nil {
			return err
		}
		defer page.Close()

		if err := b.NavigateWithRetry(cmd.Context(), page, url, cfg.Scraper.NavRetries); err != nil {
			return err
		}
		browser.AcceptCookies(page)

		html, err := page.Content()
		if err != nil {
			return fmt.Errorf("failed to read page: %w", browser.Wrap(err))
		}

		p := parser.NewFlyerParser()
		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Selector", "Matches", "First text"})
		for _, sel := range selectors {
			n, err := page.Locator(sel).Count()
			if err != nil {
				t.AppendRow(table.Row{sel, "error", err.Error()})
				continue
			}
			t.AppendRow(table.Row{sel, n, truncate(p.FirstText(html, sel), 60)})
		}
		t.AppendFooter(table.Row{"validity", "", p.ExtractValidity(html, parser.ValidityRule{
			Selectors: selectors,
			Keyword:   "valid",
			Date:      parser.DayMonth,
			Body:      parser.BodyValidity,
		})})
		t.Render()
		return nil
	},
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
