package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/maltedev/encarte-scraper/internal/retailers"
)

func init() {
	rootCmd.AddCommand(listCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the supported retailers.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		t := newTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Key", "Name", "Folder", "URL"})
		for _, key := range retailers.Names() {
			r, err := retailers.Get(key)
			if err != nil {
				return err
			}
			info := r.Info()
			t.AppendRow(table.Row{key, info.Name, info.Slug, info.BaseURL})
		}
		t.Render()
		return nil
	},
}
