package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maltedev/encarte-scraper/internal/retailers"
)

var runAll bool

func init() {
	runCmd.Flags().BoolVar(&runAll, "all", false, "run every supported retailer")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [retailer...]",
	Short: "Scrapes the flyers of the given retailers into the output directory.",
	Example: `  encartes run assai
  encartes run "G-Barbosa" cometa
  encartes run --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := selectRetailers(args, runAll)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := buildStack(ctx, cfg, log, false)
		if err != nil {
			return err
		}
		defer st.Close()

		reports, err := st.runner.RunAll(ctx, names)
		renderReports(cmd.OutOrStdout(), reports)
		if err != nil && !errors.Is(err, ctx.Err()) {
			return err
		}
		return nil
	},
}

// selectRetailers validates the requested names and returns registry keys.
func selectRetailers(args []string, all bool) ([]string, error) {
	if all {
		return retailers.Names(), nil
	}
	if len(args) == 0 {
		return nil, errors.New("name at least one retailer or pass --all")
	}

	seen := make(map[string]bool)
	names := make([]string, 0, len(args))
	for _, arg := range args {
		if _, err := retailers.Get(arg); err != nil {
			return nil, fmt.Errorf("%w (see 'encartes list')", err)
		}
		key := retailers.Key(arg)
		if !seen[key] {
			seen[key] = true
			names = append(names, key)
		}
	}
	return names, nil
}
