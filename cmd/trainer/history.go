package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(cfg *config) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent calls, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			results, err := store.ReadRecentResults(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), results)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of calls to show")
	return cmd
}

func newStatsCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show success rates and the security score",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := store.Stats(cmd.Context(), cfg.scoreWindow)
			if err != nil {
				return err
			}
			renderStats(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newScenariosCmd(cfg *config) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the scam scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			list := catalog.All()
			renderScenarios(cmd.OutOrStdout(), list)
			if verbose {
				w := cmd.OutOrStdout()
				for _, s := range list {
					fmt.Fprintln(w)
					fmt.Fprintln(w, titleStyle.Render(s.Name)+" "+dimStyle.Render(s.Description))
					fmt.Fprint(w, renderWarnings(s))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show descriptions and red flags")
	return cmd
}
