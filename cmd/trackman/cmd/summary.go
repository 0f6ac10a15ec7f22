package cmd

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"trackman-importer/internal/service"
	"trackman-importer/internal/stats"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	summaryCombine bool
	summaryClub    string
)

func init() {
	summaryCmd.Flags().BoolVar(&summaryCombine, "combine", false, "summarize combine tests by target distance")
	summaryCmd.Flags().StringVar(&summaryClub, "club", "", "only this club")
	rootCmd.AddCommand(summaryCmd)
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Prints descriptive statistics of the canonical shots.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var summary *service.SummaryService
		var groups []stats.Group
		err := withApp(cmd.Context(), func() (err error) {
			if summaryCombine {
				groups, err = summary.Targets()
			} else {
				groups, err = summary.Clubs(summaryClub)
			}
			return err
		}, &summary)
		if err != nil {
			return err
		}

		label := "Club"
		if summaryCombine {
			label = "Target"
		}
		for _, g := range groups {
			printGroup(label, g)
		}
		return nil
	},
}

func printGroup(label string, g stats.Group) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("%s: %s (%d shots)", label, g.Key, g.Shots))
	t.AppendHeader(table.Row{"Metric", "Count", "Mean", "Std", "Min", "Max"})
	for _, m := range g.Metrics {
		t.AppendRow(table.Row{
			m.Metric, m.Count,
			fmt.Sprintf("%.2f", m.Mean),
			fmt.Sprintf("%.2f", m.Std),
			fmt.Sprintf("%.2f", m.Min),
			fmt.Sprintf("%.2f", m.Max),
		})
	}
	if len(g.Clubs) > 0 {
		clubs := make([]string, 0, len(g.Clubs))
		for _, c := range slices.Sorted(maps.Keys(g.Clubs)) {
			clubs = append(clubs, fmt.Sprintf("%s=%d", c, g.Clubs[c]))
		}
		t.AppendFooter(table.Row{"Clubs", strings.Join(clubs, " ")})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
