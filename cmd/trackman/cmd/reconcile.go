package cmd

import (
	"fmt"
	"os"
	"slices"
	"trackman-importer/internal/domain"
	"trackman-importer/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	reconcileFamily string
	collectionName  string
	dryRun          bool
	showDuplicates  bool
)

func init() {
	reconcileCmd.Flags().StringVar(&reconcileFamily, "family", "", "regular or combine (default both)")
	reconcileCmd.Flags().StringVar(&collectionName, "collection", "", "only this collection, e.g. combine_shot_data")
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	reconcileCmd.Flags().BoolVar(&showDuplicates, "duplicates", false, "list every duplicate key and the record kept")
	rootCmd.AddCommand(reconcileCmd)
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rebuilds the deduplicated canonical tables from every stored batch.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		collections, err := selectCollections(reconcileFamily, collectionName)
		if err != nil {
			return err
		}

		var combiner *service.CombineService
		var results []service.CollectionResult
		err = withApp(cmd.Context(), func() error {
			for _, c := range collections {
				var (
					res service.CollectionResult
					err error
				)
				if dryRun {
					res, err = combiner.Preview(cmd.Context(), c)
				} else {
					res, err = combiner.CombineCollection(cmd.Context(), c)
				}
				if err != nil {
					return err
				}
				if res.Batches > 0 {
					results = append(results, res)
				}
			}
			return nil
		}, &combiner)
		if len(results) == 0 && err == nil {
			fmt.Println("No stored batches to reconcile.")
			return nil
		}
		printCollections(results)
		if showDuplicates {
			printDuplicates(results)
		}
		return err
	},
}

// selectCollections resolves the --family and --collection flags. A named
// collection must belong to the family when both are given.
func selectCollections(family, name string) ([]domain.Collection, error) {
	var collections []domain.Collection
	switch f := domain.Family(family); f {
	case "":
		collections = append(domain.CollectionsFor(domain.FamilyRegular), domain.CollectionsFor(domain.FamilyCombine)...)
	case domain.FamilyRegular, domain.FamilyCombine:
		collections = domain.CollectionsFor(f)
	default:
		return nil, fmt.Errorf("unknown family %q", family)
	}
	if name == "" {
		return collections, nil
	}

	c, err := domain.ParseCollection(name)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(collections, c) {
		return nil, fmt.Errorf("collection %s is not part of family %s", c, family)
	}
	return []domain.Collection{c}, nil
}

func printCollections(results []service.CollectionResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Collection", "Batches", "Before", "After", "Removed", "Output"})
	for _, r := range results {
		out := r.Path
		if r.Result.Skipped {
			out = "not deduplicated: " + r.Result.SkipReason
		}
		t.AppendRow(table.Row{r.Collection.Name(), r.Batches, r.Result.Before, r.Result.After, r.Result.Removed(), out})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printDuplicates(results []service.CollectionResult) {
	for _, r := range results {
		if len(r.Result.Collisions) == 0 {
			continue
		}
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle(r.Collection.Name())
		t.AppendHeader(table.Row{"Key", "Copies", "Kept report", "Kept row"})
		for _, c := range r.Result.Collisions {
			kept := c.Kept()
			t.AppendRow(table.Row{c.Key, len(c.Candidates), kept.Record[domain.FieldReportID], kept.Index})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	}
}
