package cmd

import (
	"os"
	"time"
	"trackman-importer/internal/domain"
	"trackman-importer/internal/repository"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var onlyPending bool

func init() {
	urlsCmd.Flags().BoolVar(&onlyPending, "pending", false, "only URLs still pending")
	rootCmd.AddCommand(urlsCmd)
}

var urlsCmd = &cobra.Command{
	Use:   "urls",
	Short: "Prints the import ledger.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var repo *repository.URLRepository
		var urls []domain.ReportURL
		err := withApp(cmd.Context(), func() (err error) {
			if onlyPending {
				urls, err = repo.Pending(cmd.Context())
			} else {
				urls, err = repo.List(cmd.Context())
			}
			return err
		}, &repo)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"URL", "Status", "Imported", "Updated"})
		for _, u := range urls {
			t.AppendRow(table.Row{u.URL, u.Status, u.ImportedAt.Local().Format(time.DateTime), u.UpdatedAt.Local().Format(time.DateTime)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
