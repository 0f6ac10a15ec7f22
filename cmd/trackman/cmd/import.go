package cmd

import (
	"fmt"
	"os"
	"trackman-importer/internal/service"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var force bool

func init() {
	importCmd.Flags().BoolVar(&force, "force", false, "re-import URLs already in the ledger")
	importFileCmd.Flags().BoolVar(&force, "force", false, "re-import URLs already in the ledger")
	combineCmd.Flags().BoolVar(&force, "force", false, "re-import URLs already in the ledger")

	rootCmd.AddCommand(importCmd, importFileCmd, pendingCmd, combineCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <url>...",
	Short: "Imports Trackman report links.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args, service.ModeRegular)
	},
}

var importFileCmd = &cobra.Command{
	Use:   "import-file <path>",
	Short: "Imports every report link found in a text file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		urls := service.ExtractURLs(string(text))
		if len(urls) == 0 {
			return fmt.Errorf("no URLs found in %s", args[0])
		}
		return runImport(cmd, urls, service.ModeRegular)
	},
}

var combineCmd = &cobra.Command{
	Use:   "combine <url>...",
	Short: "Imports Trackman combine test links.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args, service.ModeCombine)
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Retries every URL still pending in the ledger.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var importer *service.ImportService
		var res *service.ImportResult
		err := withApp(cmd.Context(), func() (err error) {
			res, err = importer.ImportPending(cmd.Context())
			return err
		}, &importer)
		if res != nil {
			printImport(res)
		}
		if err != nil {
			return err
		}
		return failedErr(res)
	},
}

func runImport(cmd *cobra.Command, urls []string, mode service.Mode) error {
	var importer *service.ImportService
	var res *service.ImportResult
	err := withApp(cmd.Context(), func() (err error) {
		res, err = importer.Import(cmd.Context(), urls, service.ImportOptions{Mode: mode, Force: force})
		return err
	}, &importer)
	if res != nil {
		printImport(res)
	}
	if err != nil {
		return err
	}
	return failedErr(res)
}

func failedErr(res *service.ImportResult) error {
	if n := res.Failed(); n > 0 {
		return fmt.Errorf("%d of %d urls failed", n, len(res.Outcomes))
	}
	return nil
}

func printImport(res *service.ImportResult) {
	if len(res.Outcomes) == 0 {
		fmt.Println("Nothing to import.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"URL", "Report", "Status", "Shots", "Groups"})
	for _, o := range res.Outcomes {
		status := string(o.Status)
		if o.Skipped {
			status = "Skipped (already imported)"
		}
		t.AppendRow(table.Row{o.URL, o.ReportID, status, o.Shots, o.Groups})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(res.Reconciled) > 0 {
		printCollections(res.Reconciled)
	}
}
