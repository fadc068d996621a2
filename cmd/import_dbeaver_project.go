package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/kamusis/cubepub/internal/datasource"
	"github.com/kamusis/cubepub/internal/dbeaver"
	"github.com/kamusis/cubepub/internal/logging"
	"github.com/kamusis/cubepub/internal/publish"
	"github.com/spf13/cobra"
)

var (
	dbpPath    string
	connFilter string
	dryRun     bool
)

// importDbeaverProjectCmd represents the import-dbeaver-project command
var importDbeaverProjectCmd = &cobra.Command{
	Use:   "import-dbeaver-project",
	Short: "Publish DBeaver .dbp project connections as server datasources",
	Long: `Publish the connections of a DBeaver .dbp project file as datasource
connections on the server.

Each connection is compared with the server first: identical connections are
skipped, missing ones are added and differing ones are replaced. With
feedback on, adding and replacing ask for confirmation.`,
	RunE: runImportDbeaverProject,
}

func init() {
	rootCmd.AddCommand(importDbeaverProjectCmd)

	importDbeaverProjectCmd.Flags().StringVar(&dbpPath, "dbp", "", "Path to the .dbp file (required)")
	importDbeaverProjectCmd.Flags().StringVar(&connFilter, "connection", "", "Only import the connection with this name or ID")
	importDbeaverProjectCmd.Flags().BoolVar(&dryRun, "dry_run", false, "Show what would be published without sending anything")
	importDbeaverProjectCmd.Flags().Bool("feedback", false, "Ask before publishing each connection (default: on when interactive)")

	importDbeaverProjectCmd.MarkFlagRequired("dbp")
}

func runImportDbeaverProject(cmd *cobra.Command, args []string) error {
	archive, err := dbeaver.ParseDBP(dbpPath)
	if err != nil {
		return fmt.Errorf("failed to parse dbp file: %w", err)
	}
	if archive.DataSources == nil || len(archive.DataSources.Connections) == 0 {
		return fmt.Errorf("no data sources found in dbp file")
	}

	ids := make([]string, 0, len(archive.DataSources.Connections))
	if connFilter != "" {
		id, _, err := archive.FindConnection(connFilter)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	} else {
		for id := range archive.DataSources.Connections {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}

	c, _, err := serverClient(cmd)
	if err != nil {
		return err
	}
	p := publish.NewPublisher(c, *logging.Default())

	feedback := feedbackEnabled(cmd)
	confirm, done := confirmation(cmd, feedback)
	defer done()

	result := &dbeaver.ImportResult{Discovered: len(ids)}
	var planned []string

	for _, id := range ids {
		def := archive.ConvertConnection(id, archive.DataSources.Connections[id])
		cmp := datasource.Compare(def, func(name string) (datasource.Definition, bool) {
			return p.LookupDatasource(cmd.Context(), name)
		})

		if dryRun {
			planned = append(planned, fmt.Sprintf("%s: %s", def.Name, cmp))
			continue
		}

		decision := publish.Resolve(cmp, !feedback, confirm)
		switch decision {
		case publish.Proceed, publish.ProceedWithOverwrite:
			r := p.PublishDatasource(cmd.Context(), def, decision == publish.ProceedWithOverwrite)
			if !r.OK() {
				result.Errors = append(result.Errors, dbeaver.ImportError{ConnectionName: def.Name, Message: r.Message})
				continue
			}
			if decision == publish.ProceedWithOverwrite {
				result.Overwritten++
			} else {
				result.Created++
			}
		default:
			result.Skipped++
		}
	}

	renderImportResult(cmd.OutOrStdout(), result, dryRun, planned)
	if len(result.Errors) > 0 {
		return fmt.Errorf("%d connection(s) failed to publish", len(result.Errors))
	}
	return nil
}

func renderImportResult(w io.Writer, result *dbeaver.ImportResult, dryRun bool, planned []string) {
	if dryRun {
		fmt.Fprintf(w, "Dry run: %d connections discovered\n", result.Discovered)
		for i, line := range planned {
			fmt.Fprintf(w, "  [%d] %s\n", i+1, line)
		}
		return
	}

	fmt.Fprintln(w, "Import completed:")
	fmt.Fprintf(w, "  Discovered: %d connections\n", result.Discovered)
	fmt.Fprintf(w, "  Created: %d datasources\n", result.Created)
	fmt.Fprintf(w, "  Skipped: %d\n", result.Skipped)
	fmt.Fprintf(w, "  Overwritten: %d\n", result.Overwritten)

	if len(result.Errors) > 0 {
		fmt.Fprintln(w, "\nErrors:")
		for _, err := range result.Errors {
			fmt.Fprintf(w, "  - %s: %s\n", err.ConnectionName, err.Message)
		}
	}
}
