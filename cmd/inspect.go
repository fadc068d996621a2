package cmd

import (
	"fmt"

	"github.com/kamusis/cubepub/internal/datasource"
	"github.com/kamusis/cubepub/internal/logging"
	"github.com/kamusis/cubepub/internal/model"
	"github.com/kamusis/cubepub/internal/publish"
	"github.com/kamusis/cubepub/internal/repository"
	"github.com/kamusis/cubepub/internal/ui"
	"github.com/spf13/cobra"
)

var compareCmd = &cobra.Command{
	Use:   "compare <manifest.yaml>",
	Short: "Compare a model's datasource with the server's",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := model.Load(args[0])
		if err != nil {
			return err
		}
		local, ok := m.Datasource()
		if !ok {
			return fmt.Errorf("manifest %s has no datasource", args[0])
		}

		c, _, err := serverClient(cmd)
		if err != nil {
			return err
		}
		p := publish.NewPublisher(c, *logging.Default())

		var remote *datasource.Definition
		cmp := datasource.Compare(local, func(name string) (datasource.Definition, bool) {
			def, found := p.LookupDatasource(cmd.Context(), name)
			if found {
				remote = &def
			}
			return def, found
		})

		ui.RenderComparison(cmd.OutOrStdout(), local, remote, cmp, plainOutput(cmd))
		return nil
	},
}

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List datasource connections defined on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := serverClient(cmd)
		if err != nil {
			return err
		}
		defs, err := publish.NewPublisher(c, *logging.Default()).ListDatasources(cmd.Context())
		if err != nil {
			return err
		}
		ui.RenderConnections(cmd.OutOrStdout(), defs, plainOutput(cmd))
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Show the server repository tree",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		depth, _ := cmd.Flags().GetInt("depth")
		showHidden, _ := cmd.Flags().GetBool("show-hidden")
		filter, _ := cmd.Flags().GetString("filter")

		c, _, err := serverClient(cmd)
		if err != nil {
			return err
		}
		listing, err := (&repository.HTTPBrowser{Client: c}).ListChildren(cmd.Context(), depth, filter, showHidden)
		if err != nil {
			return err
		}
		ui.RenderTree(cmd.OutOrStdout(), repository.Build(listing, depth))
		return nil
	},
}

var existsCmd = &cobra.Command{
	Use:   "exists <repo-path> <name>",
	Short: "Check whether a file exists in a repository folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := serverClient(cmd)
		if err != nil {
			return err
		}
		found, err := repository.Exists(cmd.Context(), &repository.HTTPBrowser{Client: c}, args[0], args[1])
		if err != nil {
			return err
		}
		if found {
			fmt.Fprintf(cmd.OutOrStdout(), "%s exists in %s\n", args[1], args[0])
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s not found in %s\n", args[1], args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(connectionsCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(existsCmd)

	treeCmd.Flags().Int("depth", repository.Unbounded, "Maximum depth to show (-1 for unbounded)")
	treeCmd.Flags().Bool("show-hidden", false, "Include hidden files")
	treeCmd.Flags().String("filter", "*", "Name filter passed to the server")
}
