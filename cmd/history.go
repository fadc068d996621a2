package cmd

import (
	"github.com/kamusis/cubepub/internal/config"
	"github.com/kamusis/cubepub/internal/ui"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent publish runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		h, err := config.LoadHistory()
		if err != nil {
			return err
		}
		ui.RenderHistory(cmd.OutOrStdout(), h.Recent(limit), plainOutput(cmd))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 for all)")
}
