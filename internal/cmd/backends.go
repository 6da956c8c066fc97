package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/noisyblur/internal/backend"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List render backends in selection order",
	RunE: func(cmd *cobra.Command, args []string) error {
		for i, name := range backend.Candidates("") {
			fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}
