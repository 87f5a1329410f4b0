// Package cli implements the idlink command-line interface, a thin shell
// over the pipeline packages.
package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "idlink",
	Short: "Batch record linkage and canonical identity migration",
	Long: `idlink matches legacy source records (POS, CRM, spreadsheet exports)
against a target record set and assigns each legacy id a single stable
UUID, idempotently across re-runs. The identity store is the source of
truth: once a legacy id has a UUID, it keeps it forever.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("store", "", "Path to identity store database (overrides IDLINK_STORE_PATH)")
}

// mustMarkRequired marks flags as required at registration time. A failure
// here means the flag name is wrong, which is a programming error.
func mustMarkRequired(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		if err := cmd.MarkFlagRequired(name); err != nil {
			panic(err)
		}
	}
}
