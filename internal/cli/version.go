package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Set via -ldflags "-X github.com/hupe1980/encapt/internal/cli.version=...".
var (
	version = "dev"
	commit  = "none"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of encapt",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "encapt %s (%s)\n", version, commit)
		},
	}
}
