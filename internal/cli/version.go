// ABOUTME: Version command
// ABOUTME: Prints product and version information
package cli

import (
	"fmt"

	"github.com/Resonate-Protocol/wsclient/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the wsclient version",
		Args:  cobra.NoArgs,
		// No config needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (%s)\n", version.Product, version.Version, version.Manufacturer)
			return nil
		},
	}
}
