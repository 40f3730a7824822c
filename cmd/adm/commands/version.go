package commands

import (
	"derjachat/internal/version"

	"github.com/spf13/cobra"
)

// VersionCommand returns the version command
func VersionCommand(service string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, version.Current(service))
		},
	}
}
