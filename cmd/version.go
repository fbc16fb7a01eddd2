package cmd

import (
	"dgsync/internal/version"

	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return version.Get().Write(cmd.OutOrStdout(), short)
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "Show only the version number")
	return cmd
}

func init() { //nolint:gochecknoinits // cobra command registration
	rootCmd.AddCommand(newVersionCmd())
}
