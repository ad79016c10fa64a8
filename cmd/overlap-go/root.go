package main

import (
	"github.com/spf13/cobra"

	"github.com/joshp123/overlap-go/internal/config"
)

const version = "0.1.0"

func newRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "overlap-go",
		Short:         "responsive panel overlap checks across browsers and viewports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return applyGlobalOptions(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	rootCmd.Version = version
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	bindGlobalFlags(rootCmd, cfg)

	rootCmd.AddCommand(
		newRunCmd(cfg),
		newCheckCmd(),
		newMatrixCmd(cfg),
		newDevicesCmd(),
		newInstallCmd(cfg),
	)
	return rootCmd
}
