package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshp123/overlap-go/internal/browser"
	"github.com/joshp123/overlap-go/internal/config"
)

func newInstallCmd(cfg *config.Config) *cobra.Command {
	var browsers string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the playwright driver and browsers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engines, err := browser.ParseEngines(browsers)
			if err != nil {
				return err
			}
			if err := browser.Install(engines); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", browsers)
			return nil
		},
	}

	cmd.Flags().StringVar(&browsers, "browsers", cfg.Browsers, "Browsers to install")

	return cmd
}
