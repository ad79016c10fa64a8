package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joshp123/overlap-go/internal/config"
	"github.com/joshp123/overlap-go/internal/report"
)

func newMatrixCmd(cfg *config.Config) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print the viewport matrix a run would use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := loadMatrix(path)
			if err != nil {
				return err
			}
			if globalOpts.output == report.ModeJSON {
				enc, err := json.MarshalIndent(m.Configs(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(enc))
				return nil
			}
			enc, err := yaml.Marshal(m)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(enc))
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "matrix", cfg.MatrixFile, "Viewport matrix YAML (default: reference matrix)")

	return cmd
}
