package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joshp123/overlap-go/internal/browser"
)

func newDevicesCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List device descriptors usable with --device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := browser.ListDeviceNames()
			if err != nil {
				return err
			}
			for _, name := range filterNames(names, filter) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Only show names containing this text")

	return cmd
}

func filterNames(names []string, filter string) []string {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return names
	}
	out := []string{}
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), filter) {
			out = append(out, name)
		}
	}
	return out
}
