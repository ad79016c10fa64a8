package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var boolFlagNames = []string{"headless", "headed"}

// rejectBoolEqualsArgs refuses --headless=false style arguments; the
// headless/headed pair is the only way to flip the mode.
func rejectBoolEqualsArgs(args []string) error {
	for _, arg := range args {
		if arg == "--" {
			return nil
		}
		if !strings.HasPrefix(arg, "--") || !strings.Contains(arg, "=") {
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		name = name[:strings.Index(name, "=")]
		for _, flag := range boolFlagNames {
			if flag == name {
				return fmt.Errorf("use --%s (omit =true/false)", flag)
			}
		}
	}
	return nil
}

// resolveHeadless folds --headed into headless.
func resolveHeadless(cmd *cobra.Command, headless *bool) error {
	headlessChanged := cmd.Flags().Changed("headless")
	headedChanged := cmd.Flags().Changed("headed")
	if headedChanged && headlessChanged {
		return errors.New("use either --headless or --headed")
	}
	if headedChanged {
		*headless = false
	}
	if headlessChanged {
		*headless = true
	}
	return nil
}
