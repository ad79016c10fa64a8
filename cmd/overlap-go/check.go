package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshp123/overlap-go/internal/geometry"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check RECT RECT",
		Short: "Report whether two x,y,w,h rectangles overlap",
		Args:  requireArgs(2, "check requires two rectangles (x,y,w,h)"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := geometry.ParseRect(args[0])
			if err != nil {
				return err
			}
			b, err := geometry.ParseRect(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), checkLine(a, b))
			return nil
		},
	}
}

func checkLine(a, b geometry.Rect) string {
	inter, ok := geometry.Intersection(a, b)
	if !ok {
		return "overlap=false"
	}
	return fmt.Sprintf("overlap=true intersection=%s", inter)
}
