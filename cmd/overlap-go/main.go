package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joshp123/overlap-go/internal/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		var failed *casesFailedError
		if !errors.As(err, &failed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	if err := rejectBoolEqualsArgs(args); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(cfg)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
