package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/cacheproxy/health"
)

var errUnhealthy = errors.New("cachectl: cache directory is unhealthy")

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "verify the directory is writable and every entry file was indexed",
		UsageText: "cachectl check [DIR] [--timeout 5s]",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "timeout", Value: health.DefaultTimeout, Usage: "overall check timeout"},
		},
		Action: checkAction,
	}
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}

	agg := health.NewAggregator(cmd.Duration("timeout"))
	agg.Register(store.Checker())
	agg.Register(store.IndexChecker())

	results := agg.CheckAll(ctx)
	out := cmd.Root().Writer
	for _, name := range agg.CheckerNames() {
		r := results[name]
		_, _ = fmt.Fprintf(out, "%-12s %-9s %s\n", name, r.Status, r.Summary())
		for _, file := range r.Skipped {
			_, _ = fmt.Fprintf(out, "%-12s %-9s %s\n", "", "skipped", file)
		}
	}

	status := health.OverallStatus(results)
	_, _ = fmt.Fprintf(out, "%-12s %s (%d entries)\n", "overall", status, store.Len())
	if status == health.StatusUnhealthy {
		return errUnhealthy
	}
	return nil
}
