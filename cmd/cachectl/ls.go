package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

func lsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ls",
		Usage:     "list indexed entries",
		UsageText: "cachectl ls [DIR] [--json] [--keys]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print entries as JSON lines"},
			&cli.BoolFlag{Name: "keys", Usage: "include canonical keys"},
		},
		Action: lsAction,
	}
}

func lsAction(_ context.Context, cmd *cli.Command) error {
	store, err := openStore(cmd)
	if err != nil {
		return err
	}
	out := cmd.Root().Writer

	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		for _, e := range store.Entries() {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := "NAME\tFILE\tSIZE\tZIP\tMODIFIED"
	if cmd.Bool("keys") {
		header += "\tKEY"
	}
	_, _ = fmt.Fprintln(tw, header)

	var total int64
	for _, e := range store.Entries() {
		line := fmt.Sprintf("%s\t%s\t%s\t%t\t%s",
			e.Name, e.File, humanize.Bytes(uint64(e.Size)), e.Compressed, humanize.Time(e.ModTime))
		if cmd.Bool("keys") {
			line += "\t" + e.Key
		}
		_, _ = fmt.Fprintln(tw, line)
		total += e.Size
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "%s entries, %s\n",
		humanize.Comma(int64(store.Len())), humanize.Bytes(uint64(total)))
	return err
}
