// Command cachectl inspects cacheproxy file tier directories.
//
//	cachectl ls /var/cache/app
//	cachectl check /var/cache/app
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jonwraymond/cacheproxy/cache"
	"github.com/jonwraymond/cacheproxy/observe"
)

func main() {
	os.Exit(realMain(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func realMain(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if err := newApp(stdout, stderr).Run(ctx, args); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "cachectl",
		Usage:     "inspect cacheproxy entry directories",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Value:   "warn",
				Sources: cli.EnvVars("CACHEPROXY_LOG_LEVEL"),
				Validator: func(level string) error {
					if !observe.IsLogLevel(level) {
						return fmt.Errorf("%w: %q", observe.ErrInvalidLogLevel, level)
					}
					return nil
				},
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "parallel decoders used while scanning",
				Value:   cache.DefaultScanWorkers,
				Sources: cli.EnvVars("CACHEPROXY_SCAN_WORKERS"),
			},
		},
		Commands: []*cli.Command{
			lsCommand(),
			checkCommand(),
		},
	}
}

// openStore opens the directory named by the first argument. Without one it
// reads CACHEPROXY_DIR the way cache.LoadConfigFromEnv does.
func openStore(cmd *cli.Command) (*cache.FileStore, error) {
	cfg := cache.Config{Dir: cmd.Args().First()}
	if cfg.Dir == "" {
		var err error
		if cfg, err = cache.LoadConfigFromEnv(); err != nil {
			return nil, fmt.Errorf("%s: directory argument or CACHEPROXY_DIR: %w", cmd.Name, err)
		}
	}
	cfg.LogLevel = cmd.String("log-level")
	cfg.ScanWorkers = cmd.Int("workers")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := observe.NewLoggerWithWriter(cfg.LogLevel, cmd.Root().ErrWriter)
	return cache.NewFileStore(cfg.Dir,
		cache.WithStoreLogger(logger),
		cache.WithStoreScanWorkers(cfg.ScanWorkers))
}
