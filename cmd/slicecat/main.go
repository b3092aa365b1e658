// Command slicecat reads byte ranges from files, memory maps, and object
// stores through the slicer interface.
//
//	slicecat read --backend mmap --offset 4096 --length 512 data.bin
//	slicecat stat --backend s3 --bucket logs segments/000001.log
//	slicecat parquet --backend gcs --bucket tables part-0.parquet
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 60 * time.Second
	defaultChunk   = 1 << 20

	loggerKey = "logger"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		logger(app).Fatal("slicecat failed", zap.Error(err))
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "slicecat"
	app.Usage = "read exact byte ranges from any slicer backend"
	app.Metadata = map[string]interface{}{}
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:   "debug",
			Usage:  "log every slice operation",
			EnvVar: "SLICECAT_DEBUG",
		},
		cli.DurationFlag{
			Name:  "timeout",
			Value: defaultTimeout,
			Usage: "deadline for the whole command (0 disables)",
		},
	}
	app.Before = func(c *cli.Context) error {
		l, err := newLogger(c.GlobalBool("debug"))
		if err != nil {
			return err
		}
		c.App.Metadata[loggerKey] = l
		return nil
	}
	app.After = func(c *cli.Context) error {
		_ = logger(c.App).Sync()
		return nil
	}
	app.Commands = []cli.Command{
		ReadCmd(),
		StatCmd(),
		ParquetCmd(),
	}
	return app
}

// logger returns the logger installed by Before, or a no-op logger.
func logger(app *cli.App) *zap.Logger {
	if l, ok := app.Metadata[loggerKey].(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// commandContext derives the context for one command from the global
// --timeout flag and process signals.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	timeout := c.GlobalDuration("timeout")
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}
