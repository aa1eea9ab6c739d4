package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/rnvim/rnvimserver/builder"
	"github.com/rnvim/rnvimserver/config"
	"github.com/rnvim/rnvimserver/exec"
	"github.com/rnvim/rnvimserver/logger"
	"github.com/rnvim/rnvimserver/protocol"
	"github.com/rnvim/rnvimserver/server"
)

// run executes the command line and returns the process exit status.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) int {
	code := 0
	app := &cli.App{
		Name:      "rnvimserver",
		Usage:     "Completion and object browser helper between the editor and R",
		Version:   Version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.StringFlag{Name: "log-file", Usage: "Log file (default: <state dir>/logs/rnvimserver.log)"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Config file (default: <config dir>/config.yaml)"},
		},
		HideHelpCommand: true,
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c, getenv)
			if err != nil {
				fmt.Fprintln(stderr, err)
				code = 1
				return nil
			}
			initLogging(cfg, stderr)

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			checkRuntime(ctx, cfg, stderr)

			srv := server.New(cfg, server.Options{Stdout: stdout, Stderr: stderr})
			if err := srv.Run(ctx, stdin); err != nil {
				logger.Get().Error("server failed", "error", err)
				fmt.Fprintln(stderr, err)
				code = protocol.ExitCode(err)
			}
			return nil
		},
	}
	// Disable default exit error handler so the status is ours to return
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	if err := app.Run(args); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return code
}

// loadConfig layers the config file, the environment and the flags.
func loadConfig(c *cli.Context, getenv func(string) string) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(getenv)
	if c.Bool("debug") {
		cfg.Debug = true
	}
	if p := c.String("log-file"); p != "" {
		cfg.LogFile = p
	}
	cfg.Finalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkRuntime warns when the runtime used for cache builds is missing.
// The version is only probed when debugging since it starts the runtime.
func checkRuntime(ctx context.Context, cfg *config.Config, stderr io.Writer) {
	log := logger.WithComponent("cli")
	path, err := builder.LookRuntime(cfg.RPath)
	if err != nil {
		log.Warn("runtime missing", "error", err)
		fmt.Fprintf(stderr, "Warning: %v\n", err)
		return
	}
	log.Info("runtime found", "path", path)
	if cfg.Debug {
		log.Debug("runtime version", "version", builder.RuntimeVersion(ctx, exec.NewRealExecutor(), path))
	}
}

func initLogging(cfg *config.Config, stderr io.Writer) {
	logger.SetDebug(cfg.Debug)
	path := cfg.LogFile
	if path == "" {
		p, err := logger.DefaultLogPath()
		if err != nil {
			fmt.Fprintf(stderr, "Warning: failed to get default log path: %v\n", err)
			return
		}
		path = p
	}
	if err := logger.Init(path); err != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}
}
