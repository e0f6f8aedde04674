// Package commands implements iviplugind's command-line surface.
package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/saimizi/iviplugind/internal/capability/mockcapability"
	"github.com/saimizi/iviplugind/internal/config"
	"github.com/saimizi/iviplugind/internal/lifecycle"
	"github.com/saimizi/iviplugind/internal/logger"
)

// Execute runs the root command.
func Execute() error {
	return newApp().Run(os.Args)
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "iviplugind"
	app.Usage = "IVI compositor control-plane plugin"
	app.Description = "iviplugind mirrors a Wayland compositor's surfaces and layers and exposes\n" +
		"them over a length-prefixed JSON-RPC socket (spec.md §4)."
	app.Version = "0.1.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config", Usage: "path to config file (default: discovered via XDG_CONFIG_HOME)"},
		cli.StringFlag{Name: "socket-path", Usage: "UNIX socket path to listen on (overrides config)"},
		cli.BoolFlag{Name: "simulate", Usage: "run against the in-process mock capability instead of a real compositor"},
	}
	app.Action = runServe

	app.Commands = []cli.Command{
		{
			Name:  "validate-config",
			Usage: "load and validate the configuration, then exit",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "config", Usage: "path to config file"},
				cli.StringFlag{Name: "socket-path", Usage: "UNIX socket path (overrides config)"},
			},
			Action: runValidateConfig,
		},
	}

	return app
}

func loadConfigFromFlags(c *cli.Context) (*config.Config, error) {
	overrides := config.Overrides{}
	if sp := c.String("socket-path"); sp != "" {
		overrides.SocketPath = sp
	}
	if c.Bool("simulate") {
		overrides.Simulate = true
	}

	cfg, err := config.Load(c.String("config"), overrides)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfigFromFlags(c)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	if !cfg.Simulate {
		return fmt.Errorf("iviplugind: no real Layout Capability binding is wired; pass --simulate to run against the mock")
	}

	mockCap := mockcapability.New()
	plugin := lifecycle.New(cfg.SocketPath, cfg.OutboxCapacity, cfg.AuditLogPath, cfg.AuditLogCapacity, mockCap)
	plugin.SetMaxFrameSize(uint32(cfg.MaxFrameSize))
	if cfg.Diagnostics.Enabled {
		plugin.EnableDiagnostics(cfg.Diagnostics.Addr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := plugin.Start(ctx); err != nil {
		return fmt.Errorf("starting plugin: %w", err)
	}

	logger.Info("iviplugind: running", logger.ClientAddr(cfg.SocketPath))
	<-ctx.Done()

	plugin.Stop(context.Background())
	return nil
}

func runValidateConfig(c *cli.Context) error {
	if _, err := loadConfigFromFlags(c); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "configuration OK")
	return nil
}
