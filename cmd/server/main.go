package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"visionstream/internal/app"
	"visionstream/internal/config"

	"github.com/urfave/cli/v2"
)

func main() {
	cliApp := &cli.App{
		Name:  "visionstream",
		Usage: "serve the annotated camera stream, snapshots and single-image analysis",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "load settings from `FILE` (defaults to ./.env)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP port, overrides PORT",
			},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func run(c *cli.Context) error {
	cfg := config.Load(c.String("env-file"))
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg)
	if err != nil {
		return err
	}

	runErr := application.Run(ctx)
	if err := application.Close(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
	return runErr
}
