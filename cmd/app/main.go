// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"codeberg.org/willtank/willtank/internal/config"
	"codeberg.org/willtank/willtank/internal/server"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cmd := &cli.Command{
		Name:    "willtank",
		Usage:   "Check-in tracking and executor unlock service",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Action:  server.Run,
		// Flags are inherited by the subcommands.
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the web server (default)",
				Action: server.Run,
			},
			{
				Name:   "scan",
				Usage:  "Run one inactivity scan and exit",
				Action: server.Scan,
			},
			{
				Name:      "migrate",
				Usage:     "Apply database migrations",
				ArgsUsage: "[up|down|reset]",
				Action:    server.Migrate,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
