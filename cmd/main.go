package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "postify",
		Usage: "Postify authentication API",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run migrations and start the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Create or update database tables",
				Action: migrate,
			},
			{
				Name:   "seed",
				Usage:  "Create the verified test@example.com account",
				Action: seedUsers,
			},
			{
				Name:   "prune-codes",
				Usage:  "Delete expired verification codes and dead sessions",
				Action: pruneCodes,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("postify exited")
	}
}
