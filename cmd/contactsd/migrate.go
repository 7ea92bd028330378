package main

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goContacts/internal/logging"
	"github.com/MrEthical07/goContacts/internal/stores"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations and exit",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c, nil)
			if err != nil {
				return err
			}
			if cfg.Database.Driver != "postgres" {
				return errors.New("migrate requires the postgres driver")
			}
			log := logging.New(cfg.Log)

			db, err := stores.Open(c.Context, cfg.Database.DSN, cfg.Database.Pool)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := stores.Migrate(c.Context, db); err != nil {
				return err
			}
			log.Info(c.Context, "migrations applied")
			fmt.Fprintln(c.App.Writer, "migrations applied")
			return nil
		},
	}
}
