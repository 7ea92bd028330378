package main

import (
	"fmt"

	"github.com/MrEthical07/goContacts/internal/confloader"
	"github.com/urfave/cli/v2"
)

// Build information, set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "contactsd",
		Usage:   "contacts API server",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML configuration file",
				EnvVars: []string{"CONTACTS_CONFIG_FILE"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			checkConfigCommand(),
		},
	}
}

// loadConfig reads the file named by --config, the environment and any
// flag overrides.
func loadConfig(c *cli.Context, overrides map[string]any) (confloader.Config, error) {
	opts := []confloader.Option{confloader.WithConfigFile(c.String("config"))}
	if len(overrides) > 0 {
		opts = append(opts, confloader.WithOverrides(overrides))
	}
	cfg, err := confloader.Load(opts...)
	if err != nil {
		return confloader.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
