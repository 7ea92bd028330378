package main

import (
	"fmt"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/urfave/cli/v2"
)

func checkConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "check-config",
		Usage: "validate the configuration and print lint findings",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "fail-on",
				Usage: "lowest severity that fails the check: info, warn or high",
				Value: "high",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c, nil)
			if err != nil {
				return err
			}
			min, err := parseSeverity(c.String("fail-on"))
			if err != nil {
				return err
			}

			lint := cfg.Config.Lint()
			for _, w := range lint {
				fmt.Fprintf(c.App.Writer, "%-5s %-24s %s\n", w.Severity, w.Code, w.Message)
			}
			if len(lint) == 0 {
				fmt.Fprintln(c.App.Writer, "configuration ok")
			}
			return lint.AsError(min)
		},
	}
}

func parseSeverity(s string) (goContacts.LintSeverity, error) {
	switch s {
	case "info":
		return goContacts.LintInfo, nil
	case "warn":
		return goContacts.LintWarn, nil
	case "high":
		return goContacts.LintHigh, nil
	default:
		return 0, fmt.Errorf("unknown severity %q", s)
	}
}
