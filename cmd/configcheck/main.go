package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/stx-tools/configcheck/internal/conf"
	"github.com/stx-tools/configcheck/internal/l10n"
)

// Version is set at build time.
var Version = "dev"

const (
	exitPass     = 0
	exitFail     = 1
	exitFatal    = 2
	exitSettings = 3
)

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "configcheck"
	app.Version = Version
	app.Usage = l10n.T("validate controller configuration files before deployment")
	app.HideHelpCommand = true

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       l10n.T("read settings from `FILE` and its .d drop-in directory"),
			DefaultText: conf.DefaultPath,
			EnvVars:     []string{"CONFIGCHECK_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: l10n.T("log at `LEVEL` (DEBUG, INFO, WARN, ERROR)"),
		},
	}

	schemaFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:    "schema",
			Aliases: []string{"s"},
			Usage:   l10n.T("use the schema and rules in `FILE` instead of the built-in ones"),
		}
	}

	app.Commands = []*cli.Command{
		{
			Name:      "validate",
			Usage:     l10n.T("check a configuration file and print a report"),
			ArgsUsage: "PATH",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "format",
					Aliases: []string{"f"},
					Usage:   l10n.T("print the report as `FORMAT` (text, json, yaml)"),
				},
				schemaFlag(),
				&cli.BoolFlag{
					Name:  "journal",
					Usage: l10n.T("also send the run summary to the systemd journal"),
				},
				&cli.BoolFlag{
					Name:  "no-spinner",
					Usage: l10n.T("do not show progress on the terminal"),
				},
			},
			Action: validateAction,
		},
		{
			Name:   "schema",
			Usage:  l10n.T("print the sections, keys and rules of the active schema"),
			Flags:  []cli.Flag{schemaFlag()},
			Action: schemaAction,
		},
	}

	return app
}

// loadSettings resolves tool settings and the logger for one invocation.
func loadSettings(c *cli.Context) (conf.Config, *slog.Logger, error) {
	source := conf.DefaultSource()
	if c.IsSet("config") {
		path := c.String("config")
		source = &conf.ConfigSource{Path: path, DropInDir: path + ".d"}
	}
	settings, err := source.Read()
	if err != nil {
		return settings, nil, cli.Exit(l10n.T("cannot load settings: %v", err), exitSettings)
	}

	if c.IsSet("log-level") {
		level, err := conf.ParseLevel(c.String("log-level"))
		if err != nil {
			return settings, nil, cli.Exit(err, exitSettings)
		}
		settings.LogLevel = level
	}

	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: settings.LogLevel}))
	return settings, logger, nil
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFatal)
	}
}
