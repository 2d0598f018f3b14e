package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/coreos/go-systemd/v22/journal"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/stx-tools/configcheck/internal/ini"
	"github.com/stx-tools/configcheck/internal/l10n"
	"github.com/stx-tools/configcheck/internal/report"
	"github.com/stx-tools/configcheck/internal/schema"
	"github.com/stx-tools/configcheck/internal/validate"
)

func validateAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit(l10n.T("validate expects exactly one PATH argument"), exitFatal)
	}
	path := c.Args().First()

	settings, logger, err := loadSettings(c)
	if err != nil {
		return err
	}
	if c.IsSet("format") {
		settings.Format = c.String("format")
	}
	if c.IsSet("schema") {
		settings.SchemaFile = c.String("schema")
	}
	if c.Bool("journal") {
		settings.Journal = true
	}
	if c.Bool("no-spinner") {
		settings.Spinner = false
	}

	render, err := renderer(settings.Format)
	if err != nil {
		return cli.Exit(err, exitSettings)
	}

	reg, err := loadSchema(settings.SchemaFile)
	if err != nil {
		return err
	}
	run, err := validate.NewRun(reg, logger)
	if err != nil {
		return cli.Exit(l10n.T("cannot build rules: %v", err), exitSettings)
	}

	stop := startSpinner(settings.Spinner, l10n.T(" Validating %s...", path))
	rep, err := validate.File(run, path)
	stop()

	if err != nil {
		var parseErr *ini.MalformedInputError
		if errors.As(err, &parseErr) {
			logger.Debug("input is malformed", "file", path, "line", parseErr.Line)
		}
		return cli.Exit(err, exitFatal)
	}

	if err := render(rep, c.App.Writer); err != nil {
		return cli.Exit(l10n.T("cannot write report: %v", err), exitFatal)
	}
	if settings.Format == "text" {
		fmt.Fprintln(c.App.Writer, summary(rep))
	}

	if settings.Journal {
		sendJournal(run.Logger, run.ID.String(), path, rep)
	}

	if !rep.Passed() {
		return cli.Exit("", exitFail)
	}
	return nil
}

func renderer(format string) (func(*report.Report, io.Writer) error, error) {
	switch format {
	case "text":
		return (*report.Report).WriteText, nil
	case "json":
		return (*report.Report).WriteJSON, nil
	case "yaml":
		return (*report.Report).WriteYAML, nil
	}
	return nil, errors.New(l10n.T("unknown report format %q: must be one of text, json, yaml", format))
}

func loadSchema(path string) (*schema.Registry, error) {
	if path == "" {
		return schema.Default(), nil
	}
	reg, err := schema.LoadFile(path)
	if err != nil {
		return nil, cli.Exit(l10n.T("cannot load schema: %v", err), exitSettings)
	}
	return reg, nil
}

func summary(rep *report.Report) string {
	errs := l10n.TN("%d error", "%d errors", uint32(rep.Errors()), rep.Errors())
	warns := l10n.TN("%d warning", "%d warnings", uint32(rep.Warnings()), rep.Warnings())
	verdict := l10n.TC("verdict", "PASS")
	if !rep.Passed() {
		verdict = l10n.TC("verdict", "FAIL")
	}
	return l10n.T("%s: %s, %s", verdict, errs, warns)
}

// startSpinner shows progress on stderr when it is a terminal. The returned
// function stops it.
func startSpinner(enabled bool, suffix string) func() {
	if !enabled || !term.IsTerminal(int(os.Stderr.Fd())) {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	s.Start()
	return s.Stop
}

func sendJournal(logger *slog.Logger, runID, path string, rep *report.Report) {
	if !journal.Enabled() {
		logger.Debug("journal not available, summary not sent")
		return
	}
	priority := journal.PriInfo
	if !rep.Passed() {
		priority = journal.PriWarning
	}
	vars := map[string]string{
		"CONFIGCHECK_RUN":      runID,
		"CONFIGCHECK_FILE":     path,
		"CONFIGCHECK_VERDICT":  string(rep.Verdict()),
		"CONFIGCHECK_ERRORS":   fmt.Sprint(rep.Errors()),
		"CONFIGCHECK_WARNINGS": fmt.Sprint(rep.Warnings()),
	}
	msg := fmt.Sprintf("configcheck %s: %s", path, summary(rep))
	if err := journal.Send(msg, priority, vars); err != nil {
		logger.Warn("cannot send summary to journal", "error", err)
	}
}
