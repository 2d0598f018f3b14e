// Package validate runs the full pipeline over one configuration file:
// parse, coerce, cross-field rules and report.
package validate

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/stx-tools/configcheck/internal/coerce"
	"github.com/stx-tools/configcheck/internal/ini"
	"github.com/stx-tools/configcheck/internal/report"
	"github.com/stx-tools/configcheck/internal/rules"
	"github.com/stx-tools/configcheck/internal/schema"
)

// Run carries everything a validation needs. It is passed explicitly so
// that runs are independent and repeatable.
type Run struct {
	ID     uuid.UUID
	Logger *slog.Logger
	Schema *schema.Registry
	Rules  *rules.Set
}

// NewRun prepares a run for reg, building its rule set from the schema.
// A nil logger uses slog.Default.
func NewRun(reg *schema.Registry, logger *slog.Logger) (Run, error) {
	set, err := rules.FromSchema(reg)
	if err != nil {
		return Run{}, fmt.Errorf("failed to build rules: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New()
	return Run{
		ID:     id,
		Logger: logger.With("run", id.String()),
		Schema: reg,
		Rules:  set,
	}, nil
}

// FatalIOError means the input could not be read at all.
type FatalIOError struct {
	Path string
	Err  error
}

func (e *FatalIOError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

func (e *FatalIOError) Unwrap() error {
	return e.Err
}

// File validates the configuration file at path. The error is a
// *FatalIOError when the file cannot be read and an *ini.MalformedInputError
// when it cannot be parsed; every other problem is an issue in the report.
func File(run Run, path string) (*report.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FatalIOError{Path: path, Err: err}
	}
	return Bytes(run, path, data)
}

// Bytes validates src. name is used in parse errors.
func Bytes(run Run, name string, src []byte) (*report.Report, error) {
	log := run.Logger
	if log == nil {
		log = slog.Default()
	}
	start := time.Now()

	doc, err := ini.Parse(name, src, run.Schema)
	if err != nil {
		log.Debug("parse failed", "file", name, "error", err)
		return nil, err
	}
	log.Debug("parsed configuration", "file", name, "sections", len(doc.Sections))

	var b report.Builder
	typed := coerce.Coerce(doc, run.Schema, b.Stage(report.StageCoerce))

	ruleIssues := run.Rules.Run(typed)
	b.Add(report.StageRules, ruleIssues...)
	log.Debug("evaluated rules", "rules", len(run.Rules.Rules()), "issues", len(ruleIssues))

	rep := b.Build()
	log.Debug("validation finished",
		"verdict", rep.Verdict(),
		"errors", rep.Errors(),
		"warnings", rep.Warnings(),
		"elapsed", time.Since(start))
	return rep, nil
}
