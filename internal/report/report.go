package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// Verdict is the overall outcome of a run.
type Verdict string

const (
	Pass Verdict = "pass"
	Fail Verdict = "fail"
)

// Sink accepts issues from one pipeline stage.
type Sink interface {
	Add(Issue)
}

// Builder accumulates issues from every stage. Issues are never removed.
type Builder struct {
	issues []Issue
}

type stageSink struct {
	b     *Builder
	stage Stage
}

func (s stageSink) Add(i Issue) {
	i.Stage = s.stage
	s.b.issues = append(s.b.issues, i)
}

// Stage returns a Sink that tags each issue with stage.
func (b *Builder) Stage(stage Stage) Sink {
	return stageSink{b: b, stage: stage}
}

// Add records issues under stage.
func (b *Builder) Add(stage Stage, issues ...Issue) {
	sink := b.Stage(stage)
	for _, i := range issues {
		sink.Add(i)
	}
}

// Build returns the report with issues ordered by stage, then section, then
// line. Issues that tie keep the order they were added in.
func (b *Builder) Build() *Report {
	issues := make([]Issue, len(b.issues))
	copy(issues, b.issues)
	sort.SliceStable(issues, func(i, j int) bool {
		a, c := issues[i], issues[j]
		if a.Stage.rank() != c.Stage.rank() {
			return a.Stage.rank() < c.Stage.rank()
		}
		if a.Section != c.Section {
			return a.Section < c.Section
		}
		return a.Line < c.Line
	})
	return &Report{Issues: issues}
}

// Report is the terminal result of a validation run.
type Report struct {
	Issues []Issue
}

// Verdict is Pass iff no error-severity issue exists.
func (r *Report) Verdict() Verdict {
	if r.Errors() > 0 {
		return Fail
	}
	return Pass
}

// Passed reports whether the verdict is Pass.
func (r *Report) Passed() bool {
	return r.Verdict() == Pass
}

// Errors returns the number of error-severity issues.
func (r *Report) Errors() int {
	return r.count(SeverityError)
}

// Warnings returns the number of warning-severity issues.
func (r *Report) Warnings() int {
	return r.count(SeverityWarning)
}

func (r *Report) count(s Severity) int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == s {
			n++
		}
	}
	return n
}

// WriteText renders one line per issue.
func (r *Report) WriteText(w io.Writer) error {
	for _, i := range r.Issues {
		if _, err := fmt.Fprintln(w, i.String()); err != nil {
			return err
		}
	}
	return nil
}

type document struct {
	Verdict  Verdict `json:"verdict" yaml:"verdict"`
	Errors   int     `json:"errors" yaml:"errors"`
	Warnings int     `json:"warnings" yaml:"warnings"`
	Issues   []Issue `json:"issues" yaml:"issues"`
}

func (r *Report) document() document {
	issues := r.Issues
	if issues == nil {
		issues = []Issue{}
	}
	return document{Verdict: r.Verdict(), Errors: r.Errors(), Warnings: r.Warnings(), Issues: issues}
}

// WriteJSON renders the report as an indented JSON object.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.document())
}

// WriteYAML renders the report as a YAML document.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.document()); err != nil {
		return err
	}
	return enc.Close()
}
