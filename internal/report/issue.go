package report

import (
	"fmt"
	"strings"
)

// Severity of an Issue. Only errors affect the verdict.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Stage is the pipeline stage that recorded an Issue.
type Stage string

const (
	StageParse  Stage = "parse"
	StageCoerce Stage = "coerce"
	StageRules  Stage = "rules"
)

func (s Stage) rank() int {
	switch s {
	case StageParse:
		return 0
	case StageCoerce:
		return 1
	case StageRules:
		return 2
	}
	return 3
}

// Class groups issues by the kind of problem found.
type Class string

const (
	ClassType        Class = "type"
	ClassMissing     Class = "missing"
	ClassUnknown     Class = "unknown"
	ClassCardinality Class = "cardinality"
	ClassCrossField  Class = "cross-field"
)

// Location points at a section instance and optionally a key and line.
// Index is the 1-based occurrence of a repeatable section and 0 otherwise.
type Location struct {
	Section string `json:"section,omitempty" yaml:"section,omitempty"`
	Index   int    `json:"index,omitempty" yaml:"index,omitempty"`
	Key     string `json:"key,omitempty" yaml:"key,omitempty"`
	Line    int    `json:"line,omitempty" yaml:"line,omitempty"`
}

func (l Location) String() string {
	if l.Section == "" {
		return "-"
	}
	var b strings.Builder
	b.WriteString(l.Section)
	if l.Index > 0 {
		fmt.Fprintf(&b, "[%d]", l.Index)
	}
	if l.Key != "" {
		b.WriteString(".")
		b.WriteString(l.Key)
	}
	if l.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", l.Line)
	}
	return b.String()
}

// Issue is a single recorded problem.
type Issue struct {
	Severity Severity `json:"severity" yaml:"severity"`
	Stage    Stage    `json:"stage" yaml:"stage"`
	Class    Class    `json:"class" yaml:"class"`
	Rule     string   `json:"rule,omitempty" yaml:"rule,omitempty"`
	Location `yaml:",inline"`
	Related  []Location `json:"related,omitempty" yaml:"related,omitempty"`
	Message  string     `json:"message" yaml:"message"`
}

// Errorf builds an error-severity issue at loc.
func Errorf(class Class, loc Location, format string, args ...any) Issue {
	return Issue{Severity: SeverityError, Class: class, Location: loc, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning-severity issue at loc.
func Warnf(class Class, loc Location, format string, args ...any) Issue {
	return Issue{Severity: SeverityWarning, Class: class, Location: loc, Message: fmt.Sprintf(format, args...)}
}

func (i Issue) String() string {
	return fmt.Sprintf("%-7s %s: %s", strings.ToUpper(string(i.Severity)), i.Location, i.Message)
}
