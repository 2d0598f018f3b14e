package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/stx-tools/configcheck/internal/schema"
)

func schemaAction(c *cli.Context) error {
	settings, logger, err := loadSettings(c)
	if err != nil {
		return err
	}
	if c.IsSet("schema") {
		settings.SchemaFile = c.String("schema")
	}
	reg, err := loadSchema(settings.SchemaFile)
	if err != nil {
		return err
	}
	logger.Debug("printing schema", "file", settings.SchemaFile, "sections", len(reg.Sections()))
	return writeSchema(c.App.Writer, reg)
}

// writeSchema lists every section with its keys, then the rules.
func writeSchema(w io.Writer, reg *schema.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, sec := range reg.Sections() {
		fmt.Fprintf(tw, "[%s]\t%s, %s\t%s\n", sec.Name, sec.Presence, sec.Cardinality, sec.Description)
		for _, e := range sec.Entries {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", e.Key, kindOf(e), presenceOf(e))
		}
		fmt.Fprintln(tw)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(reg.Rules()) == 0 {
		return nil
	}
	fmt.Fprintln(w, "rules:")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range reg.Rules() {
		fmt.Fprintf(tw, "  %s\t%s\n", r.Name, r.Kind)
	}
	return tw.Flush()
}

func kindOf(e *schema.Entry) string {
	kind := string(e.Kind)
	if e.Kind == schema.KindList {
		kind = fmt.Sprintf("list of %s", e.Element)
	}
	if len(e.Values) > 0 {
		kind += " (" + strings.Join(e.Values, "|") + ")"
	}
	if e.Min != nil && e.Max != nil {
		kind += fmt.Sprintf(" [%d..%d]", *e.Min, *e.Max)
	}
	return kind
}

func presenceOf(e *schema.Entry) string {
	if e.Presence == schema.PresenceConditional && e.When != nil {
		return "required when " + e.When.String()
	}
	return string(e.Presence)
}
