package rules

import (
	"fmt"
	"strings"

	"github.com/stx-tools/configcheck/internal/schema"
)

// FromSchema builds the rule set declared by the registry's [[rule]]
// tables. Every field a rule names must exist in the registry.
func FromSchema(reg *schema.Registry) (*Set, error) {
	set := &Set{}
	for i, spec := range reg.Rules() {
		r, err := build(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i+1, spec.Name, err)
		}
		for _, ref := range r.Reads() {
			if err := reg.Validate(ref); err != nil {
				return nil, fmt.Errorf("rule %s: %w", spec.Name, err)
			}
		}
		if c, ok := r.(*Count); ok {
			if _, known := reg.Lookup(c.Section); !known {
				return nil, fmt.Errorf("rule %s: unknown section %q", spec.Name, c.Section)
			}
		}
		if err := set.Register(r); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func build(spec schema.RuleSpec) (Rule, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	spec.Section = strings.ToLower(spec.Section)
	spec.Key = strings.ToLower(spec.Key)
	spec.Keys = lower(spec.Keys)
	spec.Needs = lower(spec.Needs)

	switch spec.Kind {
	case "reference":
		from, err := parseRef("from", spec.From)
		if err != nil {
			return nil, err
		}
		to, err := parseRef("to", spec.To)
		if err != nil {
			return nil, err
		}
		return &Reference{RuleName: spec.Name, From: from, To: to}, nil

	case "overlap":
		fields, err := parseRefs(spec.Fields, 2)
		if err != nil {
			return nil, err
		}
		return &Overlap{RuleName: spec.Name, Fields: fields}, nil

	case "count":
		field, err := parseRef("field", spec.Field)
		if err != nil {
			return nil, err
		}
		if spec.Section == "" {
			return nil, fmt.Errorf("count rule needs section")
		}
		return &Count{RuleName: spec.Name, Field: field, Section: spec.Section}, nil

	case "exclusive":
		if spec.Section == "" || len(spec.Keys) < 2 {
			return nil, fmt.Errorf("exclusive rule needs section and at least two keys")
		}
		return &Exclusive{RuleName: spec.Name, Section: spec.Section, Keys: spec.Keys}, nil

	case "requires":
		if spec.Section == "" || spec.Key == "" || len(spec.Needs) == 0 {
			return nil, fmt.Errorf("requires rule needs section, key and needs")
		}
		return &Requires{RuleName: spec.Name, Section: spec.Section, Key: spec.Key, Needs: spec.Needs}, nil

	case "unique":
		field, err := parseRef("field", spec.Field)
		if err != nil {
			return nil, err
		}
		return &Unique{RuleName: spec.Name, Field: field}, nil

	case "contains":
		within, err := parseRef("within", spec.Within)
		if err != nil {
			return nil, err
		}
		fields, err := parseRefs(spec.Fields, 1)
		if err != nil {
			return nil, err
		}
		return &Contains{RuleName: spec.Name, Fields: fields, Within: within}, nil

	case "same_family":
		fields, err := parseRefs(spec.Fields, 2)
		if err != nil {
			return nil, err
		}
		return &SameFamily{RuleName: spec.Name, Fields: fields}, nil
	}
	return nil, fmt.Errorf("unknown rule kind %q", spec.Kind)
}

func parseRef(attr, s string) (schema.FieldRef, error) {
	if s == "" {
		return schema.FieldRef{}, fmt.Errorf("missing %s", attr)
	}
	return schema.ParseFieldRef(s)
}

func parseRefs(list []string, atLeast int) ([]schema.FieldRef, error) {
	if len(list) < atLeast {
		return nil, fmt.Errorf("need at least %d fields, got %d", atLeast, len(list))
	}
	out := make([]schema.FieldRef, 0, len(list))
	for _, s := range list {
		ref, err := schema.ParseFieldRef(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

func lower(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = strings.ToLower(s)
	}
	return out
}
