package coerce

import (
	"sort"

	"github.com/stx-tools/configcheck/internal/ini"
	"github.com/stx-tools/configcheck/internal/report"
	"github.com/stx-tools/configcheck/internal/schema"
)

type coercer struct {
	reg   *schema.Registry
	sink  report.Sink
	typed map[*ini.Section]*TypedSection
}

// Coerce decodes every field of doc according to reg and records problems
// on sink. It never stops early: fields that fail to decode are left out of
// the typed view and everything else is still processed.
//
// Known sections are processed in registry order so that conditional
// entries can depend on earlier sections.
func Coerce(doc *ini.Document, reg *schema.Registry, sink report.Sink) *TypedDocument {
	c := &coercer{reg: reg, sink: sink, typed: make(map[*ini.Section]*TypedSection)}

	for _, sch := range reg.Sections() {
		instances := doc.Named(sch.Name)
		if len(instances) == 0 {
			if sch.Presence == schema.PresenceRequired {
				sink.Add(report.Errorf(report.ClassMissing, report.Location{}, "missing required section [%s]", sch.Name))
			}
			continue
		}
		for i, sec := range instances {
			ts := c.section(sec, sch)
			if i > 0 && sch.Cardinality == schema.Singleton {
				sink.Add(report.Errorf(report.ClassCardinality, ts.Location(""),
					"section [%s] may appear only once, first declared on line %d", sch.Name, instances[0].Line))
			}
		}
	}

	for _, sec := range doc.Sections {
		if _, ok := reg.Lookup(sec.Name); ok {
			continue
		}
		ts := &TypedSection{Section: sec}
		c.typed[sec] = ts
		if sec.Index == 0 {
			sink.Add(report.Warnf(report.ClassUnknown, ts.Location(""), "unrecognized section [%s]", sec.Name))
		}
	}

	out := &TypedDocument{Source: doc, Sections: make([]*TypedSection, 0, len(doc.Sections))}
	for _, sec := range doc.Sections {
		out.Sections = append(out.Sections, c.typed[sec])
	}
	return out
}

func (c *coercer) section(sec *ini.Section, sch *schema.Section) *TypedSection {
	ts := &TypedSection{Section: sec, Schema: sch}
	c.typed[sec] = ts

	for _, f := range sec.Fields {
		if _, ok := sch.Entry(f.Key); !ok {
			loc := ts.Location(f.Key)
			loc.Line = f.Line
			c.sink.Add(report.Warnf(report.ClassUnknown, loc, "unrecognized key %q in section [%s]", f.Key, sec.Name))
		}
	}

	sc := scope{c: c, current: ts}
	for _, e := range sch.Entries {
		var found bool
		for _, raw := range sec.Fields {
			if raw.Key != e.Key {
				continue
			}
			found = true
			v, err := decode(e, raw.Value)
			if err != nil {
				loc := ts.Location(e.Key)
				loc.Line = raw.Line
				c.sink.Add(report.Errorf(report.ClassType, loc, "%s", err))
				continue
			}
			ts.Fields = append(ts.Fields, &TypedField{Key: e.Key, Kind: e.Kind, Value: v, Raw: raw})
		}
		if found || !e.Required(sc) {
			continue
		}
		if e.Presence == schema.PresenceConditional && e.When != nil {
			c.sink.Add(report.Errorf(report.ClassMissing, ts.Location(e.Key),
				"missing required field %q (required because %s)", e.Key, e.When))
		} else {
			c.sink.Add(report.Errorf(report.ClassMissing, ts.Location(e.Key), "missing required field %q", e.Key))
		}
	}

	sort.SliceStable(ts.Fields, func(i, j int) bool {
		return ts.Fields[i].Raw.Line < ts.Fields[j].Raw.Line
	})
	return ts
}

// scope exposes decoded fields to schema predicates. Fields of the current
// section are visible as soon as they decode; other sections must already
// have been processed.
type scope struct {
	c       *coercer
	current *TypedSection
}

func (s scope) Field(section, key string) (any, bool) {
	if section == "" || section == s.current.Name() {
		if f, ok := s.current.Field(key); ok {
			return f.Value, true
		}
		return nil, false
	}
	for sec, ts := range s.c.typed {
		if sec.Name == section && sec.Index == 0 {
			if f, ok := ts.Field(key); ok {
				return f.Value, true
			}
			return nil, false
		}
	}
	return nil, false
}
