package coerce

import (
	"net/netip"

	"github.com/stx-tools/configcheck/internal/ini"
	"github.com/stx-tools/configcheck/internal/report"
	"github.com/stx-tools/configcheck/internal/schema"
)

// TypedField is a decoded value together with the raw field it came from.
type TypedField struct {
	Key   string
	Kind  schema.Kind
	Value any
	Raw   *ini.RawField
}

// Int returns the value of an integer field.
func (f *TypedField) Int() (int64, bool) {
	n, ok := f.Value.(int64)
	return n, ok
}

// Bool returns the value of a boolean field.
func (f *TypedField) Bool() (bool, bool) {
	b, ok := f.Value.(bool)
	return b, ok
}

// Text returns the value of an identifier or string field.
func (f *TypedField) Text() (string, bool) {
	s, ok := f.Value.(string)
	return s, ok
}

// Addr returns the value of an address field.
func (f *TypedField) Addr() (netip.Addr, bool) {
	a, ok := f.Value.(netip.Addr)
	return a, ok
}

// Range returns the value of an address-range field.
func (f *TypedField) Range() (AddressRange, bool) {
	r, ok := f.Value.(AddressRange)
	return r, ok
}

// Elements returns the field's value as a slice. Scalars yield a slice of
// one so that rules can treat list and scalar fields alike.
func (f *TypedField) Elements() []any {
	if l, ok := f.Value.([]any); ok {
		return l
	}
	return []any{f.Value}
}

// TypedSection is the typed view of one ini.Section. Schema is nil for
// sections the registry does not know.
type TypedSection struct {
	Section *ini.Section
	Schema  *schema.Section
	Fields  []*TypedField
}

// Name returns the section name.
func (s *TypedSection) Name() string {
	return s.Section.Name
}

// Field returns the first decoded field with key.
func (s *TypedSection) Field(key string) (*TypedField, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return nil, false
}

// All returns every decoded field with key.
func (s *TypedSection) All(key string) []*TypedField {
	var out []*TypedField
	for _, f := range s.Fields {
		if f.Key == key {
			out = append(out, f)
		}
	}
	return out
}

// Has reports whether key was written in the source, whether or not it
// decoded successfully.
func (s *TypedSection) Has(key string) bool {
	_, ok := s.Section.Lookup(key)
	return ok
}

// Location returns the report location of key in this section. An empty
// key, or one absent from the source, points at the section header.
func (s *TypedSection) Location(key string) report.Location {
	loc := report.Location{Section: s.Section.Name, Key: key, Line: s.Section.Line}
	if s.Section.Index > 0 || (s.Schema != nil && s.Schema.Cardinality == schema.Repeatable) {
		loc.Index = s.Section.Index + 1
	}
	if raw, ok := s.Section.Lookup(key); ok {
		loc.Line = raw.Line
	}
	return loc
}

// FieldLocation returns the report location of a specific field.
func (s *TypedSection) FieldLocation(f *TypedField) report.Location {
	loc := s.Location(f.Key)
	loc.Line = f.Raw.Line
	return loc
}

// TypedDocument is the typed view of an ini.Document, with sections in
// source order.
type TypedDocument struct {
	Source   *ini.Document
	Sections []*TypedSection
}

// Named returns every typed section with name, in source order.
func (d *TypedDocument) Named(name string) []*TypedSection {
	var out []*TypedSection
	for _, s := range d.Sections {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	return out
}

// Ref is a decoded field paired with the section instance holding it.
type Ref struct {
	Section *TypedSection
	Field   *TypedField
}

// Location returns where the field was written.
func (r Ref) Location() report.Location {
	return r.Section.FieldLocation(r.Field)
}

// Lookup returns every decoded field named by ref across all instances of
// its section, in source order.
func (d *TypedDocument) Lookup(ref schema.FieldRef) []Ref {
	var out []Ref
	for _, s := range d.Named(ref.Section) {
		for _, f := range s.All(ref.Key) {
			out = append(out, Ref{Section: s, Field: f})
		}
	}
	return out
}
