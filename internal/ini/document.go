package ini

import "fmt"

// Document is the parsed form of a configuration file. Sections appear in the
// order their headers occur in the source.
type Document struct {
	Name     string
	Sections []*Section
}

// Section is one occurrence of a [name] header and the fields under it.
type Section struct {
	Name   string
	Index  int // occurrence number among sections sharing Name, starting at 0
	Line   int
	Fields []*RawField
}

// RawField is a single key = value line.
type RawField struct {
	Key   string
	Value string
	Line  int
}

// Lookup returns the first field with the given key.
func (s *Section) Lookup(key string) (*RawField, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return nil, false
}

// Named returns every section occurrence with the given name, in source order.
func (d *Document) Named(name string) []*Section {
	var out []*Section
	for _, s := range d.Sections {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

// Names returns the distinct section names in first-occurrence order.
func (d *Document) Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range d.Sections {
		if !seen[s.Name] {
			seen[s.Name] = true
			names = append(names, s.Name)
		}
	}
	return names
}

// MalformedInputError reports a structural violation that stops parsing.
type MalformedInputError struct {
	File string
	Line int
	Msg  string
}

func (e *MalformedInputError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}
