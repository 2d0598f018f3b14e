package schema

import (
	"fmt"
	"strings"
)

// Kind is the semantic type a raw value is decoded into.
type Kind string

const (
	KindInteger      Kind = "integer"
	KindBoolean      Kind = "boolean"
	KindAddress      Kind = "address"
	KindAddressRange Kind = "address-range"
	KindIdentifier   Kind = "identifier"
	KindString       Kind = "string"
	KindList         Kind = "list"
)

func (k Kind) valid() bool {
	switch k {
	case KindInteger, KindBoolean, KindAddress, KindAddressRange, KindIdentifier, KindString, KindList:
		return true
	}
	return false
}

// Presence says whether a section or key must appear.
type Presence string

const (
	PresenceRequired    Presence = "required"
	PresenceOptional    Presence = "optional"
	PresenceConditional Presence = "conditional"
)

// Cardinality says how many times a section may appear.
type Cardinality string

const (
	Singleton  Cardinality = "singleton"
	Repeatable Cardinality = "repeatable"
)

// Scope gives a predicate read access to fields that have already been
// decoded. An empty section name refers to the section instance currently
// being processed.
type Scope interface {
	Field(section, key string) (value any, ok bool)
}

// Predicate decides whether a conditional entry is required.
type Predicate func(Scope) bool

// Condition is the declarative form of a Predicate.
type Condition struct {
	Section string   `toml:"section"`
	Key     string   `toml:"key"`
	In      []string `toml:"in"`
	NotIn   []string `toml:"not_in"`
}

func (c *Condition) predicate() Predicate {
	return func(s Scope) bool {
		v, ok := s.Field(c.Section, c.Key)
		if !ok {
			return false
		}
		text := fmt.Sprint(v)
		if len(c.In) > 0 {
			return contains(c.In, text)
		}
		return !contains(c.NotIn, text)
	}
}

func (c *Condition) String() string {
	ref := c.Key
	if c.Section != "" {
		ref = c.Section + "." + c.Key
	}
	if len(c.In) > 0 {
		return fmt.Sprintf("%s is one of %s", ref, strings.Join(c.In, ", "))
	}
	return fmt.Sprintf("%s is not one of %s", ref, strings.Join(c.NotIn, ", "))
}

// Entry describes one recognized key of a section.
type Entry struct {
	Key         string     `toml:"name"`
	Kind        Kind       `toml:"kind"`
	Element     Kind       `toml:"element"`
	Presence    Presence   `toml:"presence"`
	When        *Condition `toml:"when"`
	Values      []string   `toml:"values"`
	Min         *int64     `toml:"min"`
	Max         *int64     `toml:"max"`
	Separator   string     `toml:"separator"`
	Repeat      bool       `toml:"repeat"`
	Description string     `toml:"description"`

	predicate Predicate
}

// Required reports whether the entry must be present, evaluating its
// predicate against scope when the entry is conditional.
func (e *Entry) Required(scope Scope) bool {
	switch e.Presence {
	case PresenceRequired:
		return true
	case PresenceConditional:
		return e.predicate != nil && e.predicate(scope)
	}
	return false
}

// Section describes a section and its ordered entries.
type Section struct {
	Name        string      `toml:"name"`
	Presence    Presence    `toml:"presence"`
	Cardinality Cardinality `toml:"cardinality"`
	Description string      `toml:"description"`
	Entries     []*Entry    `toml:"key"`

	index map[string]*Entry
}

// Entry returns the schema entry for key.
func (s *Section) Entry(key string) (*Entry, bool) {
	e, ok := s.index[key]
	return e, ok
}

// FieldRef names a key of a section, written "section.key".
type FieldRef struct {
	Section string
	Key     string
}

func (r FieldRef) String() string {
	return r.Section + "." + r.Key
}

// ParseFieldRef parses "section.key".
func ParseFieldRef(s string) (FieldRef, error) {
	section, key, ok := strings.Cut(s, ".")
	if !ok || section == "" || key == "" {
		return FieldRef{}, fmt.Errorf("invalid field reference %q: want section.key", s)
	}
	return FieldRef{Section: strings.ToLower(section), Key: strings.ToLower(key)}, nil
}

// RuleSpec is a cross-field rule declaration. Which attributes are used
// depends on Kind; the rules package interprets them.
type RuleSpec struct {
	Name    string   `toml:"name"`
	Kind    string   `toml:"kind"`
	From    string   `toml:"from"`
	To      string   `toml:"to"`
	Field   string   `toml:"field"`
	Within  string   `toml:"within"`
	Section string   `toml:"section"`
	Key     string   `toml:"key"`
	Fields  []string `toml:"fields"`
	Keys    []string `toml:"keys"`
	Needs   []string `toml:"needs"`
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
