package schema

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// defaultSchema describes a standard multi-node controller installation.
//
//go:embed default.toml
var defaultSchema string

type schemaFile struct {
	Sections []*Section `toml:"section"`
	Rules    []RuleSpec `toml:"rule"`
}

// Registry holds the section schemas in processing order along with the
// cross-field rule declarations that accompany them.
type Registry struct {
	sections []*Section
	byName   map[string]*Section
	rules    []RuleSpec
}

// Default returns a fresh registry built from the embedded schema.
func Default() *Registry {
	reg, err := Load([]byte(defaultSchema))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded schema: %v", err))
	}
	return reg
}

// LoadFile reads a schema from path.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}
	reg, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", path, err)
	}
	return reg, nil
}

// Load decodes a TOML schema and checks it for internal consistency.
func Load(data []byte) (*Registry, error) {
	var f schemaFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown schema attributes: %s", strings.Join(keys, ", "))
	}

	reg := &Registry{byName: make(map[string]*Section), rules: f.Rules}
	for _, sec := range f.Sections {
		if err := reg.add(sec); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (r *Registry) add(sec *Section) error {
	sec.Name = strings.ToLower(sec.Name)
	if sec.Name == "" {
		return fmt.Errorf("section without a name")
	}
	if _, dup := r.byName[sec.Name]; dup {
		return fmt.Errorf("section %q declared twice", sec.Name)
	}
	if sec.Presence == "" {
		sec.Presence = PresenceOptional
	}
	if sec.Presence != PresenceRequired && sec.Presence != PresenceOptional {
		return fmt.Errorf("section %q: invalid presence %q", sec.Name, sec.Presence)
	}
	if sec.Cardinality == "" {
		sec.Cardinality = Singleton
	}
	if sec.Cardinality != Singleton && sec.Cardinality != Repeatable {
		return fmt.Errorf("section %q: invalid cardinality %q", sec.Name, sec.Cardinality)
	}

	sec.index = make(map[string]*Entry, len(sec.Entries))
	for _, e := range sec.Entries {
		if err := r.checkEntry(sec, e); err != nil {
			return fmt.Errorf("section %q: %w", sec.Name, err)
		}
		sec.index[e.Key] = e
	}

	r.sections = append(r.sections, sec)
	r.byName[sec.Name] = sec
	return nil
}

// checkEntry runs before e is indexed, so sec.index only holds entries
// declared earlier. Conditions may look backwards only.
func (r *Registry) checkEntry(sec *Section, e *Entry) error {
	e.Key = strings.ToLower(e.Key)
	if e.Key == "" {
		return fmt.Errorf("key without a name")
	}
	if _, dup := sec.index[e.Key]; dup {
		return fmt.Errorf("key %q declared twice", e.Key)
	}
	if !e.Kind.valid() {
		return fmt.Errorf("key %q: unknown kind %q", e.Key, e.Kind)
	}
	if e.Kind == KindList {
		if !e.Element.valid() || e.Element == KindList {
			return fmt.Errorf("key %q: list needs a scalar element kind, got %q", e.Key, e.Element)
		}
		if e.Separator == "" {
			e.Separator = ","
		}
	}
	if e.Repeat && e.Kind != KindList {
		return fmt.Errorf("key %q: only list keys may repeat", e.Key)
	}
	if e.Presence == "" {
		e.Presence = PresenceOptional
	}

	switch e.Presence {
	case PresenceRequired, PresenceOptional:
		if e.When != nil {
			return fmt.Errorf("key %q: when is only valid for conditional keys", e.Key)
		}
	case PresenceConditional:
		if e.When == nil {
			return fmt.Errorf("key %q: conditional key needs a when clause", e.Key)
		}
		if err := r.checkCondition(sec, e.When); err != nil {
			return fmt.Errorf("key %q: %w", e.Key, err)
		}
		e.predicate = e.When.predicate()
	default:
		return fmt.Errorf("key %q: invalid presence %q", e.Key, e.Presence)
	}
	return nil
}

func (r *Registry) checkCondition(sec *Section, c *Condition) error {
	c.Section = strings.ToLower(c.Section)
	c.Key = strings.ToLower(c.Key)
	if len(c.In) == 0 && len(c.NotIn) == 0 {
		return fmt.Errorf("condition on %q needs in or not_in", c.Key)
	}
	if c.Section == "" || c.Section == sec.Name {
		c.Section = ""
		if _, ok := sec.index[c.Key]; !ok {
			return fmt.Errorf("condition refers to %q, which is not declared earlier in the section", c.Key)
		}
		return nil
	}
	target, ok := r.byName[c.Section]
	if !ok {
		return fmt.Errorf("condition refers to section %q, which is not declared earlier", c.Section)
	}
	if target.Cardinality != Singleton {
		return fmt.Errorf("condition refers to repeatable section %q", c.Section)
	}
	if _, ok := target.index[c.Key]; !ok {
		return fmt.Errorf("condition refers to unknown key %s.%s", c.Section, c.Key)
	}
	return nil
}

// Lookup returns the schema for a section name. A false result means the
// section is not known; callers should warn rather than fail.
func (r *Registry) Lookup(name string) (*Section, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Sections returns the section schemas in declaration order.
func (r *Registry) Sections() []*Section {
	return r.sections
}

// Entry returns the schema entry for section.key.
func (r *Registry) Entry(section, key string) (*Entry, bool) {
	s, ok := r.byName[section]
	if !ok {
		return nil, false
	}
	return s.Entry(key)
}

// Rules returns the declared cross-field rules.
func (r *Registry) Rules() []RuleSpec {
	return r.rules
}

// AllowsRepeat implements ini.KeyPolicy.
func (r *Registry) AllowsRepeat(section, key string) bool {
	e, ok := r.Entry(section, key)
	return ok && e.Repeat
}

// RegisterPredicate makes section.key conditional on p, replacing any
// declared condition.
func (r *Registry) RegisterPredicate(section, key string, p Predicate) error {
	e, ok := r.Entry(section, key)
	if !ok {
		return fmt.Errorf("unknown key %s.%s", section, key)
	}
	e.Presence = PresenceConditional
	e.When = nil
	e.predicate = p
	return nil
}

// Validate checks that ref names a declared key.
func (r *Registry) Validate(ref FieldRef) error {
	if _, ok := r.byName[ref.Section]; !ok {
		return fmt.Errorf("unknown section %q", ref.Section)
	}
	if _, ok := r.Entry(ref.Section, ref.Key); !ok {
		return fmt.Errorf("unknown key %s", ref)
	}
	return nil
}
