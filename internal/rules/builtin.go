package rules

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/stx-tools/configcheck/internal/coerce"
	"github.com/stx-tools/configcheck/internal/report"
	"github.com/stx-tools/configcheck/internal/schema"
)

// Reference requires every value of From to equal some value of To.
type Reference struct {
	RuleName string
	From, To schema.FieldRef
}

func (r *Reference) Name() string             { return r.RuleName }
func (r *Reference) Reads() []schema.FieldRef { return []schema.FieldRef{r.From, r.To} }

func (r *Reference) Check(doc *coerce.TypedDocument) []report.Issue {
	declared := make(map[string]bool)
	for _, ref := range doc.Lookup(r.To) {
		for _, v := range ref.Field.Elements() {
			declared[fmt.Sprint(v)] = true
		}
	}

	var targets []report.Location
	for _, s := range doc.Named(r.To.Section) {
		targets = append(targets, s.Location(r.To.Key))
	}

	var issues []report.Issue
	for _, ref := range doc.Lookup(r.From) {
		for _, v := range ref.Field.Elements() {
			name := fmt.Sprint(v)
			if declared[name] {
				continue
			}
			issue := report.Errorf(report.ClassCrossField, ref.Location(),
				"%s %q does not match any %s", r.From, name, r.To)
			if len(targets) == 0 {
				issue.Message += fmt.Sprintf(" (no [%s] section is present)", r.To.Section)
			}
			issue.Related = targets
			issues = append(issues, issue)
		}
	}
	return issues
}

// Overlap forbids any two address ranges among Fields from sharing an
// address. Every overlapping pair is reported.
type Overlap struct {
	RuleName string
	Fields   []schema.FieldRef
}

func (r *Overlap) Name() string             { return r.RuleName }
func (r *Overlap) Reads() []schema.FieldRef { return r.Fields }

type rangeAt struct {
	loc   report.Location
	value coerce.AddressRange
}

func (r *Overlap) Check(doc *coerce.TypedDocument) []report.Issue {
	var ranges []rangeAt
	for _, f := range r.Fields {
		for _, ref := range doc.Lookup(f) {
			for _, v := range ref.Field.Elements() {
				if ar, ok := v.(coerce.AddressRange); ok {
					ranges = append(ranges, rangeAt{loc: ref.Location(), value: ar})
				}
			}
		}
	}

	var issues []report.Issue
	for i := 0; i < len(ranges); i++ {
		for j := i + 1; j < len(ranges); j++ {
			a, b := ranges[i], ranges[j]
			if !a.value.Overlaps(b.value) {
				continue
			}
			if before(b.loc, a.loc) {
				a, b = b, a
			}
			issue := report.Errorf(report.ClassCrossField, a.loc,
				"%s overlaps %s at %s", a.value, b.value, b.loc)
			issue.Related = []report.Location{b.loc}
			issues = append(issues, issue)
		}
	}
	return issues
}

// Count requires the integer at Field to equal the number of Section
// instances present.
type Count struct {
	RuleName string
	Field    schema.FieldRef
	Section  string
}

func (r *Count) Name() string { return r.RuleName }
func (r *Count) Reads() []schema.FieldRef {
	return []schema.FieldRef{r.Field}
}

func (r *Count) Check(doc *coerce.TypedDocument) []report.Issue {
	instances := doc.Named(r.Section)
	var related []report.Location
	for _, s := range instances {
		related = append(related, s.Location(""))
	}

	var issues []report.Issue
	for _, ref := range doc.Lookup(r.Field) {
		want, ok := ref.Field.Int()
		if !ok || want == int64(len(instances)) {
			continue
		}
		issue := report.Errorf(report.ClassCrossField, ref.Location(),
			"%s declares %d [%s] sections: expected %d, found %d", r.Field, want, r.Section, want, len(instances))
		issue.Related = related
		issues = append(issues, issue)
	}
	return issues
}

// Exclusive forbids the Keys of one Section instance from being set
// together.
type Exclusive struct {
	RuleName string
	Section  string
	Keys     []string
}

func (r *Exclusive) Name() string { return r.RuleName }
func (r *Exclusive) Reads() []schema.FieldRef {
	return refs(r.Section, r.Keys)
}

func (r *Exclusive) Check(doc *coerce.TypedDocument) []report.Issue {
	var issues []report.Issue
	for _, s := range doc.Named(r.Section) {
		var present []string
		for _, k := range r.Keys {
			if s.Has(k) {
				present = append(present, k)
			}
		}
		if len(present) < 2 {
			continue
		}
		issue := report.Errorf(report.ClassCrossField, s.Location(present[1]),
			"%s conflicts with %s: only one of %s may be set", present[1], present[0], strings.Join(r.Keys, ", "))
		issue.Related = []report.Location{s.Location(present[0])}
		for _, k := range present[2:] {
			issue.Related = append(issue.Related, s.Location(k))
		}
		issues = append(issues, issue)
	}
	return issues
}

// Requires makes Needs mandatory in any Section instance that sets Key.
type Requires struct {
	RuleName string
	Section  string
	Key      string
	Needs    []string
}

func (r *Requires) Name() string { return r.RuleName }
func (r *Requires) Reads() []schema.FieldRef {
	return refs(r.Section, append([]string{r.Key}, r.Needs...))
}

func (r *Requires) Check(doc *coerce.TypedDocument) []report.Issue {
	var issues []report.Issue
	for _, s := range doc.Named(r.Section) {
		if !s.Has(r.Key) {
			continue
		}
		for _, need := range r.Needs {
			if s.Has(need) {
				continue
			}
			issues = append(issues, report.Errorf(report.ClassCrossField, s.Location(r.Key),
				"%s is set but %s is missing", r.Key, need))
		}
	}
	return issues
}

// Unique requires every value of Field to be distinct across all instances.
type Unique struct {
	RuleName string
	Field    schema.FieldRef
}

func (r *Unique) Name() string             { return r.RuleName }
func (r *Unique) Reads() []schema.FieldRef { return []schema.FieldRef{r.Field} }

func (r *Unique) Check(doc *coerce.TypedDocument) []report.Issue {
	first := make(map[string]report.Location)
	var issues []report.Issue
	for _, ref := range doc.Lookup(r.Field) {
		for _, v := range ref.Field.Elements() {
			key := fmt.Sprint(v)
			prev, dup := first[key]
			if !dup {
				first[key] = ref.Location()
				continue
			}
			issue := report.Errorf(report.ClassCrossField, ref.Location(),
				"duplicate %s %q, already used at %s", r.Field, key, prev)
			issue.Related = []report.Location{prev}
			issues = append(issues, issue)
		}
	}
	return issues
}

// Contains requires each address at Fields to fall inside the range at
// Within. When Within belongs to the same section as the address the range
// of the same instance is used; otherwise the first instance of its section.
type Contains struct {
	RuleName string
	Fields   []schema.FieldRef
	Within   schema.FieldRef
}

func (r *Contains) Name() string { return r.RuleName }
func (r *Contains) Reads() []schema.FieldRef {
	return append(append([]schema.FieldRef(nil), r.Fields...), r.Within)
}

func (r *Contains) Check(doc *coerce.TypedDocument) []report.Issue {
	var issues []report.Issue
	for _, f := range r.Fields {
		for _, ref := range doc.Lookup(f) {
			within, ok := r.rangeFor(doc, ref.Section)
			if !ok {
				continue
			}
			ar, _ := within.Field.Range()
			for _, v := range ref.Field.Elements() {
				addr, ok := v.(netip.Addr)
				if !ok || ar.Contains(addr) {
					continue
				}
				issue := report.Errorf(report.ClassCrossField, ref.Location(),
					"%s %s is outside %s %s", f, addr, r.Within, ar)
				issue.Related = []report.Location{within.Location()}
				issues = append(issues, issue)
			}
		}
	}
	return issues
}

func (r *Contains) rangeFor(doc *coerce.TypedDocument, s *coerce.TypedSection) (coerce.Ref, bool) {
	if s.Name() == r.Within.Section {
		if f, ok := s.Field(r.Within.Key); ok {
			if _, isRange := f.Range(); isRange {
				return coerce.Ref{Section: s, Field: f}, true
			}
		}
		return coerce.Ref{}, false
	}
	for _, ref := range doc.Lookup(r.Within) {
		if _, isRange := ref.Field.Range(); isRange {
			return ref, true
		}
	}
	return coerce.Ref{}, false
}

// SameFamily requires every address at Fields to share one IP family.
type SameFamily struct {
	RuleName string
	Fields   []schema.FieldRef
}

func (r *SameFamily) Name() string             { return r.RuleName }
func (r *SameFamily) Reads() []schema.FieldRef { return r.Fields }

func (r *SameFamily) Check(doc *coerce.TypedDocument) []report.Issue {
	var (
		base    netip.Addr
		baseRef schema.FieldRef
		baseLoc report.Location
		issues  []report.Issue
	)
	for _, f := range r.Fields {
		for _, ref := range doc.Lookup(f) {
			addr, ok := ref.Field.Addr()
			if !ok {
				continue
			}
			if !base.IsValid() {
				base, baseRef, baseLoc = addr, f, ref.Location()
				continue
			}
			if addr.Is4() == base.Is4() {
				continue
			}
			issue := report.Errorf(report.ClassCrossField, ref.Location(),
				"%s %s is %s but %s %s is %s", f, addr, family(addr), baseRef, base, family(base))
			issue.Related = []report.Location{baseLoc}
			issues = append(issues, issue)
		}
	}
	return issues
}

func family(a netip.Addr) string {
	if a.Is4() {
		return "IPv4"
	}
	return "IPv6"
}

func refs(section string, keys []string) []schema.FieldRef {
	out := make([]schema.FieldRef, 0, len(keys))
	for _, k := range keys {
		out = append(out, schema.FieldRef{Section: section, Key: k})
	}
	return out
}

func before(a, b report.Location) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Section < b.Section
}

