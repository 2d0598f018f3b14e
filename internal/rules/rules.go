// Package rules implements cross-field checks that look at the typed
// configuration as a whole.
//
// A Rule is stateless and reads a snapshot it must not modify. Rules in a
// Set are evaluated concurrently, and their issues are gathered in
// registration order so the output never depends on scheduling.
package rules

import (
	"fmt"
	"sync"

	"github.com/stx-tools/configcheck/internal/coerce"
	"github.com/stx-tools/configcheck/internal/report"
	"github.com/stx-tools/configcheck/internal/schema"
)

// Rule is one cross-field check.
type Rule interface {
	// Name identifies the rule in reports.
	Name() string
	// Reads lists the fields the rule inspects.
	Reads() []schema.FieldRef
	// Check returns the problems found in doc.
	Check(doc *coerce.TypedDocument) []report.Issue
}

// Set is an ordered collection of rules.
type Set struct {
	rules []Rule
	names map[string]bool
}

// NewSet returns a set holding rules in the given order.
func NewSet(rules ...Rule) (*Set, error) {
	s := &Set{names: make(map[string]bool)}
	for _, r := range rules {
		if err := s.Register(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Register appends r. Rule names must be unique.
func (s *Set) Register(r Rule) error {
	if s.names == nil {
		s.names = make(map[string]bool)
	}
	if s.names[r.Name()] {
		return fmt.Errorf("rule %q registered twice", r.Name())
	}
	s.names[r.Name()] = true
	s.rules = append(s.rules, r)
	return nil
}

// Rules returns the registered rules in order.
func (s *Set) Rules() []Rule {
	return s.rules
}

// Run evaluates every rule against doc. Each issue is tagged with the
// rule's name and the cross-field class.
func (s *Set) Run(doc *coerce.TypedDocument) []report.Issue {
	results := make([][]report.Issue, len(s.rules))

	var wg sync.WaitGroup
	for i, r := range s.rules {
		wg.Add(1)
		go func(i int, r Rule) {
			defer wg.Done()
			results[i] = r.Check(doc)
		}(i, r)
	}
	wg.Wait()

	var out []report.Issue
	for i, issues := range results {
		for _, issue := range issues {
			issue.Rule = s.rules[i].Name()
			if issue.Class == "" {
				issue.Class = report.ClassCrossField
			}
			out = append(out, issue)
		}
	}
	return out
}
