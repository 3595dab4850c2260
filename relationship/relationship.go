// Package relationship parses and renders the alternation+version
// constraint grammar used by the seven Debian-style relationship
// fields (Depends, Pre-Depends, Conflicts, Recommends, Provides,
// Replaces, Breaks).
//
// Grounded on the textual relationships exercised throughout
// hwpack/tests/test_packages.py (StringifyRelationshipTests,
// assertControlFieldsPreserved) — this package gives that raw-string
// traffic a parsed structured form internally, per spec.md's Design
// Notes preference for field-wise equality over textual comparison.
//
// A relationship field is a comma-separated list of entries, each
// entry itself an alternation ("|") of (package, optional version
// constraint) pairs — e.g. "bar, baz (>= 1.0) | zap".
package relationship

import (
	"fmt"
	"strings"
)

// Kind names one of the seven relationship fields a package stanza may
// declare.
type Kind string

const (
	Depends    Kind = "Depends"
	PreDepends Kind = "Pre-Depends"
	Conflicts  Kind = "Conflicts"
	Recommends Kind = "Recommends"
	Provides   Kind = "Provides"
	Replaces   Kind = "Replaces"
	Breaks     Kind = "Breaks"
)

// Kinds lists the seven relationship fields in the fixed order the
// Packages-index stanza format requires them to appear in.
var Kinds = []Kind{Depends, PreDepends, Conflicts, Recommends, Provides, Replaces, Breaks}

// Operator is one of the five version-constraint comparators.
type Operator string

const (
	OpLess         Operator = "<<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
	OpGreaterEqual Operator = ">="
	OpGreater      Operator = ">>"
)

// Constraint is a version comparison attached to one alternative.
type Constraint struct {
	Op      Operator
	Version string
}

func (c *Constraint) String() string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf(" (%s %s)", c.Op, c.Version)
}

// Alternative is a single (package-name, optional version-constraint)
// pair.
type Alternative struct {
	Package    string
	Constraint *Constraint
}

func (a Alternative) String() string {
	return a.Package + a.Constraint.String()
}

func (a Alternative) equal(b Alternative) bool {
	if a.Package != b.Package {
		return false
	}
	switch {
	case a.Constraint == nil && b.Constraint == nil:
		return true
	case a.Constraint == nil || b.Constraint == nil:
		return false
	default:
		return *a.Constraint == *b.Constraint
	}
}

// Entry is an alternation ("|") of Alternatives — any one of them
// satisfies the entry.
type Entry struct {
	Alternatives []Alternative
}

func (e Entry) String() string {
	parts := make([]string, len(e.Alternatives))
	for i, a := range e.Alternatives {
		parts[i] = a.String()
	}
	return strings.Join(parts, " | ")
}

// Relationship is an ordered, comma-separated list of Entries — the
// full textual content of one relationship field. Entries is nil for
// a field that was never declared, and non-nil-but-empty for one
// declared with empty content; the two are distinct (IsZero).
type Relationship struct {
	Entries []Entry
}

// IsZero reports whether r represents a relationship that was never
// declared at all, distinct from one that parses to zero entries.
func (r Relationship) IsZero() bool {
	return r.Entries == nil
}

// String renders the canonical textual form of r: entries joined by
// ", ", alternatives within an entry joined by " | ".
func (r Relationship) String() string {
	parts := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}

// Equal reports whether r and other declare the same entries in the
// same order with the same constraints — field-wise equality, not
// textual.
func (r Relationship) Equal(other Relationship) bool {
	if r.IsZero() != other.IsZero() {
		return false
	}
	if len(r.Entries) != len(other.Entries) {
		return false
	}
	for i, e := range r.Entries {
		o := other.Entries[i]
		if len(e.Alternatives) != len(o.Alternatives) {
			return false
		}
		for j, a := range e.Alternatives {
			if !a.equal(o.Alternatives[j]) {
				return false
			}
		}
	}
	return true
}

// Parse parses the textual form of a single relationship field. An
// empty string parses to a Relationship with zero entries (declared
// but empty); to represent "never declared", use the zero
// Relationship{} value instead of calling Parse.
func Parse(kind Kind, text string) (Relationship, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Relationship{Entries: []Entry{}}, nil
	}

	var entries []Entry
	for _, group := range strings.Split(text, ",") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		var alts []Alternative
		for _, alt := range strings.Split(group, "|") {
			a, err := parseAlternative(alt)
			if err != nil {
				return Relationship{}, fmt.Errorf("parsing %s: %w", kind, err)
			}
			alts = append(alts, a)
		}
		entries = append(entries, Entry{Alternatives: alts})
	}
	return Relationship{Entries: entries}, nil
}

func parseAlternative(text string) (Alternative, error) {
	text = strings.TrimSpace(text)
	open := strings.IndexByte(text, '(')
	if open == -1 {
		return Alternative{Package: text}, nil
	}
	close := strings.IndexByte(text, ')')
	if close == -1 || close < open {
		return Alternative{}, fmt.Errorf("malformed constraint in %q", text)
	}
	name := strings.TrimSpace(text[:open])
	inner := strings.TrimSpace(text[open+1 : close])
	fields := strings.Fields(inner)
	if len(fields) != 2 {
		return Alternative{}, fmt.Errorf("malformed constraint in %q", text)
	}
	return Alternative{
		Package:    name,
		Constraint: &Constraint{Op: Operator(fields[0]), Version: fields[1]},
	}, nil
}

// Candidate is the minimal view of an index candidate that Stringify
// needs: the raw relationship text the index recorded for each kind,
// keyed by field name exactly as the Packages-index stanza spells it.
type Candidate interface {
	RawRelationship(kind Kind) (text string, declared bool)
}

// Stringify projects the named relationship out of candidate into its
// canonical text form. The second return value is false when the
// candidate never declared that relationship at all. Text that does
// not parse is returned as the candidate recorded it.
func Stringify(candidate Candidate, kind Kind) (string, bool) {
	text, declared := candidate.RawRelationship(kind)
	if !declared {
		return "", false
	}
	rel, err := Parse(kind, text)
	if err != nil {
		return text, true
	}
	return rel.String(), true
}
