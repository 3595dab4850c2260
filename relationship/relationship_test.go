package relationship

import "testing"

func TestParseRenderRoundTrip(t *testing.T) {
	cases := []string{
		"bar",
		"bar | baz",
		"bar, baz (>= 1.0)",
		"bar | baz (>= 1.0), zap",
		"",
	}
	for _, text := range cases {
		rel, err := Parse(Depends, text)
		if err != nil {
			t.Fatalf("Parse(%q): %v", text, err)
		}
		if got := rel.String(); got != text {
			t.Errorf("Parse(%q).String() = %q, want %q", text, got, text)
		}
	}
}

func TestZeroRelationshipDistinctFromEmpty(t *testing.T) {
	var zero Relationship
	if !zero.IsZero() {
		t.Fatal("zero value should be IsZero()")
	}

	declared, err := Parse(Depends, "")
	if err != nil {
		t.Fatal(err)
	}
	if declared.IsZero() {
		t.Fatal("Parse(\"\") should not be IsZero()")
	}
	if zero.Equal(declared) {
		t.Fatal("zero and declared-empty relationships must not compare equal")
	}
}

func TestEqualIsFieldWise(t *testing.T) {
	a, _ := Parse(Depends, "bar (>= 1.0)")
	b, _ := Parse(Depends, "bar (>= 1.0)")
	if !a.Equal(b) {
		t.Fatal("expected equal relationships to compare equal")
	}

	c, _ := Parse(Depends, "bar (>= 1.1)")
	if a.Equal(c) {
		t.Fatal("expected different constraint versions to compare unequal")
	}
}

func TestParseConstraintOperators(t *testing.T) {
	rel, err := Parse(Depends, "baz (<= 2.0)")
	if err != nil {
		t.Fatal(err)
	}
	if len(rel.Entries) != 1 || len(rel.Entries[0].Alternatives) != 1 {
		t.Fatalf("unexpected shape: %#v", rel)
	}
	alt := rel.Entries[0].Alternatives[0]
	if alt.Package != "baz" || alt.Constraint == nil || alt.Constraint.Op != OpLessEqual || alt.Constraint.Version != "2.0" {
		t.Fatalf("unexpected alternative: %#v", alt)
	}
}

type fakeCandidate struct {
	declared map[Kind]string
}

func (f fakeCandidate) RawRelationship(kind Kind) (string, bool) {
	text, ok := f.declared[kind]
	return text, ok
}

func TestStringify(t *testing.T) {
	c := fakeCandidate{declared: map[Kind]string{Depends: "bar | baz"}}

	if text, ok := Stringify(c, Depends); !ok || text != "bar | baz" {
		t.Fatalf("Stringify(Depends) = %q, %v", text, ok)
	}
	if _, ok := Stringify(c, Conflicts); ok {
		t.Fatal("expected Conflicts to be undeclared")
	}
}
