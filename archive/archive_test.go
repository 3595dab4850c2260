package archive

import (
	"crypto/md5"
	"fmt"
	"testing"

	"github.com/linaro/hwpack/relationship"
)

func TestWriteMakerDoubleEnterIsProgrammingError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double Enter")
		}
	}()
	var m WriteMaker
	if err := m.Enter(); err != nil {
		t.Fatal(err)
	}
	defer m.Exit()
	m.Enter()
}

func TestWriteMakerExitWithoutEnterIsNoop(t *testing.T) {
	var m WriteMaker
	m.Exit() // must not panic
}

func TestWriteMakerMakePackageRoundTrip(t *testing.T) {
	var m WriteMaker
	if err := m.Enter(); err != nil {
		t.Fatal(err)
	}
	defer m.Exit()

	path, err := m.MakePackage("foo", "1.0", map[string]string{
		"Depends": "bar, baz (>= 1.0)",
	})
	if err != nil {
		t.Fatal(err)
	}

	pkg, err := ReadPackage(path)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Name != "foo" || pkg.Version != "1.0" || pkg.Architecture != "all" {
		t.Fatalf("unexpected package: %+v", pkg)
	}
	if got := pkg.Depends.String(); got != "bar, baz (>= 1.0)" {
		t.Errorf("Depends = %q, want %q", got, "bar, baz (>= 1.0)")
	}
	if pkg.Content == nil {
		t.Fatal("expected content to be bound")
	}
}

func TestMakePackageUnknownFieldFails(t *testing.T) {
	var m WriteMaker
	if err := m.Enter(); err != nil {
		t.Fatal(err)
	}
	defer m.Exit()

	if _, err := m.MakePackage("foo", "1.0", map[string]string{"InvalidField": "value"}); err == nil {
		t.Fatal("expected error for unknown control field")
	}
}

func TestMakePackageAllRelationshipFieldsPreserved(t *testing.T) {
	var m WriteMaker
	if err := m.Enter(); err != nil {
		t.Fatal(err)
	}
	defer m.Exit()

	fields := map[string]string{
		"Depends":     "bar, baz (>= 1.0)",
		"Pre-Depends": "bar, baz (>= 1.0)",
		"Conflicts":   "bar, baz (>= 1.0)",
		"Recommends":  "bar, baz (>= 1.0)",
		"Provides":    "bar, baz (= 1.0)",
		"Replaces":    "bar, baz (>= 1.0)",
		"Breaks":      "bar, baz (>= 1.0)",
	}
	path, err := m.MakePackage("foo", "1.0", fields)
	if err != nil {
		t.Fatal(err)
	}
	pkg, err := ReadPackage(path)
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Depends.String() != fields["Depends"] {
		t.Errorf("Depends = %q", pkg.Depends.String())
	}
	if pkg.PreDepends.String() != fields["Pre-Depends"] {
		t.Errorf("PreDepends = %q", pkg.PreDepends.String())
	}
	if pkg.Conflicts.String() != fields["Conflicts"] {
		t.Errorf("Conflicts = %q", pkg.Conflicts.String())
	}
	if pkg.Recommends.String() != fields["Recommends"] {
		t.Errorf("Recommends = %q", pkg.Recommends.String())
	}
	if pkg.Provides.String() != fields["Provides"] {
		t.Errorf("Provides = %q", pkg.Provides.String())
	}
	if pkg.Replaces.String() != fields["Replaces"] {
		t.Errorf("Replaces = %q", pkg.Replaces.String())
	}
	if pkg.Breaks.String() != fields["Breaks"] {
		t.Errorf("Breaks = %q", pkg.Breaks.String())
	}
}

func TestFetchedPackageEquality(t *testing.T) {
	md5a := [16]byte{0xaa}
	p1 := New("foo", "1.1", "foo_1.1.deb", 4, md5a, "armel")
	p2 := New("foo", "1.1", "foo_1.1.deb", 4, md5a, "armel")
	if !p1.Equal(p2) {
		t.Fatal("expected equal packages")
	}

	p3 := New("bar", "1.1", "foo_1.1.deb", 4, md5a, "armel")
	if p1.Equal(p3) {
		t.Fatal("expected different name to compare unequal")
	}
}

func TestFetchedPackageContentEqualityRequiresBothBound(t *testing.T) {
	md5a := md5.Sum([]byte("xxxx"))
	p1, err := New("foo", "1.1", "foo_1.1.deb", 4, md5a, "armel").WithContent([]byte("xxxx"))
	if err != nil {
		t.Fatal(err)
	}
	p2 := New("foo", "1.1", "foo_1.1.deb", 4, md5a, "armel")
	if p1.Equal(p2) {
		t.Fatal("bound content must not equal unbound content")
	}
}

func TestRenderStanza(t *testing.T) {
	md5a := [16]byte{0xde, 0xad, 0xbe, 0xef}
	pkg := New("foo", "1.1", "foo_1.1.deb", 42, md5a, "armel")
	rel, _ := relationship.Parse(relationship.Depends, "bar | baz")
	pkg.Depends = rel

	got := RenderStanza([]*FetchedPackage{pkg}, "")
	want := "Package: foo\n" +
		"Version: 1.1\n" +
		"Filename: foo_1.1.deb\n" +
		"Size: 42\n" +
		"Architecture: armel\n" +
		"Depends: bar | baz\n" +
		fmt.Sprintf("MD5sum: %x\n\n", md5a)
	if got != want {
		t.Errorf("RenderStanza =\n%q\nwant\n%q", got, want)
	}
}
