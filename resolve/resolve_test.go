package resolve

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/linaro/hwpack/archive"
	"github.com/linaro/hwpack/hwerr"
	"github.com/linaro/hwpack/relationship"
)

func mustPkg(t *testing.T, name, version, depends string) *archive.FetchedPackage {
	t.Helper()
	pkg := archive.New(name, version, name+"_"+version+".deb", 0, [16]byte{}, "armel")
	if depends != "" {
		rel, err := relationship.Parse(relationship.Depends, depends)
		if err != nil {
			t.Fatal(err)
		}
		pkg.Depends = rel
	}
	return pkg
}

func TestFetchResolvesTransitiveClosure(t *testing.T) {
	dir := t.TempDir()
	foo := mustPkg(t, "foo", "1.0", "bar")
	bar := mustPkg(t, "bar", "1.0", "baz")
	baz := mustPkg(t, "baz", "1.0", "")
	src, err := SourceFixture(dir, []*archive.FetchedPackage{foo, bar, baz})
	if err != nil {
		t.Fatal(err)
	}

	idx := NewIndex("armel", []SourceEntry{src})
	if err := idx.Prepare(); err != nil {
		t.Fatal(err)
	}
	defer idx.Cleanup()

	f := NewFetcher(idx)
	got, err := f.Fetch([]string{"foo"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 packages in closure, got %d: %+v", len(got), got)
	}
}

func TestFetchWithoutContentReturnsOnlyRoots(t *testing.T) {
	dir := t.TempDir()
	foo := mustPkg(t, "foo", "1.0", "bar")
	bar := mustPkg(t, "bar", "1.0", "baz")
	baz := mustPkg(t, "baz", "1.0", "")
	src, err := SourceFixture(dir, []*archive.FetchedPackage{foo, bar, baz})
	if err != nil {
		t.Fatal(err)
	}

	idx := NewIndex("armel", []SourceEntry{src})
	if err := idx.Prepare(); err != nil {
		t.Fatal(err)
	}
	defer idx.Cleanup()

	f := NewFetcher(idx)
	got, err := f.Fetch([]string{"foo"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "foo" {
		t.Fatalf("expected only the root foo, got %+v", got)
	}
	if got[0].Content != nil {
		t.Fatalf("expected no content bound, got %d bytes", len(got[0].Content))
	}
}

func TestFetchUnsatisfiedDependencyNamesRequester(t *testing.T) {
	dir := t.TempDir()
	foo := mustPkg(t, "foo", "1.0", "bar")
	src, err := SourceFixture(dir, []*archive.FetchedPackage{foo})
	if err != nil {
		t.Fatal(err)
	}

	idx := NewIndex("armel", []SourceEntry{src})
	if err := idx.Prepare(); err != nil {
		t.Fatal(err)
	}
	defer idx.Cleanup()

	_, err = NewFetcher(idx).Fetch([]string{"foo"}, true)
	depErr, ok := err.(*hwerr.DependencyNotSatisfied)
	if !ok {
		t.Fatalf("expected *hwerr.DependencyNotSatisfied, got %T (%v)", err, err)
	}
	if depErr.Name != "foo" {
		t.Errorf("DependencyNotSatisfied.Name = %q, want %q (the requester, not the missing dep)", depErr.Name, "foo")
	}
}

func TestFetchPicksNewestAcrossSources(t *testing.T) {
	dirOld := t.TempDir()
	dirNew := t.TempDir()
	old := mustPkg(t, "foo", "1.0", "")
	newer := mustPkg(t, "foo", "2.0", "")
	srcOld, err := SourceFixture(dirOld, []*archive.FetchedPackage{old})
	if err != nil {
		t.Fatal(err)
	}
	srcNew, err := SourceFixture(dirNew, []*archive.FetchedPackage{newer})
	if err != nil {
		t.Fatal(err)
	}

	idx := NewIndex("armel", []SourceEntry{srcOld, srcNew})
	if err := idx.Prepare(); err != nil {
		t.Fatal(err)
	}
	defer idx.Cleanup()

	got, err := NewFetcher(idx).Fetch([]string{"foo"}, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Version != "2.0" {
		t.Fatalf("expected newest version 2.0, got %+v", got)
	}
}

func TestIgnoreExcludesPackageAndItsDependencies(t *testing.T) {
	dir := t.TempDir()
	foo := mustPkg(t, "foo", "1.0", "bar")
	bar := mustPkg(t, "bar", "1.0", "baz")
	baz := mustPkg(t, "baz", "1.0", "")
	src, err := SourceFixture(dir, []*archive.FetchedPackage{foo, bar, baz})
	if err != nil {
		t.Fatal(err)
	}

	idx := NewIndex("armel", []SourceEntry{src})
	if err := idx.Prepare(); err != nil {
		t.Fatal(err)
	}
	defer idx.Cleanup()

	f := NewFetcher(idx)
	if err := f.Ignore([]string{"bar"}); err != nil {
		t.Fatal(err)
	}
	got, err := f.Fetch([]string{"foo"}, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Name != "foo" {
		t.Fatalf("expected only foo after ignoring bar (and its closure), got %+v", got)
	}
}

func TestIgnoreWithUnsatisfiableDependencyFails(t *testing.T) {
	dir := t.TempDir()
	foo := mustPkg(t, "foo", "1.0", "bar")
	src, err := SourceFixture(dir, []*archive.FetchedPackage{foo})
	if err != nil {
		t.Fatal(err)
	}

	idx := NewIndex("armel", []SourceEntry{src})
	if err := idx.Prepare(); err != nil {
		t.Fatal(err)
	}
	defer idx.Cleanup()

	err = NewFetcher(idx).Ignore([]string{"foo"})
	if _, ok := err.(*hwerr.DependencyNotSatisfied); !ok {
		t.Fatalf("expected *hwerr.DependencyNotSatisfied, got %T (%v)", err, err)
	}
}

func TestIndexLookupMissingPackage(t *testing.T) {
	dir := t.TempDir()
	src, err := SourceFixture(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	idx := NewIndex("armel", []SourceEntry{src})
	if err := idx.Prepare(); err != nil {
		t.Fatal(err)
	}
	defer idx.Cleanup()

	_, err = idx.Lookup("nope")
	if _, ok := err.(*hwerr.NotFound); !ok {
		t.Fatalf("expected *hwerr.NotFound, got %T (%v)", err, err)
	}
}

func TestSetInstalledRewritesStatusFile(t *testing.T) {
	dir := t.TempDir()
	src, err := SourceFixture(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	idx := NewIndex("armel", []SourceEntry{src})
	if err := idx.Prepare(); err != nil {
		t.Fatal(err)
	}
	defer idx.Cleanup()

	statusPath := filepath.Join(idx.tempdir, "var/lib/dpkg/status")
	before, err := os.ReadFile(statusPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(before) != 0 {
		t.Fatalf("expected empty status file right after Prepare, got %q", before)
	}

	foo := mustPkg(t, "foo", "1.0", "")
	if err := idx.SetInstalled([]*archive.FetchedPackage{foo}); err != nil {
		t.Fatal(err)
	}
	after, err := os.ReadFile(statusPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(after), "Package: foo\n") || !strings.Contains(string(after), "Status: install ok installed\n") {
		t.Fatalf("status file not rewritten with installed stanza: %q", after)
	}

	if err := idx.SetInstalled(nil); err != nil {
		t.Fatal(err)
	}
	cleared, err := os.ReadFile(statusPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(cleared) != 0 {
		t.Fatalf("expected empty status file after SetInstalled(nil), got %q", cleared)
	}
}

func TestCleanupIsIdempotentBeforePrepare(t *testing.T) {
	idx := NewIndex("armel", nil)
	idx.Cleanup() // must not panic
	idx.Cleanup()
}

func TestLookupBeforePrepareIsProgrammingError(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on Lookup before Prepare")
		}
	}()
	idx := NewIndex("armel", nil)
	idx.Lookup("foo")
}

func TestVersionComparison(t *testing.T) {
	cases := []struct{ a, b string; want int }{
		{"1.0", "1.0", 0},
		{"1.0", "2.0", -1},
		{"2.0", "1.0", 1},
		{"1.0~rc1", "1.0", -1},
		{"1.0-1", "1.0-2", -1},
		{"1:1.0", "2.0", 1},
		{"1.0ubuntu1", "1.0", 1},
	}
	for _, c := range cases {
		if got := compareVersions(c.a, c.b); sign(got) != sign(c.want) {
			t.Errorf("compareVersions(%q, %q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}
