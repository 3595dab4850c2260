// Package resolve implements the isolated package index and the
// dependency-closure fetcher (the Go analogue of hwpack.packages'
// IsolatedAptCache / PackageFetcher pair). Rather than shelling out to
// apt-get against a scratch root — there is no apt/libapt binding in
// the retrieval pack, and the scratch-root contract from spec.md §6
// only needs a Packages-index reader, not a full package manager — an
// Index is a flat set of directories, each holding a "Packages" file
// in the stanza format archive.RenderStanza produces, parsed in
// process by parseStanzas. The on-disk layout of the scratch root
// (var/lib/dpkg/status, var/cache/apt/archives/partial,
// var/lib/apt/lists/partial, etc/apt/sources.list, etc/apt/apt.conf)
// is still created and torn down exactly as the teacher's
// IsolatedAptCache does, so tooling that inspects the scratch root
// between Prepare and Cleanup sees the layout it expects.
package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/linaro/hwpack/archive"
	"github.com/linaro/hwpack/hwerr"
	"github.com/linaro/hwpack/internal/helpers"
	"github.com/linaro/hwpack/internal/log"
	"github.com/linaro/hwpack/relationship"
)

// SourceEntry names one configured package source: a directory
// containing a "Packages" file plus the .deb files it references.
// This is the in-process stand-in for an apt "deb <entry>" sources.list
// line.
type SourceEntry string

// Index is the isolated view of one or more SourceEntrys plus an
// installed-package baseline, scoped to a private scratch directory so
// that resolution never touches the host's real package database.
// Index follows the teacher's scoped-acquisition idiom (clickdeb's
// ClickDeb, partition's MountState): an Index built by NewIndex must be
// Prepare'd before use and Cleanup'd when done, and Cleanup is always
// safe to call, prepared or not.
type Index struct {
	Architecture string
	sources      []SourceEntry
	tempdir      string
	prepared     bool

	candidates map[string][]*Candidate
	installed  map[string]*archive.FetchedPackage

	// marked tracks names pulled in by the in-progress Fetch/Ignore
	// call so Fetcher can roll the index back to a pure state on
	// failure; see fetcher.go.
	marked map[string]bool
}

// NewIndex builds an Index over sources, scoped to architecture. The
// index is not usable until Prepare succeeds.
func NewIndex(architecture string, sources []SourceEntry) *Index {
	return &Index{
		Architecture: architecture,
		sources:      append([]SourceEntry(nil), sources...),
		candidates:   map[string][]*Candidate{},
		installed:    map[string]*archive.FetchedPackage{},
		marked:       map[string]bool{},
	}
}

// Prepare creates the scratch root and loads every configured source's
// Packages file. Calling Prepare twice is a programming error: callers
// own the Enter/Exit discipline same as archive.WriteMaker.
func (idx *Index) Prepare() error {
	if idx.prepared {
		hwerr.ProgrammingError("resolve: Index already prepared")
	}

	dir, err := os.MkdirTemp("", "hwpack-index-")
	if err != nil {
		return fmt.Errorf("resolve: create scratch root: %w", err)
	}
	if err := layoutScratchRoot(dir); err != nil {
		os.RemoveAll(dir)
		return err
	}
	var sourcesList []byte
	for _, src := range idx.sources {
		sourcesList = append(sourcesList, "deb "+string(src)+"\n"...)
	}
	if err := os.WriteFile(filepath.Join(dir, "etc/apt/sources.list"), sourcesList, 0o644); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("resolve: write sources.list: %w", err)
	}
	if idx.Architecture != "" {
		aptConf := fmt.Sprintf("Apt {\nArchitecture \"%s\";\nInstall-Recommends \"true\";\n}\n", idx.Architecture)
		if err := os.WriteFile(filepath.Join(dir, "etc/apt/apt.conf"), []byte(aptConf), 0o644); err != nil {
			os.RemoveAll(dir)
			return fmt.Errorf("resolve: write apt.conf: %w", err)
		}
	}

	for _, src := range idx.sources {
		packagesPath := filepath.Join(string(src), "Packages")
		data, err := os.ReadFile(packagesPath)
		if err != nil {
			os.RemoveAll(dir)
			return fmt.Errorf("resolve: read %s: %w", packagesPath, err)
		}
		parsed, err := parseStanzas(data, src)
		if err != nil {
			os.RemoveAll(dir)
			return fmt.Errorf("resolve: parse %s: %w", packagesPath, err)
		}
		for _, c := range parsed {
			idx.candidates[c.Name] = append(idx.candidates[c.Name], c)
		}
	}
	for name, group := range idx.candidates {
		sort.SliceStable(group, func(i, j int) bool {
			return compareVersions(group[i].Version, group[j].Version) > 0
		})
		idx.candidates[name] = group
	}

	idx.tempdir = dir
	idx.prepared = true
	log.L.Debugw("index prepared", "root", dir, "sources", len(idx.sources))
	return nil
}

// layoutScratchRoot reproduces the teacher's isolated-apt-cache
// directory layout and the empty dpkg status file. The
// etc/apt/sources.list and etc/apt/apt.conf text files are written by
// Prepare, which knows the sources and architecture.
func layoutScratchRoot(root string) error {
	dirs := []string{
		"var/lib/dpkg",
		"var/cache/apt/archives/partial",
		"var/lib/apt/lists/partial",
		"etc/apt",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("resolve: create %s: %w", d, err)
		}
	}
	if err := helpers.AtomicWriteFile(filepath.Join(root, "var/lib/dpkg/status"), nil, 0o644); err != nil {
		return fmt.Errorf("resolve: init dpkg status: %w", err)
	}
	return nil
}

// SetInstalled rewrites the scratch root's var/lib/dpkg/status file as
// the concatenation of packages' stanzas, each carrying "Status:
// install ok installed" (spec.md §4.3); an empty packages clears the
// file. It also replaces the in-memory installed-package baseline the
// fetcher consults.
func (idx *Index) SetInstalled(packages []*archive.FetchedPackage) error {
	if !idx.prepared {
		hwerr.ProgrammingError("resolve: SetInstalled before Prepare")
	}
	statusPath := filepath.Join(idx.tempdir, "var/lib/dpkg/status")
	data := []byte(archive.RenderStanza(packages, "Status: install ok installed"))
	if err := helpers.AtomicWriteFile(statusPath, data, 0o644); err != nil {
		return fmt.Errorf("resolve: write dpkg status: %w", err)
	}

	idx.installed = map[string]*archive.FetchedPackage{}
	for _, p := range packages {
		idx.installed[p.Name] = p
	}
	return nil
}

// Lookup returns the newest Candidate named name whose Architecture is
// either idx.Architecture or "all". It returns hwerr.NotFound when no
// configured source carries the name at all.
func (idx *Index) Lookup(name string) (*Candidate, error) {
	if !idx.prepared {
		hwerr.ProgrammingError("resolve: Lookup before Prepare")
	}
	group, ok := idx.candidates[name]
	if !ok {
		return nil, &hwerr.NotFound{Name: name}
	}
	for _, c := range group {
		if c.Architecture == idx.Architecture || c.Architecture == "all" || c.Architecture == "" {
			return c, nil
		}
	}
	return nil, &hwerr.NotFound{Name: name}
}

// Provider returns every Candidate across all configured sources whose
// Provides relationship names virtualName, newest first. Used by the
// fetcher's ignore-closure walk to resolve virtual packages the way
// the teacher's test_ignore_with_provides expects.
func (idx *Index) Provider(virtualName string) []*Candidate {
	var out []*Candidate
	for _, group := range idx.candidates {
		for _, c := range group {
			for _, entry := range providesNames(c) {
				if entry == virtualName {
					out = append(out, c)
				}
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return compareVersions(out[i].Version, out[j].Version) > 0
	})
	return out
}

func providesNames(c *Candidate) []string {
	raw, ok := c.raw(string(relationship.Provides))
	if !ok || raw == "" {
		return nil
	}
	rel, err := relationship.Parse(relationship.Provides, raw)
	if err != nil {
		return nil
	}
	var names []string
	for _, entry := range rel.Entries {
		for _, alt := range entry.Alternatives {
			names = append(names, alt.Package)
		}
	}
	return names
}

// Cleanup removes the scratch root. It is always safe to call,
// prepared or not, mirroring the teacher's idempotent
// IsolatedAptCache.cleanup.
func (idx *Index) Cleanup() {
	if idx.tempdir == "" {
		return
	}
	if err := os.RemoveAll(idx.tempdir); err != nil {
		log.L.Warnw("index cleanup failed", "root", idx.tempdir, "error", err)
	}
	idx.tempdir = ""
	idx.prepared = false
}
