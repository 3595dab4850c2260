package resolve

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/linaro/hwpack/archive"
	"github.com/linaro/hwpack/hwerr"
	"github.com/linaro/hwpack/internal/log"
	"github.com/linaro/hwpack/relationship"
)

// Fetcher drives one dependency-closure resolution pass over an Index:
// given a set of root package names, it walks Depends, Pre-Depends and
// Recommends to a fixed point and returns every FetchedPackage the
// closure touches, downloading (reading into memory, in this
// in-process model) content along the way when requested.
//
// Grounded on hwpack.tests.test_packages.PackageFetcherTests: closure
// correctness, newest-across-sources selection, architecture
// filtering, Provides-aware ignore handling, and the purity guarantee
// that a failed or partial Fetch/Ignore call leaves the underlying
// Index exactly as it found it.
type Fetcher struct {
	idx     *Index
	ignored map[string]bool
}

// NewFetcher returns a Fetcher bound to a prepared Index.
func NewFetcher(idx *Index) *Fetcher {
	return &Fetcher{idx: idx, ignored: map[string]bool{}}
}

// Fetch resolves the transitive dependency closure of roots (Depends,
// Pre-Depends and Recommends, honouring any names already passed to
// Ignore) and returns every FetchedPackage the closure touches, newest
// candidate per name. If downloadContent is true, each package's exact
// archive bytes are read from its Filename (resolved relative to its
// source directory) and bound via FetchedPackage.WithContent, and the
// closure is walked past the roots into their dependencies. If false,
// per spec.md §4.4 "Content binding", the closure is NOT walked past
// the roots at all: only the roots themselves are returned, with no
// content bound.
//
// On any error the Index is left exactly as it was before Fetch was
// called: partial closures are never surfaced and never mutate
// idx.marked permanently (see PackageFetcherTests.test_get_changes).
func (f *Fetcher) Fetch(roots []string, downloadContent bool) (packages []*archive.FetchedPackage, err error) {
	visited := map[string]bool{}
	for name := range f.ignored {
		visited[name] = true
	}
	defer func() {
		f.idx.marked = map[string]bool{}
	}()

	var order []string
	var walk func(requester, name string) error
	walk = func(requester, name string) error {
		if visited[name] {
			return nil
		}
		candidate, lookupErr := f.idx.Lookup(name)
		if lookupErr != nil {
			if providers := f.idx.Provider(name); len(providers) > 0 {
				candidate = providers[0]
			} else {
				return &hwerr.DependencyNotSatisfied{Name: requester}
			}
		}
		visited[name] = true
		f.idx.marked[name] = true
		order = append(order, candidate.Name)

		// spec.md §4.4 "Content binding": when downloadContent is
		// false, the closure is not walked past the roots — only the
		// roots themselves are materialised.
		if !downloadContent {
			return nil
		}

		for _, kind := range []relationship.Kind{relationship.PreDepends, relationship.Depends, relationship.Recommends} {
			raw, ok := candidate.raw(string(kind))
			if !ok || raw == "" {
				continue
			}
			rel, parseErr := relationship.Parse(kind, raw)
			if parseErr != nil {
				return parseErr
			}
			for _, entry := range rel.Entries {
				if err := walkAlternatives(f.idx, entry, visited, candidate.Name, walk); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, root := range roots {
		if f.ignored[root] {
			continue
		}
		if err := walk(root, root); err != nil {
			return nil, err
		}
	}

	seen := map[string]bool{}
	for _, name := range order {
		if seen[name] || f.ignored[name] {
			continue
		}
		seen[name] = true
		candidate, lookupErr := f.idx.Lookup(name)
		if lookupErr != nil {
			providers := f.idx.Provider(name)
			if len(providers) == 0 {
				return nil, lookupErr
			}
			candidate = providers[0]
		}
		pkg, err := materialise(candidate, downloadContent)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	archive.SortByNameVersion(packages)
	log.L.Debugw("fetch closure resolved", "roots", roots, "count", len(packages))
	return packages, nil
}

// walkAlternatives resolves a single comma-separated Entry (an
// OR-group of Alternatives): the first alternative already visited, or
// else resolvable in the index, is walked; if none resolves, the
// requesting package's name is reported unsatisfied.
func walkAlternatives(idx *Index, entry relationship.Entry, visited map[string]bool, requester string, walk func(requester, name string) error) error {
	for _, alt := range entry.Alternatives {
		if visited[alt.Package] {
			return nil
		}
	}
	var lastErr error
	for _, alt := range entry.Alternatives {
		_, err := idx.Lookup(alt.Package)
		if err == nil {
			return walk(requester, alt.Package)
		}
		if providers := idx.Provider(alt.Package); len(providers) > 0 {
			return walk(requester, alt.Package)
		}
		lastErr = err
	}
	_ = lastErr
	return &hwerr.DependencyNotSatisfied{Name: requester}
}

// Ignore marks names as already satisfied: a subsequent Fetch neither
// returns them nor walks past them. Ignore still validates that every
// named package's own dependency closure is satisfiable (honouring
// Provides), per test_ignore_cant_satisfy_dependencies — only packages
// reachable from an ignored root are exempted from that check (per
// test_ignore_dependency_of_ignored).
func (f *Fetcher) Ignore(names []string) error {
	closureVisited := map[string]bool{}
	for n := range f.ignored {
		closureVisited[n] = true
	}

	var walk func(requester, name string) error
	walk = func(requester, name string) error {
		if closureVisited[name] {
			return nil
		}
		candidate, lookupErr := f.idx.Lookup(name)
		if lookupErr != nil {
			if providers := f.idx.Provider(name); len(providers) > 0 {
				candidate = providers[0]
			} else {
				return &hwerr.DependencyNotSatisfied{Name: requester}
			}
		}
		closureVisited[name] = true

		for _, kind := range []relationship.Kind{relationship.PreDepends, relationship.Depends, relationship.Recommends} {
			raw, ok := candidate.raw(string(kind))
			if !ok || raw == "" {
				continue
			}
			rel, parseErr := relationship.Parse(kind, raw)
			if parseErr != nil {
				return parseErr
			}
			for _, entry := range rel.Entries {
				if err := walkAlternatives(f.idx, entry, closureVisited, candidate.Name, walk); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, name := range names {
		if err := walk(name, name); err != nil {
			return err
		}
	}
	for name := range closureVisited {
		f.ignored[name] = true
	}
	return nil
}

func materialise(candidate *Candidate, downloadContent bool) (*archive.FetchedPackage, error) {
	md5Bytes, err := decodeMD5(candidate.MD5)
	if err != nil {
		return nil, fmt.Errorf("resolve: decode md5 for %s: %w", candidate.Name, err)
	}
	pkg := archive.New(candidate.Name, candidate.Version, candidate.Filename, candidate.Size, md5Bytes, candidate.Architecture)

	for _, kind := range relationship.Kinds {
		raw, ok := candidate.raw(string(kind))
		if !ok {
			continue
		}
		rel, err := relationship.Parse(kind, raw)
		if err != nil {
			return nil, err
		}
		switch kind {
		case relationship.Depends:
			pkg.Depends = rel
		case relationship.PreDepends:
			pkg.PreDepends = rel
		case relationship.Conflicts:
			pkg.Conflicts = rel
		case relationship.Recommends:
			pkg.Recommends = rel
		case relationship.Provides:
			pkg.Provides = rel
		case relationship.Replaces:
			pkg.Replaces = rel
		case relationship.Breaks:
			pkg.Breaks = rel
		}
	}

	if !downloadContent {
		return pkg, nil
	}
	path := filepath.Join(string(candidate.Source), candidate.Filename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("resolve: read %s: %w", path, err)
	}
	return pkg.WithContent(data)
}

func decodeMD5(hexStr string) ([16]byte, error) {
	var out [16]byte
	if hexStr == "" {
		return out, nil
	}
	decoded, err := hex.DecodeString(hexStr)
	if err != nil {
		return out, err
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("invalid md5 hex length %d", len(decoded))
	}
	copy(out[:], decoded)
	return out, nil
}
