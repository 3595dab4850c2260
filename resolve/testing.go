package resolve

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/linaro/hwpack/archive"
)

// SourceFixture builds a SourceEntry-shaped directory on disk holding a
// Packages file rendered from packages, plus one file per package at
// its Filename holding its Content (empty when no content is bound),
// for use by tests. It mirrors
// the teacher's pattern of test-only helpers living in a plain .go
// file rather than a _test.go file, so the fixture API is importable
// from other packages' tests too (snappy/test_helpers.go plays the
// same role for the teacher's own suite).
func SourceFixture(dir string, packages []*archive.FetchedPackage) (SourceEntry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("resolve: create fixture dir: %w", err)
	}
	stanza := archive.RenderStanza(packages, "")
	path := filepath.Join(dir, "Packages")
	if err := os.WriteFile(path, []byte(stanza), 0o644); err != nil {
		return "", fmt.Errorf("resolve: write fixture Packages: %w", err)
	}
	for _, pkg := range packages {
		debPath := filepath.Join(dir, pkg.Filename)
		if err := os.WriteFile(debPath, pkg.Content, 0o644); err != nil {
			return "", fmt.Errorf("resolve: write fixture %s: %w", pkg.Filename, err)
		}
	}
	return SourceEntry(dir), nil
}
