// Package manifest parses the YAML recipe a hwpack-builder invocation
// is driven by: which board profile to target, which package sources
// and root packages to resolve, and which packages to treat as
// already satisfied.
//
// YAML was not a format any single teacher file used, but it is the
// configuration format of choice across the rest of the retrieval
// pack's system-image tooling (os-image-composer's debos-style action
// configs, several gadget/image-definition readers); gopkg.in/yaml.v2
// is the teacher's own vendored version of that library family (the
// rest of the pack splits between yaml.v2 and yaml.v3 without a clear
// preference, so the teacher's own pinned major version is kept).
package manifest

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v2"
)

// Recipe is the top-level shape of a hwpack build manifest file.
type Recipe struct {
	Board        string   `yaml:"board"`
	Architecture string   `yaml:"architecture"`
	Sources      []string `yaml:"sources"`
	Packages     []string `yaml:"packages"`
	Ignore       []string `yaml:"ignore"`

	// BuildID is assigned by Load, not read from the file: every load
	// gets a fresh identifier used in the output image filename (see
	// ImageName) so two builds from the same recipe get distinct image
	// names.
	BuildID uuid.UUID `yaml:"-"`
}

// Load reads and parses the recipe at path, filling in a fresh
// BuildID.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("manifest: parse %s: %w", path, err)
	}
	if r.Board == "" {
		return nil, fmt.Errorf("manifest: %s: board is required", path)
	}
	if len(r.Packages) == 0 {
		return nil, fmt.Errorf("manifest: %s: at least one package is required", path)
	}
	r.BuildID = uuid.New()
	return &r, nil
}

// ImageName renders the conventional output image filename for r:
// "<board>-<build id>.img".
func (r *Recipe) ImageName() string {
	return fmt.Sprintf("%s-%s.img", r.Board, r.BuildID)
}
