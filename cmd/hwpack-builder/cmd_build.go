package main

import (
	"fmt"
	"os"

	"github.com/linaro/hwpack/board"
	"github.com/linaro/hwpack/internal/log"
	"github.com/linaro/hwpack/layout"
	"github.com/linaro/hwpack/manifest"
	"github.com/linaro/hwpack/resolve"
)

type cmdBuild struct {
	Args struct {
		Recipe string `positional-arg-name:"recipe.yaml" required:"1"`
	} `positional-args:"yes"`
}

func init() {
	var data cmdBuild
	_, _ = parser.AddCommand("build",
		"Resolve a recipe's package closure and print its media layout",
		"Resolve a recipe's package closure against its configured sources and print the resulting sfdisk directive for its media image",
		&data)
}

func (x *cmdBuild) Execute(args []string) error {
	recipe, err := manifest.Load(x.Args.Recipe)
	if err != nil {
		return err
	}

	profile, err := board.Lookup(recipe.Board)
	if err != nil {
		return err
	}

	arch := recipe.Architecture
	if arch == "" {
		arch = "armel"
	}

	var sources []resolve.SourceEntry
	for _, s := range recipe.Sources {
		sources = append(sources, resolve.SourceEntry(s))
	}

	idx := resolve.NewIndex(arch, sources)
	if err := idx.Prepare(); err != nil {
		return err
	}
	defer idx.Cleanup()

	fetcher := resolve.NewFetcher(idx)
	if len(recipe.Ignore) > 0 {
		if err := fetcher.Ignore(recipe.Ignore); err != nil {
			return err
		}
	}
	packages, err := fetcher.Fetch(recipe.Packages, true)
	if err != nil {
		return err
	}
	log.L.Infow("resolved package closure", "build_id", recipe.BuildID, "count", len(packages))

	plan := layout.New(profile)
	fmt.Fprintf(os.Stdout, "image: %s\n%s\n", recipe.ImageName(), plan.SfdiskDirective())
	return nil
}
