package main

import (
	"fmt"
	"os"

	"github.com/linaro/hwpack/archive"
	"github.com/linaro/hwpack/resolve"
)

type cmdResolve struct {
	Architecture string   `long:"arch" description:"target architecture" default:"armel"`
	Source       []string `long:"source" description:"directory containing a Packages file; repeatable"`
	Ignore       []string `long:"ignore" description:"package name to treat as already satisfied; repeatable"`
	Args         struct {
		Packages []string `positional-arg-name:"package" required:"1"`
	} `positional-args:"yes"`
}

func init() {
	var data cmdResolve
	_, _ = parser.AddCommand("resolve",
		"Resolve a package closure against one or more isolated indexes",
		"Resolve a package closure against one or more isolated indexes and print the resulting stanza list",
		&data)
}

func (x *cmdResolve) Execute(args []string) error {
	var sources []resolve.SourceEntry
	for _, s := range x.Source {
		sources = append(sources, resolve.SourceEntry(s))
	}

	idx := resolve.NewIndex(x.Architecture, sources)
	if err := idx.Prepare(); err != nil {
		return err
	}
	defer idx.Cleanup()

	fetcher := resolve.NewFetcher(idx)
	if len(x.Ignore) > 0 {
		if err := fetcher.Ignore(x.Ignore); err != nil {
			return err
		}
	}

	packages, err := fetcher.Fetch(x.Args.Packages, true)
	if err != nil {
		return err
	}

	fmt.Fprint(os.Stdout, archive.RenderStanza(packages, ""))
	return nil
}
