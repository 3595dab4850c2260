package main

import (
	"fmt"
	"os"

	"github.com/linaro/hwpack/board"
	"github.com/linaro/hwpack/layout"
)

type cmdLayout struct {
	Board string `long:"board" description:"board profile name" required:"true"`
}

func init() {
	var data cmdLayout
	_, _ = parser.AddCommand("layout",
		"Print the sfdisk partition directive for a board's media image",
		"Print the sfdisk partition directive for a board's media image",
		&data)
}

func (x *cmdLayout) Execute(args []string) error {
	profile, err := board.Lookup(x.Board)
	if err != nil {
		return err
	}
	plan := layout.New(profile)
	fmt.Fprintln(os.Stdout, plan.SfdiskDirective())
	return nil
}
