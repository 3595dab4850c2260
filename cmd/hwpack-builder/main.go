// Command hwpack-builder assembles ARM hardware packs: it resolves a
// board's package set against one or more isolated indexes and prints
// the partition directive for the resulting media image. It does not
// stage boot-partition files.
//
// Modelled on the teacher's cmd/snappy-go/main.go: a bare go-flags
// parser with one init-registered subcommand type per verb.
package main

import (
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/linaro/hwpack/internal/log"
)

type options struct {
	Verbose bool `short:"v" long:"verbose" description:"enable development-mode (human-readable) logging"`
}

var optionsData options

var parser = flags.NewParser(&optionsData, flags.Default)

func main() {
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		if optionsData.Verbose {
			log.SetDevelopment()
		}
		if cmd == nil {
			return nil
		}
		return cmd.Execute(args)
	}
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log.Sync()
}
