// Command clipctl creates and views clips from the shell and feeds view events to
// the clipshare daemon.
package main

import (
	"log"
	"os"

	"github.com/maruel/subcommands"
)

var application = &subcommands.DefaultApplication{
	Name:  "clipctl",
	Title: "Create, view and count views of shared clips.",
	// Keep in alphabetical order of their name.
	Commands: []*subcommands.Command{
		cmdGet,
		subcommands.CmdHelp,
		cmdHits,
		cmdNew,
	},
}

func main() {
	log.SetFlags(log.Lmicroseconds)
	os.Exit(subcommands.Run(application, nil))
}
