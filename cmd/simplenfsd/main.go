package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/blburns/simple-nfsd-sub001/cmd/simplenfsd/commands"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var invalidArgs *commands.InvalidArgsError
		if errors.As(err, &invalidArgs) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
