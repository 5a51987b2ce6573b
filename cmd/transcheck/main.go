package main

import (
	"fmt"
	"os"

	"github.com/hctt-w/transcheck/internal/cli"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.SetBuildInfo(version, commit, date)
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "transcheck: %v\n", err)
		os.Exit(1)
	}
}
