// Command scriptdelta re-analyzes scripts incrementally as they are edited.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/scriptdelta/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if !cli.IsSilent(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
