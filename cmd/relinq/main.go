// Command relinq parses query operator call chains into query models.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/relinq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
