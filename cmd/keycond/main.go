// Command keycond compiles table schemas and plans which mark ranges of
// stored data parts a query reads.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/keycond/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && cli.GetExitCode(err) == cli.ExitCommandError {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
