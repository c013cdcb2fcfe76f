// Command facc corrects flow-accumulation values in the river network
// database so they satisfy the network's conservation invariants.
package main

import (
	"fmt"
	"os"

	"github.com/swordhydro/facc/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
