// Command tagvm inspects the abstract-machine memory core.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tagvm/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "tagvm: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
