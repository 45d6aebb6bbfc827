// Command mcmc runs and inspects Markov chains.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Yetoo1/beast-mcmc/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
