// Command writebench benchmarks document write strategies.
package main

import (
	"context"
	"io"
	"os"

	"github.com/wesleyorama2/writebench/internal/cli"
)

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if err := cli.Execute(context.Background(), args, stdout, stderr); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
