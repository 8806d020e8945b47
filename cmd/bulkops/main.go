// Command bulkops applies operations to stored records in resumable batches.
package main

import (
	"errors"
	"os"

	"github.com/rshade/bulkops/internal/cli"
	"github.com/rshade/bulkops/pkg/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := cli.NewRootCmd(version.String())
	// cobra prints the error itself
	return exitCode(root.Execute())
}

// exitCode maps an execution error to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
