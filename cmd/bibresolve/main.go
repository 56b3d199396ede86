// Command bibresolve resolves book identifiers, DOIs and article URLs into
// citation records from the command line.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	root := newRootCmd(defaultResolver)

	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// Exit codes.
const (
	exitFailure = 1
	exitUsage   = 2
)

// usageError marks failures caused by the input rather than the sources.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var ue *usageError
	if errors.As(err, &ue) {
		return exitUsage
	}

	return exitFailure
}
