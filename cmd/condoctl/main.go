// Command condoctl indexes trial-balance reports and asks questions about
// them from the terminal.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
