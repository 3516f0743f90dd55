// Command logiccheck validates, maps and simulates survey branching logic,
// from YAML survey files or from the survey database.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
