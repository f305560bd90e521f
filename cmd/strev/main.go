// Package main is the entry point for the strev application.
package main

import (
	"os"

	"github.com/strevio/strev/cmd/strev/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
