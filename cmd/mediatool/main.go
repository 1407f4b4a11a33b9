// Package main is the entry point for the mediatool application.
package main

import (
	"os"

	"github.com/jmylchreest/mediatool/cmd/mediatool/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
