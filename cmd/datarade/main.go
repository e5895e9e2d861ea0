// Package main is the datarade command.
package main

import (
	"os"

	"github.com/leapstack-labs/datarade/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
