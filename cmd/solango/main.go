// Package main provides the entry point for the solango CLI.
package main

import (
	"os"

	"github.com/kailas-cloud/solango/cmd/solango/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
