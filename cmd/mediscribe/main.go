// Package main is the entry point for the mediscribe CLI.
package main

import (
	"os"

	"github.com/f3rmion/mediscribe/cmd/mediscribe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
