// Package main provides the entry point for the dictv CLI.
package main

import (
	"os"

	"github.com/mmtftr/dictv/cmd/dictv/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
