package main

import (
	"os"

	"github.com/dev-mohitbeniwal/bouncer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
