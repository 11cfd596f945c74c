package main

import (
	"os"

	"github.com/Gabiro3/blimp2/pkg/cli"
)

func main() {
	// Execute prints its own errors
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
