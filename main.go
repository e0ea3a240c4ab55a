package main

import (
	"os"

	"github.com/okapi-sh/sprintd/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
