package main

import (
	"os"

	"github.com/meritkeeper/meritkeeper/cmd/meritkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
