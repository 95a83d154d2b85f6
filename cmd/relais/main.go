package main

import (
	"os"

	"github.com/amadou/relais/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
