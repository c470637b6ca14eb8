package main

import (
	"os"

	"github.com/agritrade/stockyard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
