package main

import (
	"os"

	"github.com/lisaapatel/partnerscan/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
