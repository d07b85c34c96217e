package main

import (
	"os"

	"github/itish2003/rentalqa/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
