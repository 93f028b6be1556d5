package main

import (
	"os"

	"github.com/dshills/patchwaste/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
