package main

import (
	"os"

	"github.com/dyike/CortexOffice/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
