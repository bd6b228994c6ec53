package main

import (
	"os"

	"github.com/bookshare-dev/bookshare/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
