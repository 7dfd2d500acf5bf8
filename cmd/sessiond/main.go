package main

import (
	"os"

	"github.com/coderelay/sessiond/cmd/sessiond/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
