package main

import (
	"os"

	"github.com/bryanwahyu/threatlens/cmd/threatlens/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(2)
	}
}
