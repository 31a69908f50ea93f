package main

import (
	"fmt"
	"os"

	"github.com/ruslano69/tdtp-scrubber/cmd/tdtpscrub/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
