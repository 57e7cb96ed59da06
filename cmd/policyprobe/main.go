package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/policyprobe/policyprobe/internal/cli"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	args := os.Args
	if len(args) > 1 && args[1] == "--version" {
		printVersion()
		return
	}
	if err := cli.Main(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatal(err)
	}
}

func printVersion() {
	shortHash := commit
	if len(shortHash) > 7 {
		shortHash = shortHash[:7]
	}
	fmt.Printf("version: %s\n", version)
	fmt.Printf("git hash: %s\n", shortHash)
	fmt.Printf("build date: %s\n", buildDate)
}
