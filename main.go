package main

import (
	"fmt"
	"log"
	"os"

	"solidity-armor/cmd"

	"github.com/joho/godotenv"
)

var (
	version = "1.0.0"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// Set up logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Load .env if present (API keys, webhook URLs, wallet address)
	_ = godotenv.Load()

	// Execute the root command
	if err := cmd.Execute(version, commit, date); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
