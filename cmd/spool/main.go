package main

import (
	"log"

	"github.com/ooyala/my-sequel-synchrony/cli"
)

func main() {
	rootCmd := cli.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("error: %v\n", err)
	}
}
