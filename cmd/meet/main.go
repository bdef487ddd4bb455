package main

import (
	"os"

	"github.com/pkt369/google-meeting-mock/internal/logging"
)

func main() {
	logging.Init()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
