package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "meet",
	Short:         "Headless meeting client for the signaling server",
	Long:          `meet joins a named room on the signaling server, establishes direct peer-to-peer media links to every other participant and reports roster and link events.`,
	SilenceErrors: false,
	SilenceUsage:  true,
}
