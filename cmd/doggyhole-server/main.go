package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ╔╦╗╔═╗╔═╗╔═╗╦ ╦╦ ╦╔═╗╔═╗╦  ╔═╗
   ║║║ ║║ ╦║ ╦╚╦╝╠═╣║ ║║  ║  ║╣
  ═╩╝╚═╝╚═╝╚═╝ ╩ ╩ ╩╚═╝╩═╝╝═╝╚═╝
`

func main() {
	rootCmd := &cobra.Command{
		Use:           "doggyhole-server",
		Short:         "WebSocket messaging hub",
		Long:          "doggyhole-server runs the WebSocket hub: authenticated sessions, server and peer RPC, events, and heartbeat liveness.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

func printBanner() {
	fmt.Print(color.CyanString(banner))
}
