package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "busline",
		Short: "A dual-transport publish/subscribe message broker",
		Long: `Busline is a minimal topic-based pub/sub broker reachable over a
reliable stream transport (TCP) and a best-effort datagram transport
(UDP), unified behind one wire protocol.

The same binary runs the broker and acts as a publishing or
subscribing client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		publishCmd(),
		subscribeCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
