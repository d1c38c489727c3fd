// Package main implements quicxd, a standalone QUIC endpoint daemon that
// wires config, events, metrics, and the endpoint runtime together the
// way cmd/registry wires configuration, handlers, and the registry
// runtime together.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var showVersion bool

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")
}

var rootCmd = &cobra.Command{
	Use:   "quicxd",
	Short: "quicxd runs a QUIC transport endpoint",
	Long:  "quicxd runs a QUIC transport endpoint.",
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version)
			return
		}
		// nolint:errcheck
		cmd.Usage()
	},
}

const version = "0.1.0-dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
