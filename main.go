package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "cartservice",
		Short:        "Shopping cart service backed by a key-value store",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newSnapshotCmd())
	return root
}
