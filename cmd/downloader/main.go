package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fastleaksdf/pipeline/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "downloader",
	Short: "Consume documents.pending and place content into storage.",
}

func init() {
	rootCmd.AddCommand(runCmd)
	config.SetFlagsFromConfig(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
