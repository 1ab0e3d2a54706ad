package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fastleaksdf/pipeline/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Watch configured Telegram channels and publish documents.pending messages.",
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
