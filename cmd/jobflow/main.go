// Package main implements the jobflow CLI for running extractions locally
// and for operating against a jobflowd server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the jobflowd HTTP server
	serverURL string
	// configPath is the optional YAML config file for local runs
	configPath string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jobflow",
	Short: "CLI for job-description extraction",
	Long: `jobflow extracts structured job records from job-description documents.

It can run a full extraction locally, or submit jobs to a running
jobflowd server and poll their progress.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8084", "jobflowd server URL")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
}
