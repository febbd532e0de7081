// Command foliactl is a thin operator surface over repo.Repository: enough
// to create a project, commit a raw delta from a file, pull from a remote
// adapter, inspect branches, and serve the repository's metrics and
// storage endpoints for other replicas to reach.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "foliactl",
	Short: "Operate a folia repository",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "folia.yaml", "path to the repository config file")
	rootCmd.AddCommand(initCmd, commitCmd, pullCmd, branchCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
