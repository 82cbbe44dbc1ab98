package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title                       Splitledger API
// @version                     1.0
// @description                 Group expense splitting with server-side share allocation.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization

var rootCmd = &cobra.Command{
	Use:   "splitledger",
	Short: "Splitledger",
	Long:  `Shared expense tracking for groups: record who paid and how the cost is split.`,
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
