package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/storefront/core/cmd/storefront/commands"
)

// @title Storefront API
// @version 1.0
// @description Shopping cart store and CGI pages

// @host localhost:8080
// @BasePath /

func main() {
	rootCmd := &cobra.Command{
		Use:          "storefront",
		Short:        "Storefront cart server",
		Long:         `Storefront serves the shopping cart page and its companion CGI pages, either as a long running HTTP server or one request at a time under a CGI capable web server.`,
		SilenceUsage: true,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewCGICommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewCartCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
