package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/ophion/companion/cmd/api/commands"
)

// @title Ophion Companion API
// @version 1.0
// @description Tasks, sticky notes, weekly planner and assistant features for a single guest user

// @contact.name Ophion Companion
// @contact.url https://github.com/ophion/companion

// @license.name MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

func main() {
	rootCmd := &cobra.Command{
		Use:   "companion",
		Short: "Ophion Companion API server",
		Long:  `Ophion Companion keeps tasks and sticky notes in step with a remote store and adds assistant features on top.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewIdentityCommand())
	rootCmd.AddCommand(commands.NewThemesCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
