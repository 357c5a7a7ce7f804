package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskboard/kanban/cmd/api/commands"
)

// @title Kanban API
// @version 1.0
// @description Task board with labels, comments, attachments and activity

// @host localhost:8000
// @BasePath /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	rootCmd := &cobra.Command{
		Use:   "kanban",
		Short: "Kanban API Server",
		Long:  `Kanban is a task board backend with labels, comments, file attachments, an activity feed and dashboard statistics.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewUserCommand())
	rootCmd.AddCommand(commands.NewTokensCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
