package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the deployer database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := openDatabase(cmd.Context())
		if err != nil {
			return err
		}
		defer client.Close()
		if !AutoMigrate {
			if err := client.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("deployer: migrate: %w", err)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
