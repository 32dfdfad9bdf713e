// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Inkletter Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Inkletter CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inkletter",
		Short: "Inkletter - a newsletter delivery service",
		Long: `Inkletter runs the newsletter service: subscriber signup, editor
authentication, password reset, and exactly-once issue publication.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
