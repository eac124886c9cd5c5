// SPDX-FileCopyrightText: Copyright 2025 Authkeel Authors
// SPDX-License-Identifier: Apache-2.0

// Package app assembles the authkeel command line interface.
package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/authkeel/authkeel/pkg/config"
	"github.com/authkeel/authkeel/pkg/server"
	"github.com/authkeel/authkeel/pkg/telemetry"
)

var rootCmd = &cobra.Command{
	Use:               "authkeel",
	DisableAutoGenTag: true,
	Short:             "OpenID Connect authorization server",
	Long: `Authkeel serves the OAuth 2.0 / OpenID Connect authorization,
pushed authorization request and end-session endpoints for the clients
registered in its configuration file.

End-user authentication is delegated to the embedding deployment: a front
proxy or middleware must establish the session before requests reach the
authorization endpoint.`,
}

// NewRootCmd builds the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		slog.Error("binding debug flag", "error", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "authkeel.yaml", "Path to the configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		slog.Error("binding config flag", "error", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newValidateCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the authorization server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.GetString("config"))
			if err != nil {
				return err
			}

			srv, err := server.New(cmd.Context(), cfg, server.Dependencies{
				Sessions: server.ContextSessions{},
				Claims:   sessionClaims{},
				Logger:   slog.Default(),
				Metrics:  telemetry.NewMetrics(),
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			path := viper.GetString("config")
			if _, err := config.Load(path); err != nil {
				return err
			}
			fmt.Printf("%s is valid\n", path)
			return nil
		},
	}
}
