// Package cmd is the blocknotes command line.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"blocknotes/internal/config"
	"blocknotes/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "blocknotes",
	Short: "Block-based notes server",
	Long: `A multi-user notes server. Pages hold ordered blocks of typed content,
nest through page-reference blocks and can be published read-only.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(),
		"config file (env BLOCKDOC_CONFIG); a missing file means defaults")

	rootCmd.AddCommand(serveCmd, mcpCmd, migrateCmd, sweepCmd, hashTokenCmd)
}

func defaultConfigPath() string {
	if p, ok := os.LookupEnv("BLOCKDOC_CONFIG"); ok {
		return p
	}
	return "blocknotes.yaml"
}

// Execute runs the root command. Exit code 1 indicates error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// RootCmd returns the root command for testing.
func RootCmd() *cobra.Command {
	return rootCmd
}

// load reads the config and builds the root logger on w.
func load(w io.Writer) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log, err := logger.New(cfg.Log, w)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("configure logging: %w", err)
	}
	return cfg, log, nil
}
