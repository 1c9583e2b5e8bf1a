package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"blocknotes/internal/app"
	"blocknotes/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the store schema and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := load(os.Stderr)
		if err != nil {
			return err
		}
		stores, err := app.OpenStores(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		log.Info().Str("store", stores.Driver).Msg("schema up to date")
		return stores.Close(cmd.Context())
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove orphaned page references and unused uploads once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := load(os.Stderr)
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		m := a.Maintenance()
		n, sweepErr := m.SweepOrphans(cmd.Context())
		if sweepErr == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d orphaned reference(s)\n", n)
			var files int
			files, sweepErr = m.SweepUploads(cmd.Context())
			if sweepErr == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d unused upload(s)\n", files)
			}
		}
		return errors.Join(sweepErr, a.Shutdown(cmd.Context()))
	},
}

var hashTokenCmd = &cobra.Command{
	Use:   "hash-token [token]",
	Short: "Print the bcrypt hash of a bearer token for auth.tokens",
	Long: `Print the hash to put in auth.tokens[].hash. The token is read from the
first argument, or from the first line of stdin when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read token: %w", err)
			}
			token = strings.TrimSpace(line)
		}
		hash, err := config.HashToken(token)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}
