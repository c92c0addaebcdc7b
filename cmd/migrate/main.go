// migrate applies the embedded SQL migrations to DATABASE_URL.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"identity-service/internal/config"
	"identity-service/internal/db/migrate"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply identity-service schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newApplyCommand(migrate.Up, "Apply pending migrations"))
	cmd.AddCommand(newApplyCommand(migrate.Down, "Roll back applied migrations"))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func newApplyCommand(direction, short string) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   direction,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := databaseURL()
			if err != nil {
				return err
			}
			if err := migrate.Run(dsn, direction, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations %s: done\n", direction)
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "Number of migrations to apply (0 = all)")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := databaseURL()
			if err != nil {
				return err
			}
			v, dirty, err := migrate.Version(dsn)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
			return nil
		},
	}
}

func databaseURL() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", errors.New("DATABASE_URL is not set; create a .env or export DATABASE_URL")
	}
	return cfg.DatabaseURL, nil
}
