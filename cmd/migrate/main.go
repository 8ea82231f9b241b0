package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"wifihub/internal/config"
	"wifihub/internal/database/migrations"
	"wifihub/internal/logger"
)

func main() {
	var (
		dsn  string
		seed bool
	)

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the WifiHub database schema",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = config.LoadEnv()
		},
	}
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "database DSN (defaults to POSTGRES_DSN)")

	// withRunner resolves the DSN and hands a runner to fn, closing it afterwards.
	withRunner := func(fn func(r *migrations.Runner) error) error {
		log := logger.NewWithWriter(os.Stdout)

		if dsn == "" {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			dsn = cfg.DSN
		}
		runner := migrations.NewRunner(dsn, migrations.MigrateOptions{AutoMigrate: true, SeedData: seed}, log)
		defer func() {
			if err := runner.Close(); err != nil {
				log.Warn("MIGRATE", err.Error())
			}
		}()
		return fn(runner)
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply the schema, and the package seed with --seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(r *migrations.Runner) error { return r.RunMigrations() })
		},
	}
	upCmd.Flags().BoolVar(&seed, "seed", true, "also insert the default package catalog")

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(r *migrations.Runner) error { return r.MigrateDown() })
		},
	}

	toCmd := &cobra.Command{
		Use:   "to [version]",
		Short: "Migrate up or down to a specific version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			return withRunner(func(r *migrations.Runner) error { return r.MigrateTo(uint(v)) })
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(func(r *migrations.Runner) error {
				v, dirty, err := r.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", v, dirty)
				return nil
			})
		},
	}

	rootCmd.AddCommand(upCmd, downCmd, toCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
