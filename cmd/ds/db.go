package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/dealscout/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the DealScout database",
		Long:  "Migrates all tables and seeds the watches defined in the config file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connected to %s database\n", cfg.Database.Driver)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedWatches(gormDB, cfg.Watches); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d watches\n", len(cfg.Watches))

	fmt.Fprintln(out, "DealScout database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate all tables",
		Long:  "Drops every DealScout table, migrates again and re-seeds watches. All listings and negotiation history are lost.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			return runDBReset(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm dropping all data")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := db.Reset(gormDB); err != nil {
		return err
	}
	if err := db.SeedWatches(gormDB, cfg.Watches); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Reset %d tables\n", len(db.AllModels()))
	return nil
}
