package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bher20/utilityrates/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(name string, fn func(ctx context.Context, driver, dsn string, log logrus.FieldLogger) error) *cobra.Command {
		return &cobra.Command{
			Use:   name,
			Short: fmt.Sprintf("Run goose %s", name),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := loadConfig()
				if err != nil {
					return err
				}
				if cfg.Database.Driver == "memory" {
					return fmt.Errorf("migrate: database.driver is memory; set sqlite or postgres")
				}
				return fn(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN, log)
			},
		}
	}

	cmd.AddCommand(
		run("up", migrate.Up),
		run("down", migrate.Down),
		run("status", migrate.Status),
	)
	return cmd
}
