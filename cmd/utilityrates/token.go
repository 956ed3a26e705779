package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bher20/utilityrates/internal/auth"
)

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API tokens",
	}

	var (
		userID  string
		name    string
		role    string
		expires string
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a bearer token and print it once",
		RunE: func(cmd *cobra.Command, args []string) error {
			expiresAt, err := auth.ParseExpiry(expires, time.Now())
			if err != nil {
				return err
			}
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.Driver == "memory" {
				log.Warn("database.driver is memory; the token will not outlive this process")
			}
			ctx := context.Background()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			tok, raw, err := a.auth.CreateToken(ctx, userID, name, role, expiresAt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id:    %s\nrole:  %s\ntoken: %s\n", tok.ID, tok.Role, raw)
			return nil
		},
	}
	create.Flags().StringVar(&userID, "user", "", "user id the token belongs to")
	create.Flags().StringVar(&name, "name", "cli", "token name")
	create.Flags().StringVar(&role, "role", auth.RoleViewer, "role: admin, editor or viewer")
	create.Flags().StringVar(&expires, "expires", "never", "lifetime: never, 30d, 2w, 36h or YYYY-MM-DD")

	cmd.AddCommand(create)
	return cmd
}
