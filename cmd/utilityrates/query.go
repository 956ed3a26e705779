package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/bher20/utilityrates/internal/rates"
)

func newQueryCmd() *cobra.Command {
	var (
		in      rates.Lookup
		fake    bool
		refresh bool
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Look up rates once and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if fake {
				cfg.OpenEI.Fake = true
			}
			ctx := context.Background()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			lookup := a.rates.Lookup
			if refresh {
				lookup = a.rates.ForceRefresh
			}
			res, err := lookup(ctx, in)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&in.Address, "address", "", "service address")
	cmd.Flags().StringVar(&in.Consumption, "consumption", "", "monthly consumption in kWh")
	cmd.Flags().StringVar(&in.PercentageScale, "percentage-scale", "", "percentage applied to the energy cost")
	cmd.Flags().BoolVar(&fake, "fake", false, "answer from the fake service without network access")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "skip stored snapshots")
	return cmd
}
