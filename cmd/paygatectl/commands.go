package main

import (
	"errors"
	"fmt"
	"time"

	"storefront/internal/infra/db"
	"storefront/internal/usecase"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := initApp()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := db.Migrate(app.DB); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrated")
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	var orderID, paymentID string

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Query the provider once for an order or payment and apply the result",
		Example: `  paygatectl reconcile --order 2f1c...
  paygatectl reconcile --payment 8a0d...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if orderID == "" && paymentID == "" {
				return errors.New("--order or --payment is required")
			}

			app, cleanup, err := initApp()
			if err != nil {
				return err
			}
			defer cleanup()

			out, err := app.Reconcile.OnStatusPoll(cmd.Context(), usecase.StatusQuery{OrderID: orderID, PaymentID: paymentID})
			if err != nil {
				return err
			}
			return printJSON(cmd, out)
		},
	}

	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	cmd.Flags().StringVar(&paymentID, "payment", "", "payment id")
	return cmd
}

func sweepCmd() *cobra.Command {
	var (
		olderThan time.Duration
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Poll the provider for PENDING payments older than the cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}

			app, cleanup, err := initApp()
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := app.Reconcile.Sweep(cmd.Context(), time.Now().Add(-olderThan), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 15*time.Minute, "only payments created before now minus this duration")
	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "maximum payments to check")
	return cmd
}
