package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func verifyCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <order-id>",
		Short: "Check the Smobilpay transaction of an order and apply its final status",
		Long: `Check the Smobilpay transaction of an order and apply its final status.

Use it when a payment notification was never delivered. Paid and failed orders are
notified the same way as with a webhook delivery.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid order id %q", args[0])
			}

			ctx := cmd.Context()

			a, err := newApp(ctx, opts)
			if err != nil {
				return err
			}
			defer func() {
				_ = a.Close()
			}()

			outcome, err := a.reconciler.Verify(ctx, orderID)
			if err != nil {
				return err
			}

			o, err := a.store.Get(ctx, orderID)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "order %d: %s (status %s)\n", orderID, outcome, o.Status)
			return nil
		},
	}
}
