package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewUnlockCommand creates the unlock command.
func NewUnlockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unlock <order-id>",
		Short: "Force-release an order's edit lock",
		Long: `Force-release an order's edit lock.

Admin only. Held locks normally expire on their own; this is for when a
holder crashed and the wait is not acceptable. The release is recorded
in the audit trail.

Examples:
  intake unlock ord-7f3a --db ./intake.db --user ops@example.com --role admin`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlock(rootOpts, cmd, args[0])
		},
	}

	return cmd
}

func runUnlock(opts *RootOptions, cmd *cobra.Command, orderID string) error {
	ctx := context.Background()

	svc, st, err := editService(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := svc.ClearLock(ctx, orderID); err != nil {
		return wrapEditError(err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Lock cleared for order %s\n", orderID)
	return nil
}
