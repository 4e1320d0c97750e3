package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <order-id>",
		Short: "Show an order's audit trail",
		Long: `Show an order's audit trail, newest first.

Every edit attempt appears here with its outcome, whether it was
persisted, rejected, or failed to reparse. Admin only.

Examples:
  intake history ord-7f3a --db ./intake.db --user ops@example.com --role admin
  intake history ord-7f3a --db ./intake.db --user ops@example.com --role admin --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, cmd, args[0])
		},
	}

	return cmd
}

func runHistory(opts *RootOptions, cmd *cobra.Command, orderID string) error {
	ctx := context.Background()

	svc, st, err := editService(opts)
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := svc.History(ctx, orderID)
	if err != nil {
		return wrapEditError(err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.JSON(entries)
	}

	w := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(w, "No audit entries for order %s.\n", orderID)
		return nil
	}

	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-18s %s", e.Timestamp.UTC().Format(time.RFC3339), e.Event, e.UserID)
		if e.MessageID != "" {
			fmt.Fprintf(w, "  message=%s", e.MessageID)
		}
		if reason, ok := e.Details["reason"]; ok {
			fmt.Fprintf(w, "  reason=%v", reason)
		}
		fmt.Fprintln(w)
	}
	return nil
}
