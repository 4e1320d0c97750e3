package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/textilio/intake/internal/edit"
	"github.com/textilio/intake/internal/store"
)

// EditOptions holds flags for the edit command.
type EditOptions struct {
	*RootOptions
	MessageID string
	Content   string
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EditOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "edit <order-id>",
		Short: "Edit a message and replay the conversation",
		Long: `Edit one user message of a stored order and replay what follows.

The edit runs under the order's edit lock: authorize, lock, splice the
new text, rebuild the state before the edit point, strictly replay from
the edit point, persist atomically, unlock. A replay failure leaves the
stored order untouched. Every attempt is recorded in the audit trail.

Exit codes:
  0 - Edit persisted
  1 - Edit rejected (unauthorized, locked, reparse failed, ...)
  2 - Command error (database not found, etc.)

Examples:
  intake edit ord-7f3a --message-id msg-001 --content "Vreau 50 de tricouri rosii" \
      --db ./intake.db --user client@example.com
  intake edit ord-7f3a --message-id msg-001 --content "..." --db ./intake.db \
      --user ops@example.com --role admin --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.MessageID, "message-id", "", "id of the message to edit (required)")
	_ = cmd.MarkFlagRequired("message-id")
	cmd.Flags().StringVar(&opts.Content, "content", "", "replacement text (required)")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

func runEdit(opts *EditOptions, cmd *cobra.Command, orderID string) error {
	ctx := context.Background()

	svc, st, err := editService(opts.RootOptions)
	if err != nil {
		return err
	}
	defer st.Close()

	res, err := svc.EditMessage(ctx, edit.Request{
		OrderID:    orderID,
		MessageID:  opts.MessageID,
		NewContent: opts.Content,
	})
	if err != nil {
		if opts.Format == "json" {
			formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			if encErr := formatter.JSONError(string(edit.CodeOf(err)), err.Error(), nil); encErr != nil {
				return encErr
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ Edit rejected [%s]: %v\n", edit.CodeOf(err), err)
		}
		return wrapEditError(err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.JSON(res)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ Edited %s in order %s (%d message(s) replayed)\n\n", opts.MessageID, orderID, len(res.Replay))
	renderState(w, res.State)
	return nil
}

// editService wires the store, the reducer, and the caller identity into
// an edit service. The caller owns closing the returned store.
func editService(opts *RootOptions) (*edit.Service, *store.Store, error) {
	if opts.DBPath == "" {
		return nil, nil, NewExitError(ExitCommandError, "--db is required")
	}

	provider, err := caller(opts)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid identity", err)
	}

	reducer, err := newReducer(opts)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	return edit.NewService(st, provider, reducer), st, nil
}
