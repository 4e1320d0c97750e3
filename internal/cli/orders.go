package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/textilio/intake/internal/order"
	"github.com/textilio/intake/internal/store"
)

// OrdersCreateOptions holds flags for the orders create command.
type OrdersCreateOptions struct {
	*RootOptions
	OrderID string
	Client  string
}

// OrderView is the JSON payload for a single order.
type OrderView struct {
	ID            string          `json:"id"`
	ClientEmail   string          `json:"client_email"`
	Conversation  []order.Message `json:"conversation"`
	State         order.State     `json:"state"`
	LockedForEdit bool            `json:"locked_for_edit"`
}

// NewOrdersCommand creates the orders command group.
func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Create and inspect stored orders",
	}

	cmd.AddCommand(newOrdersCreateCommand(rootOpts))
	cmd.AddCommand(newOrdersShowCommand(rootOpts))

	return cmd
}

func newOrdersCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrdersCreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <conversation.yaml>",
		Short: "Store a conversation as a new order",
		Long: `Store a conversation as a new order.

The conversation is parsed with the reducer and persisted together with
the derived state. The caller named by --user becomes the order's
creator.

Examples:
  intake orders create conversation.yaml --db ./intake.db --user client@example.com
  intake orders create conversation.yaml --db ./intake.db --user client@example.com --id ord-7f3a`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersCreate(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.OrderID, "id", "", "order id (default: generated UUIDv7)")
	cmd.Flags().StringVar(&opts.Client, "client", "", "client email (default: the --user identity)")

	return cmd
}

func runOrdersCreate(opts *OrdersCreateOptions, cmd *cobra.Command, path string) error {
	ctx := context.Background()

	if opts.DBPath == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}
	if opts.AsUser == "" {
		return NewExitError(ExitCommandError, "--user is required")
	}

	msgs, err := LoadConversation(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load conversation", err)
	}

	reducer, err := newReducer(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	st, err := store.Open(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	id := opts.OrderID
	if id == "" {
		id = uuid.Must(uuid.NewV7()).String()
	}
	client := opts.Client
	if client == "" {
		client = opts.AsUser
	}

	state := reducer.BuildState(msgs)
	o := store.Order{
		ID:           id,
		ClientEmail:  client,
		CreatedBy:    opts.AsUser,
		Conversation: msgs,
		State:        state,
	}
	if err := st.CreateOrder(ctx, o); err != nil {
		return WrapExitError(ExitCommandError, "failed to create order", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.JSON(OrderView{
			ID:           id,
			ClientEmail:  client,
			Conversation: msgs,
			State:        state,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created order %s (%d messages)\n\n", id, len(msgs))
	renderState(cmd.OutOrStdout(), state)
	return nil
}

func newOrdersShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show a stored order",
		Long: `Show a stored order: its conversation, derived state, and lock status.

Examples:
  intake orders show ord-7f3a --db ./intake.db
  intake orders show ord-7f3a --db ./intake.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersShow(rootOpts, cmd, args[0])
		},
	}

	return cmd
}

func runOrdersShow(opts *RootOptions, cmd *cobra.Command, orderID string) error {
	ctx := context.Background()

	if opts.DBPath == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}
	st, err := store.Open(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	o, err := st.ReadOrder(ctx, orderID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read order", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.JSON(OrderView{
			ID:            o.ID,
			ClientEmail:   o.ClientEmail,
			Conversation:  o.Conversation,
			State:         o.State,
			LockedForEdit: o.LockedForEdit,
		})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Order %s (client %s)\n", o.ID, o.ClientEmail)
	if o.LockedForEdit {
		fmt.Fprintln(w, "Locked for edit")
	}
	fmt.Fprintln(w)

	for _, msg := range o.Conversation {
		marker := ""
		if msg.EditedBy != "" {
			marker = " (edited)"
		}
		fmt.Fprintf(w, "[%s] %s: %s%s\n", msg.ID, msg.Role, msg.Content, marker)
	}
	fmt.Fprintln(w)

	renderState(w, o.State)
	return nil
}
