package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/textilio/intake/internal/order"
	"github.com/textilio/intake/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Write bool
}

// ReplayResult holds the outcome of replaying one order.
type ReplayResult struct {
	OrderID       string      `json:"order_id"`
	Messages      int         `json:"messages"`
	Deterministic bool        `json:"deterministic"`
	MatchesStored bool        `json:"matches_stored"`
	State         order.State `json:"state"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <order-id>",
		Short: "Rebuild an order's state from its conversation",
		Long: `Rebuild an order's state from its stored conversation and verify it.

The conversation is folded twice and the results compared, confirming
the reducer is deterministic for this input. The rebuilt state is then
compared against the stored state to detect drift (a stored state that
no longer matches its conversation, e.g. after a catalog change).

Exit codes:
  0 - Rebuilt state is deterministic and matches the stored state
  1 - Drift or non-determinism detected
  2 - Command error (database not found, unknown order, etc.)

Examples:
  intake replay ord-7f3a --db ./intake.db
  intake replay ord-7f3a --db ./intake.db --write
  intake replay ord-7f3a --db ./intake.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Write, "write", false, "persist the rebuilt state when it differs from the stored one")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command, orderID string) error {
	ctx := context.Background()

	if opts.DBPath == "" {
		return NewExitError(ExitCommandError, "--db is required")
	}
	st, err := store.Open(opts.DBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	reducer, err := newReducer(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	o, err := st.ReadOrder(ctx, orderID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read order", err)
	}

	first := reducer.BuildState(o.Conversation)
	second := reducer.BuildState(o.Conversation)

	result := ReplayResult{
		OrderID:       orderID,
		Messages:      len(o.Conversation),
		Deterministic: statesEqual(first, second),
		MatchesStored: statesEqual(first, o.State),
		State:         first,
	}

	if opts.Write && result.Deterministic && !result.MatchesStored {
		if err := st.PersistEdit(ctx, orderID, o.Conversation, first); err != nil {
			return WrapExitError(ExitCommandError, "failed to persist rebuilt state", err)
		}
		result.MatchesStored = true
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		if err := formatter.JSON(result); err != nil {
			return err
		}
		return replayExit(result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Order %s: %d message(s)\n\n", orderID, result.Messages)
	renderState(w, result.State)
	fmt.Fprintln(w)

	if !result.Deterministic {
		fmt.Fprintln(w, "✗ Non-deterministic rebuild detected")
	} else if !result.MatchesStored {
		fmt.Fprintln(w, "✗ Stored state drifted from its conversation (rerun with --write to repair)")
	} else {
		fmt.Fprintln(w, "✓ Stored state matches its conversation")
	}

	return replayExit(result)
}

func replayExit(result ReplayResult) error {
	if !result.Deterministic {
		return NewExitError(ExitFailure, "non-deterministic rebuild")
	}
	if !result.MatchesStored {
		return NewExitError(ExitFailure, "stored state drifted from conversation")
	}
	return nil
}

// statesEqual compares two states by their canonical JSON form, which
// sidesteps nil-versus-empty map differences after a round trip through
// the store.
func statesEqual(a, b order.State) bool {
	aJSON, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bJSON, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(aJSON, bJSON)
}
