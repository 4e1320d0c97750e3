package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/textilio/intake/internal/engine"
	"github.com/textilio/intake/internal/order"
)

// ParseOptions holds flags for the parse command.
type ParseOptions struct {
	*RootOptions
	Messages []string
}

// ParseResult holds the outcome of parsing a conversation.
type ParseResult struct {
	State    order.State          `json:"state"`
	Messages int                  `json:"messages"`
	Replay   []engine.ReplayEntry `json:"replay,omitempty"`
}

// NewParseCommand creates the parse command.
func NewParseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ParseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "parse [conversation.yaml]",
		Short: "Parse a conversation into an order state",
		Long: `Parse a conversation into an order state without touching a database.

Reads either a YAML conversation file or --message flags in order, folds
the reducer over them, and prints the resulting state. Useful for
checking how a set of messages will be interpreted before an order
exists.

Exit codes:
  0 - Conversation parsed
  1 - A message contradicted the order (over capacity)
  2 - Command error (file not found, bad catalog, etc.)

Examples:
  intake parse conversation.yaml
  intake parse -m "Vreau 30 de tricouri rosii" -m "10 M, restul L"
  intake parse conversation.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(opts, cmd, args)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Messages, "message", "m", nil, "user message (repeatable, applied in order)")

	return cmd
}

func runParse(opts *ParseOptions, cmd *cobra.Command, args []string) error {
	reducer, err := newReducer(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	var msgs []order.Message
	switch {
	case len(args) == 1 && len(opts.Messages) > 0:
		return NewExitError(ExitCommandError, "pass either a conversation file or --message flags, not both")
	case len(args) == 1:
		msgs, err = LoadConversation(args[0])
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load conversation", err)
		}
	case len(opts.Messages) > 0:
		for i, content := range opts.Messages {
			msgs = append(msgs, order.Message{
				ID:      fmt.Sprintf("msg-%03d", i+1),
				Role:    order.RoleUser,
				Content: content,
			})
		}
	default:
		return NewExitError(ExitCommandError, "a conversation file or --message flags are required")
	}

	// Strict replay so a contradictory message surfaces instead of
	// being skipped.
	state, entries, err := reducer.Replay(order.State{Variants: []order.Variant{}}, msgs, 0)
	if err != nil {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
		if opts.Format == "json" {
			if encErr := formatter.JSONError("E_PARSE", err.Error(), nil); encErr != nil {
				return encErr
			}
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ Parse failed: %v\n", err)
		}
		return WrapExitError(ExitFailure, "conversation contradicts itself", err)
	}

	result := ParseResult{State: state, Messages: len(msgs)}
	if opts.Verbose {
		result.Replay = entries
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.JSON(result)
	}

	renderState(cmd.OutOrStdout(), state)
	return nil
}

// renderState prints a human-readable summary of an order state.
func renderState(w io.Writer, st order.State) {
	if st.ProductType != "" {
		fmt.Fprintf(w, "Product: %s\n", st.ProductType)
	}
	if st.Budget != nil {
		fmt.Fprintf(w, "Budget: %d\n", *st.Budget)
	}

	if len(st.Variants) == 0 {
		fmt.Fprintln(w, "No variants yet.")
		return
	}

	for _, v := range st.Variants {
		status := "…"
		switch {
		case v.Error != "":
			status = "✗"
		case v.IsComplete:
			status = "✓"
		}
		fmt.Fprintf(w, "%s %s", status, v.Color)
		if v.TotalQuantity != nil {
			fmt.Fprintf(w, " (%d/%d)", v.AssignedTotal(), *v.TotalQuantity)
		}
		fmt.Fprintln(w)

		sizes := make([]string, 0, len(v.QuantitiesPerSize))
		for size := range v.QuantitiesPerSize {
			sizes = append(sizes, size)
		}
		sort.Strings(sizes)
		for _, size := range sizes {
			fmt.Fprintf(w, "  %s: %d\n", size, v.QuantitiesPerSize[size])
		}

		if v.Personalization.Enabled {
			parts := []string{}
			if v.Personalization.Technique != "" {
				parts = append(parts, v.Personalization.Technique)
			}
			if v.Personalization.Zone != "" {
				parts = append(parts, v.Personalization.Zone)
			}
			fmt.Fprintf(w, "  personalization: %s\n", strings.Join(parts, ", "))
		}
		if v.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", v.Error)
		}
		if v.Remaining > 0 {
			fmt.Fprintf(w, "  remaining: %d\n", v.Remaining)
		}
	}

	if st.ActiveVariant != "" {
		lock := ""
		if st.ActiveVariantLocked {
			lock = " (locked)"
		}
		fmt.Fprintf(w, "Active: %s%s\n", st.ActiveVariant, lock)
	}
}
