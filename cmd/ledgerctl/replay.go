package main

import (
	"errors"

	"github.com/erp/ledger/internal/application/ledger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newReplayCmd(opts *rootOptions, boot bootstrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <document-id>",
		Short: "Rebuild a document's line items around a return",
		Long: `Replays the document's returns in sequence order and prints the line
items and totals at the requested point.

  --before <return-id>  state just before the return was applied
  --after <return-id>   state just after the return was applied
  --original            state before any return
  (no flag)             current state with every return applied`,
		Example: `  ledgerctl replay 9b3d... --tenant 3f0c... --before 41aa...
  ledgerctl replay 9b3d... --tenant 3f0c... --original`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			documentID, err := uuid.Parse(args[0])
			if err != nil {
				return errors.New("document id must be a uuid")
			}
			tenantID, err := parseUUIDFlag(cmd, "tenant")
			if err != nil {
				return err
			}
			if tenantID == uuid.Nil {
				return errors.New("--tenant is required")
			}
			before, err := parseUUIDFlag(cmd, "before")
			if err != nil {
				return err
			}
			after, err := parseUUIDFlag(cmd, "after")
			if err != nil {
				return err
			}
			original, _ := cmd.Flags().GetBool("original")

			selected := 0
			for _, set := range []bool{before != uuid.Nil, after != uuid.Nil, original} {
				if set {
					selected++
				}
			}
			if selected > 1 {
				return errors.New("use at most one of --before, --after and --original")
			}

			return withRuntime(cmd.Context(), opts, boot, func(rt *runtime) error {
				var (
					snap *ledger.SnapshotResponse
					err  error
				)
				switch {
				case before != uuid.Nil:
					snap, err = rt.returns.StateBefore(cmd.Context(), tenantID, documentID, &before)
				case after != uuid.Nil:
					snap, err = rt.returns.StateAfter(cmd.Context(), tenantID, documentID, &after)
				case original:
					snap, err = rt.returns.StateBefore(cmd.Context(), tenantID, documentID, nil)
				default:
					snap, err = rt.returns.Current(cmd.Context(), tenantID, documentID)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), snap)
			})
		},
	}
	cmd.Flags().String("tenant", "", "Tenant owning the document")
	cmd.Flags().String("before", "", "Return id; print the state before it")
	cmd.Flags().String("after", "", "Return id; print the state after it")
	cmd.Flags().Bool("original", false, "Print the state before any return")
	return cmd
}
