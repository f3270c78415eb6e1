package main

import (
	"github.com/erp/ledger/internal/application/ledger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScanOverdueCmd(opts *rootOptions, boot bootstrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan-overdue",
		Short: "Mark past-due documents OVERDUE",
		Long: `Runs one overdue pass. Documents whose due date has passed and whose
balance is still open move to OVERDUE and a reminder is dispatched for each.

Without --tenant every tenant that has open documents is scanned.`,
		Example: `  ledgerctl scan-overdue
  ledgerctl scan-overdue --tenant 3f0c2a6e-8d1b-4c55-9a57-2a9cfb1f4e10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := parseUUIDFlag(cmd, "tenant")
			if err != nil {
				return err
			}

			return withRuntime(cmd.Context(), opts, boot, func(rt *runtime) error {
				var results []ledger.ScanResult
				if tenantID != uuid.Nil {
					res, err := rt.overdue.Scan(cmd.Context(), tenantID)
					if err != nil {
						return err
					}
					results = append(results, *res)
				} else {
					results, err = rt.overdue.ScanAllTenants(cmd.Context())
					if err != nil {
						return err
					}
				}

				transitioned := 0
				for _, r := range results {
					transitioned += r.Transitioned
				}
				rt.log.Info("Overdue scan complete",
					zap.Int("tenants", len(results)),
					zap.Int("transitioned", transitioned),
				)
				return printJSON(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().String("tenant", "", "Scan a single tenant")
	return cmd
}
