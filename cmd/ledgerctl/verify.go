package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errDriftFound makes verify exit non-zero when drift is left unrepaired
var errDriftFound = errors.New("ledger drift found")

func newVerifyCmd(opts *rootOptions, boot bootstrapFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Compare stored paid and allocated amounts with the allocation rows",
		Long: `Recomputes every document's paid amount and every payment's allocated
amount from the allocation rows and reports the ones that differ from the
stored values. With --repair the stored values are overwritten.`,
		Example: `  ledgerctl verify --tenant 3f0c...
  ledgerctl verify --tenant 3f0c... --repair`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := parseUUIDFlag(cmd, "tenant")
			if err != nil {
				return err
			}
			if tenantID == uuid.Nil {
				return errors.New("--tenant is required")
			}
			repair, _ := cmd.Flags().GetBool("repair")

			return withRuntime(cmd.Context(), opts, boot, func(rt *runtime) error {
				reports, err := rt.payments.Verify(cmd.Context(), tenantID, repair)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
					return err
				}

				unrepaired := 0
				for _, r := range reports {
					if r.Drifted && !r.Repaired {
						unrepaired++
					}
				}
				rt.log.Info("Verification complete",
					zap.String("tenant_id", tenantID.String()),
					zap.Int("drifted", len(reports)),
					zap.Int("unrepaired", unrepaired),
				)
				if unrepaired > 0 {
					return fmt.Errorf("%w: %d aggregates", errDriftFound, unrepaired)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("tenant", "", "Tenant to verify")
	cmd.Flags().Bool("repair", false, "Overwrite drifted stored amounts")
	return cmd
}
