package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath string
	logLevel   string
}

// newRootCmd builds the command tree. boot is called lazily by each
// subcommand after its flags have been validated.
func newRootCmd(boot bootstrapFunc) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operational commands for the document ledger",
		Long: `ledgerctl runs maintenance tasks against the ledger database.

Configuration is read from config.toml and LEDGER_ environment variables.
A .env file in the working directory is loaded first when present.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default: ./config.toml or /etc/ledger/config.toml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newScanOverdueCmd(opts, boot),
		newReplayCmd(opts, boot),
		newVerifyCmd(opts, boot),
	)
	return root
}

// withRuntime boots the services, runs fn and releases everything
func withRuntime(ctx context.Context, opts *rootOptions, boot bootstrapFunc, fn func(rt *runtime) error) error {
	rt, err := boot(ctx, opts)
	if err != nil {
		return err
	}
	if rt.close != nil {
		defer rt.close()
	}
	return fn(rt)
}

func parseUUIDFlag(cmd *cobra.Command, name string) (uuid.UUID, error) {
	raw, err := cmd.Flags().GetString(name)
	if err != nil {
		return uuid.Nil, err
	}
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--%s: invalid uuid %q", name, raw)
	}
	return id, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
