package main

import (
	"github.com/spf13/cobra"

	"photokiosk/internal/acquire"
)

func newFetchCommand(ctx *commandContext) *cobra.Command {
	var serverURL string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Ask the running server to cache the current selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			var result acquire.Result
			if err := newAPIClient(cfg, serverURL).post(cmd.Context(), "/api/fetch", &result); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "Server base URL (default derived from server.bind)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
