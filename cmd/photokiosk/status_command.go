package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"photokiosk/internal/config"
	"photokiosk/internal/kiosk"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authorization and cache status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(_ *config.Config, svc *kiosk.Service) error {
				status, err := svc.Status(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, status)
				}
				rows := [][]string{
					{"Authorized", yesNo(status.Authorized)},
					{"Cached items", fmt.Sprintf("%d (%d images, %d videos)", status.Entries, status.Images, status.Videos)},
					{"Data directory", status.DataDir},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
