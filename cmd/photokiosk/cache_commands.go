package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"photokiosk/internal/config"
	"photokiosk/internal/kiosk"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the media cache",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached media in slideshow order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(_ *config.Config, svc *kiosk.Service) error {
				entries, err := svc.Entries(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, entries)
				}
				out := cmd.OutOrStdout()
				if len(entries) == 0 {
					fmt.Fprintln(out, "Cache is empty")
					return nil
				}
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					cached := ""
					if !entry.CachedAt.IsZero() {
						cached = entry.CachedAt.Local().Format("2006-01-02 15:04")
					}
					rows = append(rows, []string{
						strconv.Itoa(entry.Ordinal),
						string(entry.Kind),
						entry.DisplayName,
						humanBytes(entry.SizeBytes),
						cached,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Index", "Kind", "Name", "Size", "Cached"},
					rows, 0, 3,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached media",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(_ *config.Config, svc *kiosk.Service) error {
				if err := svc.ClearCache(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
				return nil
			})
		},
	}
}
