package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"photokiosk/internal/config"
	"photokiosk/internal/kiosk"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize the Google account",
	}
	authCmd.AddCommand(newAuthURLCommand(ctx))
	authCmd.AddCommand(newAuthExchangeCommand(ctx))
	authCmd.AddCommand(newAuthStatusCommand(ctx))
	authCmd.AddCommand(newAuthSignOutCommand(ctx))
	return authCmd
}

func newAuthURLCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "url",
		Short: "Print the Google consent URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(cfg *config.Config, svc *kiosk.Service) error {
				if err := cfg.RequireCredentials(); err != nil {
					return err
				}
				consent, _ := svc.AuthorizeURL()
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, consent)
				fmt.Fprintln(out, "Open the URL, approve access, then run 'photokiosk auth exchange <code>' with the code from the redirect.")
				return nil
			})
		},
	}
}

func newAuthExchangeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code for tokens",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(cfg *config.Config, svc *kiosk.Service) error {
				if err := cfg.RequireCredentials(); err != nil {
					return err
				}
				cred, err := svc.CompleteAuthorization(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return fmt.Errorf("authorization failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Authorized (refresh token stored: %s)\n", yesNo(cred.RefreshToken != ""))
				return nil
			})
		},
	}
}

func newAuthStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a credential is stored",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(cfg *config.Config, svc *kiosk.Service) error {
				authorized, err := svc.Authorized()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, map[string]any{"authorized": authorized, "token_path": cfg.TokenPath()})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Authorized: %s\nCredential: %s\n", yesNo(authorized), cfg.TokenPath())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newAuthSignOutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Forget the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(_ *config.Config, svc *kiosk.Service) error {
				if err := svc.SignOut(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}
