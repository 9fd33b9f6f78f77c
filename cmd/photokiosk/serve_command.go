package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"photokiosk/internal/kiosk"
	"photokiosk/internal/logging"
	"photokiosk/internal/preflight"
	"photokiosk/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the kiosk HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(bind) != "" {
				cfg.Server.Bind = strings.TrimSpace(bind)
			}
			if err := cfg.RequireCredentials(); err != nil {
				return err
			}

			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			var problems []string
			for _, result := range preflight.RunLocal(cfg) {
				if result.Passed {
					continue
				}
				if strings.HasSuffix(result.Name, "directory") {
					problems = append(problems, fmt.Sprintf("%s: %s", result.Name, result.Detail))
					continue
				}
				logging.WarnWithContext(logger, "preflight check failed", "preflight_warning",
					logging.String("check", result.Name),
					logging.String("detail", result.Detail),
					logging.String(logging.FieldImpact, "picking fails until this is fixed"),
					logging.String(logging.FieldErrorHint, "run 'photokiosk doctor'"),
				)
			}
			if len(problems) > 0 {
				return errors.New("preflight failed: " + strings.Join(problems, "; "))
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			svc, err := kiosk.New(cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()

			srv, err := server.New(cfg, svc, logger)
			if err != nil {
				return err
			}
			if err := srv.Start(signalCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "photokiosk listening on %s\n", srv.Addr())

			<-signalCtx.Done()
			srv.Stop()
			logger.Info("photokiosk stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind")
	return cmd
}
