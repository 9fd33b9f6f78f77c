package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"photokiosk/internal/acquire"
	"photokiosk/internal/config"
	"photokiosk/internal/kiosk"
	"photokiosk/internal/picker"
)

func newPickCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "pick",
		Short: "Open a picker session, wait for the selection and cache it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(cfg *config.Config, svc *kiosk.Service) error {
				if err := cfg.RequireCredentials(); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				sess, _, err := svc.EnsureSession(cmd.Context())
				if err != nil {
					return err
				}
				if !jsonOutput {
					fmt.Fprintf(out, "Open this URL to pick photos and videos:\n  %s\n", sess.AutocloseURI())
				}

				waitCtx := cmd.Context()
				if timeout > 0 {
					var cancel context.CancelFunc
					waitCtx, cancel = context.WithTimeout(waitCtx, timeout)
					defer cancel()
				}
				progress := newPollProgress(out, jsonOutput)
				if _, err := svc.WaitReady(waitCtx, progress.observe); err != nil {
					progress.done()
					return err
				}
				progress.done()

				result, err := svc.FetchAndCache(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				printResult(out, result)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting for a selection after this long (default: until the session expires)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the fetch result as JSON")
	return cmd
}

// pollProgress redraws one status line on terminals and stays quiet elsewhere.
type pollProgress struct {
	out     io.Writer
	enabled bool
	polls   int
}

func newPollProgress(out io.Writer, quiet bool) *pollProgress {
	return &pollProgress{out: out, enabled: !quiet && shouldColorize(out)}
}

func (p *pollProgress) observe(result picker.PollResult) {
	p.polls++
	if !p.enabled {
		return
	}
	note := ""
	if result.Renewed {
		note = " (session renewed, open the new URL: " + result.Session.AutocloseURI() + ")"
	}
	fmt.Fprintf(p.out, "\rWaiting for selection... %d checks%s", p.polls, note)
}

func (p *pollProgress) done() {
	if p.enabled && p.polls > 0 {
		fmt.Fprintln(p.out)
	}
}

func printResult(out io.Writer, result acquire.Result) {
	fmt.Fprintf(out, "Cached %d item(s)", result.Downloaded)
	if result.Skipped > 0 {
		fmt.Fprintf(out, ", %d failed", result.Skipped)
	}
	if result.Dropped > 0 {
		fmt.Fprintf(out, ", %d without download link", result.Dropped)
	}
	if result.Converted > 0 {
		fmt.Fprintf(out, ", %d converted to JPEG", result.Converted)
	}
	fmt.Fprintf(out, " (run %s)\n", result.RunID)
}
