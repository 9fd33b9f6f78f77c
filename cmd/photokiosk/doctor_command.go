package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"photokiosk/internal/deps"
	"photokiosk/internal/preflight"
)

type doctorReport struct {
	Checks       []preflight.Result `json:"checks"`
	Dependencies []deps.Status      `json:"dependencies"`
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, credentials, endpoints and optional binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := doctorReport{Dependencies: preflight.CheckSystemDeps(cfg)}
			if offline {
				report.Checks = preflight.RunLocal(cfg)
			} else {
				report.Checks = preflight.RunAll(cmd.Context(), cfg)
			}

			failed := len(preflight.Failed(report.Checks))
			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(report.Checks)+len(report.Dependencies))
				for _, check := range report.Checks {
					rows = append(rows, []string{check.Name, passLabel(out, check.Passed, false), check.Detail})
				}
				for _, dep := range report.Dependencies {
					detail := dep.Command
					if !dep.Available {
						detail = dep.Detail
					}
					rows = append(rows, []string{dep.Name, passLabel(out, dep.Available, dep.Optional), detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows))
			}
			for _, dep := range report.Dependencies {
				if !dep.Available && !dep.Optional {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d check(s) failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&offline, "offline", false, "Skip network reachability checks")
	return cmd
}
