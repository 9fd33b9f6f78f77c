package preflight

import (
	"context"

	"photokiosk/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunLocal executes the checks that need no network access.
func RunLocal(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Media directory", cfg.MediaDir()),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckClientCredentials(cfg),
		CheckStoredCredential(cfg.TokenPath()),
	}
}

// RunAll executes the local checks followed by endpoint reachability.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := RunLocal(cfg)
	results = append(results,
		CheckEndpoint(ctx, "Token endpoint", cfg.Google.TokenURL),
		CheckEndpoint(ctx, "Picker API", cfg.Picker.BaseURL+"/sessions"),
	)
	return results
}
