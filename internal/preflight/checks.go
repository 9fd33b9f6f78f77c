package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"photokiosk/internal/auth"
	"photokiosk/internal/config"
	"photokiosk/internal/deps"
)

const endpointTimeout = 5 * time.Second

// CheckEndpoint verifies that url answers HTTP at all. Any status below 500
// counts as reachable since the request carries no credentials.
func CheckEndpoint(ctx context.Context, name, url string) Result {
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, url, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	client := &http.Client{Timeout: endpointTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return Result{Name: name, Detail: fmt.Sprintf("server error (%d)", resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d)", resp.StatusCode)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckClientCredentials verifies the OAuth client id and secret are set.
func CheckClientCredentials(cfg *config.Config) Result {
	const name = "OAuth client"
	if err := cfg.RequireCredentials(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "client id and secret configured"}
}

// CheckStoredCredential reports whether a refresh-capable credential is stored.
func CheckStoredCredential(path string) Result {
	const name = "Google authorization"
	cred, err := auth.NewFileStore(path).Load()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreadable credential (%v)", err)}
	}
	switch {
	case !cred.Linked():
		return Result{Name: name, Detail: "not authorized (run 'photokiosk auth url')"}
	case cred.RefreshToken == "":
		return Result{Name: name, Passed: true, Detail: "authorized without refresh token; re-authorize when it expires"}
	}
	return Result{Name: name, Passed: true, Detail: "authorized"}
}

// CheckSystemDeps evaluates the external binaries referenced by cfg.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("dns lookup failed (%s)", dnsErr.Name)
	}
	return err.Error()
}
