// Package auth owns the delegated Google credential used by the kiosk.
//
// FileStore persists the credential record as JSON with field-level merge
// semantics so a refresh response never erases the long-lived refresh token.
// Refresher exchanges refresh tokens and authorization codes at the OAuth
// token endpoint, persisting each result before handing the access token out.
// Executor wraps outbound API calls: it refreshes stale credentials up front,
// and on a 401/403 refreshes once and retries the request once.
package auth
