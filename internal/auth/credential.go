package auth

import (
	"strings"
	"time"
)

const defaultTokenType = "Bearer"

// Credential is the persisted delegated credential record.
type Credential struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	SavedAt      int64  `json:"saved_at,omitempty"`
}

// Linked reports whether the record can produce an access token.
func (c Credential) Linked() bool {
	return strings.TrimSpace(c.AccessToken) != "" || strings.TrimSpace(c.RefreshToken) != ""
}

// ExpiresAt returns when the access token expires. The zero time means the
// lifetime is unknown.
func (c Credential) ExpiresAt() time.Time {
	if c.ExpiresIn <= 0 || c.SavedAt <= 0 {
		return time.Time{}
	}
	return time.Unix(c.SavedAt+c.ExpiresIn, 0)
}

// Stale reports whether the access token should be refreshed before use. A
// token without a known lifetime is only stale when it is missing.
func (c Credential) Stale(now time.Time, margin time.Duration) bool {
	if strings.TrimSpace(c.AccessToken) == "" {
		return true
	}
	expires := c.ExpiresAt()
	if expires.IsZero() {
		return false
	}
	return !now.Before(expires.Add(-margin))
}

// merge overlays the non-empty fields of update onto c.
func (c Credential) merge(update Credential) Credential {
	if update.AccessToken != "" {
		c.AccessToken = update.AccessToken
	}
	if update.RefreshToken != "" {
		c.RefreshToken = update.RefreshToken
	}
	if update.TokenType != "" {
		c.TokenType = update.TokenType
	}
	if update.ExpiresIn > 0 {
		c.ExpiresIn = update.ExpiresIn
	}
	return c
}

func authorizationHeader(tokenType, accessToken string) string {
	tokenType = strings.TrimSpace(tokenType)
	if tokenType == "" || strings.EqualFold(tokenType, defaultTokenType) {
		tokenType = defaultTokenType
	}
	return tokenType + " " + accessToken
}
