package auth

import (
	"context"
	"os"
	"strings"

	"cortexrelay/core"
)

const oauthTokenType = "OAUTH"

// SPCSTokenSource reads the platform-provided OAuth token from the file
// Snowpark Container Services mounts into the container. The platform
// rotates the file, so it is read fresh on every call and never cached.
type SPCSTokenSource struct {
	tokenFile string
}

// NewSPCSTokenSource creates a token source backed by the SPCS token file
func NewSPCSTokenSource(tokenFile string) *SPCSTokenSource {
	return &SPCSTokenSource{tokenFile: tokenFile}
}

// Token reads the current OAuth token from the mounted file
func (s *SPCSTokenSource) Token(ctx context.Context) (string, error) {
	raw, err := os.ReadFile(s.tokenFile)
	if err != nil {
		return "", &core.CredentialError{Path: s.tokenFile, Err: err}
	}
	return strings.TrimSpace(string(raw)), nil
}

// TokenType identifies the credential for the Snowflake auth header
func (s *SPCSTokenSource) TokenType() string {
	return oauthTokenType
}

// ForceRefresh is a no-op - every Token call already reads the current file
func (s *SPCSTokenSource) ForceRefresh() {}
