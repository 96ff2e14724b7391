package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Authenticator verifies bearer tokens against the platform's OIDC issuer.
// This service never mints tokens; it only checks that the caller's token
// is accepted by the identity provider before triggering work on its
// behalf.
type Authenticator struct {
	issuer string
}

func NewAuthenticator(issuer string) (*Authenticator, error) {
	if issuer == "" {
		return nil, fmt.Errorf("OIDC configuration incomplete")
	}
	return &Authenticator{issuer: strings.TrimRight(issuer, "/")}, nil
}

// ValidateToken presents the token to the issuer's userinfo endpoint and
// returns the claims it reports. Any non-200 answer rejects the token.
func (a *Authenticator) ValidateToken(ctx context.Context, token string) (map[string]interface{}, error) {
	if token == "" {
		return nil, fmt.Errorf("token is empty")
	}

	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, source)
	client.Timeout = 10 * time.Second

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.issuer+"/userinfo", nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("issuer rejected token: %s", resp.Status)
	}

	var claims map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decoding userinfo claims: %w", err)
	}
	return claims, nil
}
