// Package identity issues bearer tokens for the spreadsheet store.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	apperrors "excel-mcp/internal/errors"
)

// RefreshSkew is how long before expiry a cached token is replaced.
const RefreshSkew = 5 * time.Minute

// CredentialProvider yields a bearer token valid for the spreadsheet store.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken returns a fixed token. Used with GRAPH_ACCESS_TOKEN and in tests.
type StaticToken string

// Token implements CredentialProvider.
func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", apperrors.NewStoreError("token", 0, "no access token configured", apperrors.ErrUnauthorized)
	}
	return string(s), nil
}

// ClientCredentialsConfig holds service principal settings.
type ClientCredentialsConfig struct {
	AuthorityURL string
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string
}

// TokenURL returns the v2.0 token endpoint for the tenant.
func (c ClientCredentialsConfig) TokenURL() string {
	return fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(c.AuthorityURL, "/"), c.TenantID)
}

// ClientCredentials acquires tokens with the OAuth2 client-credentials grant.
// The token is cached process-wide and refreshed RefreshSkew before expiry.
type ClientCredentials struct {
	config *clientcredentials.Config

	mu  sync.Mutex
	src oauth2.TokenSource
}

// NewClientCredentials creates a client-credentials provider.
func NewClientCredentials(cfg ClientCredentialsConfig) (*ClientCredentials, error) {
	var missing []string
	if cfg.TenantID == "" {
		missing = append(missing, "tenant_id")
	}
	if cfg.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("graph", strings.Join(missing, ","), "missing client credentials")
	}
	if cfg.AuthorityURL == "" {
		cfg.AuthorityURL = "https://login.microsoftonline.com"
	}
	if cfg.Scope == "" {
		cfg.Scope = "https://graph.microsoft.com/.default"
	}

	return &ClientCredentials{
		config: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL(),
			Scopes:       []string{cfg.Scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
	}, nil
}

// Token implements CredentialProvider.
func (c *ClientCredentials) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.src == nil {
		// The underlying source keeps ctx for later refreshes, so it must
		// outlive any single request.
		base := c.config.TokenSource(context.WithoutCancel(ctx))
		c.src = oauth2.ReuseTokenSourceWithExpiry(nil, base, RefreshSkew)
	}
	src := c.src
	c.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", classifyTokenError(err)
	}
	return tok.AccessToken, nil
}

func classifyTokenError(err error) error {
	var re *oauth2.RetrieveError
	if apperrors.As(err, &re) && re.Response != nil {
		status := re.Response.StatusCode
		msg := re.ErrorDescription
		if msg == "" {
			msg = re.ErrorCode
		}
		if status >= 500 || status == 429 {
			return apperrors.NewStoreError("token", status, msg, apperrors.ErrRemoteUnavailable)
		}
		return apperrors.NewStoreError("token", status, msg, apperrors.ErrUnauthorized)
	}
	return &apperrors.StoreError{Op: "token", Message: "token request failed", Err: fmt.Errorf("%w: %v", apperrors.ErrRemoteUnavailable, err)}
}
