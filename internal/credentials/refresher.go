package credentials

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Refresher exchanges a credential's refresh material for a fresh access token.
type Refresher interface {
	Refresh(ctx context.Context, cred Credential) (Credential, error)
}

// OAuthRefresher runs the OAuth2 refresh_token grant against the credential's token URL.
type OAuthRefresher struct {
	ClientID     string
	ClientSecret string
	// HTTPClient overrides the client used for the token endpoint.
	HTTPClient *http.Client
}

// Refresh returns a copy of cred carrying the new access token and expiry. When the
// endpoint rotates the refresh token the new one replaces the old, otherwise the old
// one is kept. A rejected refresh token is reported as ErrInvalidGrant.
func (r *OAuthRefresher) Refresh(ctx context.Context, cred Credential) (Credential, error) {
	if cred.RefreshToken == "" {
		return Credential{}, fmt.Errorf("%w: no refresh token available", ErrInvalidGrant)
	}
	if cred.TokenURL == "" {
		return Credential{}, errors.New("no token url available")
	}

	cfg := &oauth2.Config{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  cred.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if r.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.HTTPClient)
	}

	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken}).Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.ErrorCode == "invalid_grant" {
			return Credential{}, fmt.Errorf("%w: %s", ErrInvalidGrant, retrieveErr.ErrorDescription)
		}
		return Credential{}, fmt.Errorf("token refresh failed: %w", err)
	}

	return WithToken(cred, tok), nil
}

// WithToken applies an OAuth2 token response to cred.
func WithToken(cred Credential, tok *oauth2.Token) Credential {
	cred.Type = TypeRenewable
	cred.Token = tok.AccessToken
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}
	cred.Expiry = tok.Expiry
	cred.Unusable = false
	return cred
}
