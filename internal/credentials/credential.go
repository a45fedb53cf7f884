package credentials

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by a Backend when nothing is registered for the key.
	ErrNotFound = errors.New("credential not found")
	// ErrUnusable marks a renewable credential whose refresh material was rejected.
	ErrUnusable = errors.New("credential is unusable")
	// ErrInvalidGrant is returned by a Refresher when the token endpoint rejected the
	// refresh token itself. The credential is marked unusable.
	ErrInvalidGrant = errors.New("refresh token rejected")
	// ErrInvalidCredential is returned by Register for incomplete credentials.
	ErrInvalidCredential = errors.New("invalid credential")
)

// Type distinguishes static secrets from OAuth-style renewable ones.
type Type string

const (
	// TypeStatic never expires (API keys, integration tokens).
	TypeStatic Type = "static"
	// TypeRenewable is an access token that expires and can be refreshed.
	TypeRenewable Type = "renewable"
)

// Credential is what an executor needs to call its target service.
type Credential struct {
	Type  Type   `json:"type"`
	Token string `json:"token"`
	// Account is a service-specific account reference: the Notion database to write to,
	// or the Habitica user ID.
	Account string `json:"account,omitempty"`

	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	TokenURL     string    `json:"token_url,omitempty"`

	Unusable  bool      `json:"unusable,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Static builds a non-expiring credential.
func Static(token, account string) Credential {
	return Credential{Type: TypeStatic, Token: token, Account: account}
}

// Renewable builds an OAuth-style credential.
func Renewable(accessToken, refreshToken, tokenURL string, expiry time.Time) Credential {
	return Credential{
		Type:         TypeRenewable,
		Token:        accessToken,
		RefreshToken: refreshToken,
		TokenURL:     tokenURL,
		Expiry:       expiry,
	}
}

// IsRenewable reports whether the credential carries refresh bookkeeping.
func (c Credential) IsRenewable() bool {
	return c.Type == TypeRenewable
}

// NeedsRefresh reports whether a renewable credential is expired, or will be within skew.
// A zero expiry means the issuer did not report one and the token is used as is.
func (c Credential) NeedsRefresh(now time.Time, skew time.Duration) bool {
	if !c.IsRenewable() || c.Expiry.IsZero() {
		return false
	}
	return !now.Add(skew).Before(c.Expiry)
}

// Validate enforces that a renewable credential can refresh itself or is explicitly
// marked unusable, and that usable credentials carry a token.
func (c Credential) Validate() error {
	switch c.Type {
	case TypeStatic:
		if c.Token == "" {
			return errors.Join(ErrInvalidCredential, errors.New("static credential needs a token"))
		}
	case TypeRenewable:
		if c.Unusable {
			return nil
		}
		if c.RefreshToken == "" || c.TokenURL == "" {
			return errors.Join(ErrInvalidCredential, errors.New("renewable credential needs a refresh token and token url"))
		}
		if c.Token == "" && c.Expiry.IsZero() {
			return errors.Join(ErrInvalidCredential, errors.New("renewable credential needs an access token or an expiry"))
		}
	default:
		return errors.Join(ErrInvalidCredential, errors.New("unknown credential type "+string(c.Type)))
	}
	return nil
}
