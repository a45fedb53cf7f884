// Package authflow runs the one-time OAuth authorization that gives the bot a renewable
// calendar credential for a user.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/credentials"
	"github.com/textbot/internal/logging"
)

var (
	// ErrInvalidState is returned when the callback state is missing, forged or expired.
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrInvalidLink is returned when a start link's token is missing, forged or expired.
	ErrInvalidLink = errors.New("invalid calendar authorization link")
	// ErrNoRefreshToken is returned when the provider granted no offline access.
	ErrNoRefreshToken = errors.New("provider granted no refresh token")
)

// StateTokens mints and checks the start link token and the opaque state parameter.
// auth.TokenService satisfies it.
type StateTokens interface {
	IssueCalendarLink(userID string) (string, error)
	ValidateCalendarLink(token string) (string, error)
	IssueState(userID string) (string, error)
	ValidateState(state string) (string, error)
}

// Registrar stores the resulting credential. credentials.Store satisfies it.
type Registrar interface {
	Register(ctx context.Context, user actions.UserID, kind actions.Kind, cred credentials.Credential) error
}

// OAuthConfig describes the provider's client registration.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	RedirectURL  string

	// StartURL is the public address of the start route that link tokens are appended to.
	StartURL string
}

// CalendarFlow authorizes calendar access.
type CalendarFlow struct {
	oauth    *oauth2.Config
	startURL string
	states   StateTokens
	store    Registrar

	// HTTPClient overrides the client used for the code exchange.
	HTTPClient *http.Client
}

// NewCalendarFlow creates the flow.
func NewCalendarFlow(cfg OAuthConfig, states StateTokens, store Registrar) *CalendarFlow {
	return &CalendarFlow{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{calendar.CalendarEventsScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		startURL: cfg.StartURL,
		states:   states,
		store:    store,
	}
}

// LinkURL returns the start link to text to user. Only the holder of the link can begin
// authorization for that user.
func (f *CalendarFlow) LinkURL(user actions.UserID) (string, error) {
	if strings.TrimSpace(string(user)) == "" {
		return "", errors.New("user id is required")
	}
	if f.startURL == "" {
		return "", errors.New("calendar start url is not configured")
	}
	tok, err := f.states.IssueCalendarLink(string(user))
	if err != nil {
		return "", fmt.Errorf("issue link token: %w", err)
	}
	return f.startURL + "?token=" + url.QueryEscape(tok), nil
}

// AuthURL checks a start link token and returns the consent page URL for its user.
// Offline access and a forced prompt make the provider hand out a refresh token every time.
func (f *CalendarFlow) AuthURL(link string) (string, error) {
	userID, err := f.states.ValidateCalendarLink(link)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidLink, err)
	}
	state, err := f.states.IssueState(userID)
	if err != nil {
		return "", fmt.Errorf("issue state: %w", err)
	}
	return f.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Complete exchanges the authorization code and registers the renewable credential.
func (f *CalendarFlow) Complete(ctx context.Context, state, code string) (actions.UserID, error) {
	userID, err := f.states.ValidateState(state)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if code == "" {
		return "", errors.New("authorization code is required")
	}
	user := actions.UserID(userID)

	if f.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, f.HTTPClient)
	}
	tok, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return user, fmt.Errorf("exchange code: %w", err)
	}
	if tok.RefreshToken == "" {
		return user, ErrNoRefreshToken
	}

	cred := credentials.WithToken(credentials.Credential{TokenURL: f.oauth.Endpoint.TokenURL}, tok)
	if err := f.store.Register(ctx, user, actions.KindCalendar, cred); err != nil {
		return user, fmt.Errorf("register credential: %w", err)
	}

	log.Info().Str("user_id", logging.MaskPhone(userID)).Time("expiry", tok.Expiry).Msg("Calendar authorized")
	return user, nil
}
