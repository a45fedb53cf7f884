package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "textbot"

// Token purposes. A token minted for one purpose is rejected for any other.
const (
	PurposeAdmin        = "admin"
	PurposeState        = "oauth_state"
	PurposeCalendarLink = "calendar_link"
)

// ErrWrongPurpose is returned when a valid token was minted for something else.
var ErrWrongPurpose = errors.New("token purpose mismatch")

// TokenService handles JWT creation and validation
type TokenService struct {
	secretKey []byte
	now       func() time.Time

	// Configurable token durations
	AdminTokenDuration time.Duration // Default: 30 days
	StateTokenDuration time.Duration // Default: 10 minutes
	LinkTokenDuration  time.Duration // Default: 24 hours
}

// JWTClaims represents the claims in our JWT tokens
type JWTClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// NewTokenService creates a new token service
func NewTokenService(secretKey string) *TokenService {
	return &TokenService{
		secretKey:          []byte(secretKey),
		now:                time.Now,
		AdminTokenDuration: 30 * 24 * time.Hour,
		StateTokenDuration: 10 * time.Minute,
		LinkTokenDuration:  24 * time.Hour,
	}
}

// IssueAdminToken mints a bearer token for the admin routes.
func (ts *TokenService) IssueAdminToken(subject string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = ts.AdminTokenDuration
	}
	return ts.sign(PurposeAdmin, subject, ttl)
}

// IssueState mints the OAuth state parameter naming the user being authorized.
func (ts *TokenService) IssueState(userID string) (string, error) {
	tok, _, err := ts.sign(PurposeState, userID, ts.StateTokenDuration)
	return tok, err
}

// IssueCalendarLink mints the token carried by a calendar authorization link texted to userID.
func (ts *TokenService) IssueCalendarLink(userID string) (string, error) {
	tok, _, err := ts.sign(PurposeCalendarLink, userID, ts.LinkTokenDuration)
	return tok, err
}

// ValidateAdminToken returns the subject of a valid admin token.
func (ts *TokenService) ValidateAdminToken(tokenString string) (string, error) {
	return ts.validate(tokenString, PurposeAdmin)
}

// ValidateState returns the user named by a valid OAuth state.
func (ts *TokenService) ValidateState(state string) (string, error) {
	return ts.validate(state, PurposeState)
}

// ValidateCalendarLink returns the user a calendar authorization link was issued to.
func (ts *TokenService) ValidateCalendarLink(token string) (string, error) {
	return ts.validate(token, PurposeCalendarLink)
}

func (ts *TokenService) sign(purpose, subject string, ttl time.Duration) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(ttl)
	claims := &JWTClaims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, expiresAt, nil
}

func (ts *TokenService) validate(tokenString, purpose string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secretKey, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(ts.now))
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if claims.Purpose != purpose {
		return "", ErrWrongPurpose
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
