package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminTokenRoundTrip(t *testing.T) {
	ts := NewTokenService("secret")
	tok, expiresAt, err := ts.IssueAdminToken("ops", time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	subject, err := ts.ValidateAdminToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "ops", subject)
}

func TestTokenPurposesDoNotMix(t *testing.T) {
	ts := NewTokenService("secret")
	state, err := ts.IssueState("+15551234567")
	require.NoError(t, err)

	_, err = ts.ValidateAdminToken(state)
	assert.ErrorIs(t, err, ErrWrongPurpose)

	user, err := ts.ValidateState(state)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", user)
}

func TestCalendarLinkPurpose(t *testing.T) {
	ts := NewTokenService("secret")
	link, err := ts.IssueCalendarLink("+15551234567")
	require.NoError(t, err)

	user, err := ts.ValidateCalendarLink(link)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", user)

	_, err = ts.ValidateState(link)
	assert.ErrorIs(t, err, ErrWrongPurpose)

	state, err := ts.IssueState("+15551234567")
	require.NoError(t, err)
	_, err = ts.ValidateCalendarLink(state)
	assert.ErrorIs(t, err, ErrWrongPurpose)

	ts.now = func() time.Time { return time.Now().Add(ts.LinkTokenDuration + time.Minute) }
	_, err = ts.ValidateCalendarLink(link)
	assert.Error(t, err)
}

func TestTokenRejectsOtherSecretAndExpiry(t *testing.T) {
	tok, _, err := NewTokenService("secret").IssueAdminToken("ops", time.Hour)
	require.NoError(t, err)
	_, err = NewTokenService("other").ValidateAdminToken(tok)
	assert.Error(t, err)

	ts := NewTokenService("secret")
	state, err := ts.IssueState("+15551234567")
	require.NoError(t, err)
	ts.now = func() time.Time { return time.Now().Add(ts.StateTokenDuration + time.Minute) }
	_, err = ts.ValidateState(state)
	assert.Error(t, err)
}

func TestRequireAdmin(t *testing.T) {
	ts := NewTokenService("secret")
	tok, _, err := ts.IssueAdminToken("ops", 0)
	require.NoError(t, err)

	e := echo.New()
	e.GET("/admin", func(c echo.Context) error {
		return c.String(http.StatusOK, c.Get(SubjectContextKey).(string))
	}, RequireAdmin(ts))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"malformed", "Token " + tok, http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + tok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "ops", rec.Body.String())
			}
		})
	}
}
