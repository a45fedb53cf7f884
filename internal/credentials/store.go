package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/textbot/internal/actions"
	"github.com/textbot/internal/logging"
	"github.com/textbot/internal/metrics"
)

const (
	defaultRefreshSkew    = time.Minute
	defaultRefreshTimeout = 10 * time.Second
)

// Store resolves per-user credentials, refreshing renewable ones when they are close to
// expiry. Concurrent resolves of the same (user, kind) share one token endpoint call.
type Store struct {
	backend   Backend
	refresher Refresher
	skew      time.Duration
	timeout   time.Duration
	now       func() time.Time
	flights   singleflight.Group
}

// NewStore creates a Store. Zero durations fall back to one minute of skew and a ten
// second refresh timeout.
func NewStore(backend Backend, refresher Refresher, skew, refreshTimeout time.Duration) *Store {
	if skew <= 0 {
		skew = defaultRefreshSkew
	}
	if refreshTimeout <= 0 {
		refreshTimeout = defaultRefreshTimeout
	}
	return &Store{
		backend:   backend,
		refresher: refresher,
		skew:      skew,
		timeout:   refreshTimeout,
		now:       time.Now,
	}
}

// Register validates and stores a credential, replacing any previous one for the key.
func (s *Store) Register(ctx context.Context, user actions.UserID, kind actions.Kind, cred Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}
	cred.UpdatedAt = s.now()
	if err := s.backend.Put(ctx, user, kind, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	log.Info().
		Str("user_id", logging.MaskPhone(string(user))).
		Str("kind", kind.String()).
		Str("type", string(cred.Type)).
		Msg("Credential registered")
	return nil
}

// Resolve returns a usable credential, or false when none is registered, the stored one
// is unusable, or a required refresh failed. Reasons are logged, never returned.
func (s *Store) Resolve(ctx context.Context, user actions.UserID, kind actions.Kind) (Credential, bool) {
	cred, err := s.Lookup(ctx, user, kind)
	if err != nil {
		event := log.Warn()
		if errors.Is(err, ErrNotFound) {
			event = log.Debug()
		}
		event.Err(err).
			Str("user_id", logging.MaskPhone(string(user))).
			Str("kind", kind.String()).
			Msg("No usable credential")
		return Credential{}, false
	}
	return cred, true
}

// Lookup is Resolve with the failure reason.
func (s *Store) Lookup(ctx context.Context, user actions.UserID, kind actions.Kind) (Credential, error) {
	cred, err := s.backend.Get(ctx, user, kind)
	if err != nil {
		return Credential{}, err
	}
	if cred.Unusable {
		return Credential{}, ErrUnusable
	}
	if !cred.NeedsRefresh(s.now(), s.skew) {
		return cred, nil
	}

	key := string(user) + "|" + kind.String()
	v, err, shared := s.flights.Do(key, func() (interface{}, error) {
		// Detached so one caller's cancellation does not fail the others sharing the flight.
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.refresh(refreshCtx, user, kind)
	})
	if err != nil {
		return Credential{}, err
	}
	if shared {
		log.Debug().
			Str("user_id", logging.MaskPhone(string(user))).
			Str("kind", kind.String()).
			Msg("Shared in-flight credential refresh")
	}
	return v.(Credential), nil
}

func (s *Store) refresh(ctx context.Context, user actions.UserID, kind actions.Kind) (Credential, error) {
	// Re-read: a flight that finished just before this one may already have stored a fresh token.
	current, err := s.backend.Get(ctx, user, kind)
	if err != nil {
		return Credential{}, err
	}
	if current.Unusable {
		return Credential{}, ErrUnusable
	}
	if !current.NeedsRefresh(s.now(), s.skew) {
		return current, nil
	}
	if s.refresher == nil {
		return Credential{}, errors.New("no refresher configured for renewable credential")
	}

	refreshed, err := s.refresher.Refresh(ctx, current)
	if err != nil {
		if errors.Is(err, ErrInvalidGrant) {
			metrics.RecordRefresh(kind.String(), "invalid_grant")
			current.Unusable = true
			current.UpdatedAt = s.now()
			if putErr := s.backend.Put(ctx, user, kind, current); putErr != nil {
				log.Error().Err(putErr).
					Str("user_id", logging.MaskPhone(string(user))).
					Str("kind", kind.String()).
					Msg("Failed to mark credential unusable")
			}
			log.Warn().
				Str("user_id", logging.MaskPhone(string(user))).
				Str("kind", kind.String()).
				Msg("Refresh token rejected, credential marked unusable")
			return Credential{}, fmt.Errorf("%w: %v", ErrUnusable, err)
		}
		metrics.RecordRefresh(kind.String(), "error")
		return Credential{}, err
	}

	refreshed.UpdatedAt = s.now()
	if err := s.backend.Put(ctx, user, kind, refreshed); err != nil {
		metrics.RecordRefresh(kind.String(), "error")
		return Credential{}, fmt.Errorf("persist refreshed credential: %w", err)
	}
	metrics.RecordRefresh(kind.String(), "ok")
	log.Info().
		Str("user_id", logging.MaskPhone(string(user))).
		Str("kind", kind.String()).
		Time("expires_at", refreshed.Expiry).
		Msg("Credential refreshed")
	return refreshed, nil
}
