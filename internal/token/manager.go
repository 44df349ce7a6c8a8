package token

import (
	"context"
	"fmt"
	"time"

	"autogram/internal/credentials"

	"github.com/rs/zerolog"
)

// Store persists the current credential between runs.
type Store interface {
	Load() (credentials.Credential, error)
	Save(credentials.Credential) error
}

// Refresher exchanges a still-valid credential for a fresh one with an
// extended expiry.
type Refresher interface {
	Refresh(ctx context.Context, cred credentials.Credential) (credentials.Credential, error)
}

// CredentialError marks a cycle-fatal credential failure: publishing must not
// proceed without a valid credential.
type CredentialError struct {
	Op  string
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential %s failed: %v", e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// Manager validates the stored credential and refreshes it proactively before
// expiry.
type Manager struct {
	store     Store
	refresher Refresher
	margin    time.Duration
	logger    zerolog.Logger

	now func() time.Time
}

func NewManager(store Store, refresher Refresher, margin time.Duration, logger zerolog.Logger) *Manager {
	return &Manager{
		store:     store,
		refresher: refresher,
		margin:    margin,
		logger:    logger,
		now:       time.Now,
	}
}

// EnsureValid returns a credential guaranteed to be valid for at least the
// refresh margin. When the stored credential is close to expiry it is
// refreshed and persisted before being returned; a refresh failure is fatal
// for the caller's cycle.
func (m *Manager) EnsureValid(ctx context.Context) (credentials.Credential, error) {
	cred, err := m.store.Load()
	if err != nil {
		return credentials.Credential{}, &CredentialError{Op: "load", Err: err}
	}

	now := m.now()
	if !cred.ExpiresWithin(now, m.margin) {
		m.logger.Debug().
			Time("expires_at", cred.ExpiresAt).
			Msg("credential still valid")
		return cred, nil
	}

	m.logger.Info().
		Time("expires_at", cred.ExpiresAt).
		Dur("margin", m.margin).
		Msg("credential expiring soon, refreshing")

	refreshed, err := m.refresher.Refresh(ctx, cred)
	if err != nil {
		return credentials.Credential{}, &CredentialError{Op: "refresh", Err: err}
	}
	refreshed.RefreshedAt = now

	if err := m.store.Save(refreshed); err != nil {
		return credentials.Credential{}, &CredentialError{Op: "persist", Err: err}
	}

	m.logger.Info().
		Time("new_expires_at", refreshed.ExpiresAt).
		Msg("credential refreshed")
	return refreshed, nil
}
