// Package session persists the authenticated identity and the pending registration
// correlation in a repository.Store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/slotguard/internal/errs"
	"github.com/and161185/slotguard/internal/model"
	"github.com/and161185/slotguard/internal/repository"
)

// Storage keys shared with the browser client.
const (
	KeyToken          = "authToken"
	KeyUser           = "authUser"
	KeyRegistrationID = "registrationId"
)

// DefaultTTL bounds an identity whose token carries no exp claim.
const DefaultTTL = 15 * time.Minute

// Manager reads and writes session state. Safe for concurrent use if the Store is.
type Manager struct {
	store repository.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewManager wraps store. ttl <= 0 means DefaultTTL.
func NewManager(store repository.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}
}

// SetNow overrides the clock (tests).
func (m *Manager) SetNow(now func() time.Time) { m.now = now }

// expiry reads exp from the token without verifying the signature.
func (m *Manager) expiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return m.now().Add(m.ttl)
}

type storedToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SaveIdentity stores token and user and returns the identity with ExpiresAt filled in.
func (m *Manager) SaveIdentity(ctx context.Context, id model.Identity) (model.Identity, error) {
	if id.Token == "" {
		return model.Identity{}, fmt.Errorf("save identity: %w", errs.ErrValidation)
	}
	if id.ExpiresAt.IsZero() {
		id.ExpiresAt = m.expiry(id.Token)
	}
	tok, err := json.Marshal(storedToken{Token: id.Token, ExpiresAt: id.ExpiresAt})
	if err != nil {
		return model.Identity{}, err
	}
	usr, err := json.Marshal(id.User)
	if err != nil {
		return model.Identity{}, err
	}
	if err := m.store.Set(ctx, KeyToken, tok); err != nil {
		return model.Identity{}, fmt.Errorf("save token: %w", err)
	}
	if err := m.store.Set(ctx, KeyUser, usr); err != nil {
		return model.Identity{}, fmt.Errorf("save user: %w", err)
	}
	return id, nil
}

// LoadIdentity returns the stored identity, or errs.ErrUnauthenticated when none is
// stored or it has expired. An expired identity is removed.
func (m *Manager) LoadIdentity(ctx context.Context) (model.Identity, error) {
	raw, err := m.store.Get(ctx, KeyToken)
	if errors.Is(err, errs.ErrNotFound) {
		return model.Identity{}, errs.ErrUnauthenticated
	}
	if err != nil {
		return model.Identity{}, fmt.Errorf("load token: %w", err)
	}
	var st storedToken
	if err := json.Unmarshal(raw, &st); err != nil {
		return model.Identity{}, errs.ErrUnauthenticated
	}
	id := model.Identity{Token: st.Token, ExpiresAt: st.ExpiresAt}
	if !id.Valid(m.now()) {
		if err := m.Clear(ctx); err != nil {
			return model.Identity{}, fmt.Errorf("%w: clear expired identity: %w", errs.ErrUnauthenticated, err)
		}
		return model.Identity{}, errs.ErrUnauthenticated
	}
	if raw, err = m.store.Get(ctx, KeyUser); err == nil {
		_ = json.Unmarshal(raw, &id.User)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return model.Identity{}, fmt.Errorf("load user: %w", err)
	}
	return id, nil
}

// Clear drops the identity.
func (m *Manager) Clear(ctx context.Context) error {
	return errors.Join(
		m.store.Delete(ctx, KeyToken),
		m.store.Delete(ctx, KeyUser),
	)
}

// SaveRegistrationID persists the registration correlation.
func (m *Manager) SaveRegistrationID(ctx context.Context, id string) error {
	return m.store.Set(ctx, KeyRegistrationID, []byte(id))
}

// LoadRegistrationID returns the stored correlation or "" when none is stored.
func (m *Manager) LoadRegistrationID(ctx context.Context) (string, error) {
	raw, err := m.store.Get(ctx, KeyRegistrationID)
	if errors.Is(err, errs.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ClearRegistrationID removes the correlation.
func (m *Manager) ClearRegistrationID(ctx context.Context) error {
	return m.store.Delete(ctx, KeyRegistrationID)
}
