package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arturoeanton/parley/internal/domain"
	"github.com/arturoeanton/parley/internal/metrics"
	"github.com/arturoeanton/parley/internal/port"
)

// IdentityResolver maps an external profile to a local account, creating
// the account on first login.
type IdentityResolver struct {
	store   port.AccountStore
	metrics *metrics.Metrics
}

// NewIdentityResolver creates a resolver over the given store.
func NewIdentityResolver(store port.AccountStore, m *metrics.Metrics) *IdentityResolver {
	return &IdentityResolver{store: store, metrics: m}
}

// Resolve returns the account linked to profile.ID.
//
// A concurrent first login for the same profile loses the insert race on
// either unique key, so any duplicate insert is retried once as a lookup.
// Only when that lookup misses is the email owned by another account, which
// yields port.ErrEmailConflict.
// Every other storage failure is wrapped in port.ErrAccountPersistenceFailed.
func (r *IdentityResolver) Resolve(ctx context.Context, profile *domain.ExternalProfile) (*domain.User, error) {
	if profile == nil || profile.ID == "" {
		return nil, fmt.Errorf("%w: profile has no external id", port.ErrAccountPersistenceFailed)
	}

	user, err := r.store.FindAccountByExternalID(ctx, profile.ID)
	switch {
	case err == nil:
		r.refreshAvatar(ctx, user, profile.AvatarURL)
		return user, nil
	case !errors.Is(err, port.ErrAccountNotFound):
		return nil, fmt.Errorf("%w: %w", port.ErrAccountPersistenceFailed, err)
	}

	user, err = r.store.CreateAccount(ctx, profile.Email, profile.Name, profile.ID, profile.AvatarURL)
	switch {
	case err == nil:
		r.metrics.IncrementAccountCreated()
		slog.Info("account created", "user_id", user.ID, "provider", user.Provider)
		return user, nil
	case errors.Is(err, port.ErrDuplicateExternalID), errors.Is(err, port.ErrDuplicateEmail):
		return r.lookupAfterDuplicate(ctx, profile.ID, err)
	default:
		return nil, fmt.Errorf("%w: %w", port.ErrAccountPersistenceFailed, err)
	}
}

func (r *IdentityResolver) lookupAfterDuplicate(ctx context.Context, externalID string, insertErr error) (*domain.User, error) {
	user, err := r.store.FindAccountByExternalID(ctx, externalID)
	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, port.ErrAccountNotFound) && errors.Is(insertErr, port.ErrDuplicateEmail):
		return nil, port.ErrEmailConflict
	default:
		return nil, fmt.Errorf("%w: lookup after duplicate insert: %w", port.ErrAccountPersistenceFailed, err)
	}
}

func (r *IdentityResolver) refreshAvatar(ctx context.Context, user *domain.User, avatarURL string) {
	if avatarURL == "" {
		return
	}
	if user.AvatarURL != nil && *user.AvatarURL == avatarURL {
		return
	}
	if err := r.store.UpdateAvatar(ctx, user.ID, avatarURL); err != nil {
		slog.Warn("avatar refresh failed", "user_id", user.ID, "error", err)
		return
	}
	avatar := avatarURL
	user.AvatarURL = &avatar
}
