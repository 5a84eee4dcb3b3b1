package service

import (
	"context"
	"errors"
	"testing"

	"github.com/arturoeanton/parley/internal/adapter/store"
	"github.com/arturoeanton/parley/internal/domain"
	"github.com/arturoeanton/parley/internal/port"
	"github.com/arturoeanton/parley/internal/port/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

func adaProfile() *domain.ExternalProfile {
	return &domain.ExternalProfile{
		ID:        "g-1",
		Email:     "ada@example.com",
		Name:      "Ada Lovelace",
		AvatarURL: "https://example.com/a.png",
	}
}

func ptr(s string) *string { return &s }

func TestResolve_ExistingAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	existing := &domain.User{ID: 7, Email: "ada@example.com", ProviderID: ptr("g-1"), AvatarURL: ptr("https://example.com/a.png")}

	accounts.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(existing, nil)

	got, err := NewIdentityResolver(accounts, nil).Resolve(context.Background(), adaProfile())
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
}

func TestResolve_RefreshesChangedAvatar(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	existing := &domain.User{ID: 7, ProviderID: ptr("g-1"), AvatarURL: ptr("https://example.com/old.png")}

	gomock.InOrder(
		accounts.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(existing, nil),
		accounts.EXPECT().UpdateAvatar(gomock.Any(), int64(7), "https://example.com/a.png").Return(nil),
	)

	got, err := NewIdentityResolver(accounts, nil).Resolve(context.Background(), adaProfile())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a.png", *got.AvatarURL)
}

func TestResolve_AvatarRefreshFailureIsNotFatal(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	existing := &domain.User{ID: 7, ProviderID: ptr("g-1")}

	accounts.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(existing, nil)
	accounts.EXPECT().UpdateAvatar(gomock.Any(), int64(7), gomock.Any()).Return(errors.New("db down"))

	got, err := NewIdentityResolver(accounts, nil).Resolve(context.Background(), adaProfile())
	require.NoError(t, err)
	assert.Nil(t, got.AvatarURL)
}

func TestResolve_CreatesOnMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	created := &domain.User{ID: 1, Email: "ada@example.com", Username: "Ada Lovelace", ProviderID: ptr("g-1")}

	gomock.InOrder(
		accounts.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, port.ErrAccountNotFound),
		accounts.EXPECT().
			CreateAccount(gomock.Any(), "ada@example.com", "Ada Lovelace", "g-1", "https://example.com/a.png").
			Return(created, nil),
	)

	got, err := NewIdentityResolver(accounts, nil).Resolve(context.Background(), adaProfile())
	require.NoError(t, err)
	assert.Same(t, created, got)
}

func TestResolve_DuplicateExternalIDRetriesLookupOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	winner := &domain.User{ID: 9, ProviderID: ptr("g-1"), AvatarURL: ptr("https://example.com/a.png")}

	gomock.InOrder(
		accounts.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, port.ErrAccountNotFound),
		accounts.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), "g-1", gomock.Any()).
			Return(nil, errors.Join(errors.New("create account"), port.ErrDuplicateExternalID)),
		accounts.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(winner, nil),
	)

	got, err := NewIdentityResolver(accounts, nil).Resolve(context.Background(), adaProfile())
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)
}

func TestResolve_DuplicateEmailFromSameProfileReturnsWinner(t *testing.T) {
	ctrl := gomock.NewController(t)
	accounts := mocks.NewMockAccountStore(ctrl)
	winner := &domain.User{ID: 9, Email: "ada@example.com", ProviderID: ptr("g-1")}

	// Postgres checks users_email_key first, so the losing insert reports the email.
	gomock.InOrder(
		accounts.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, port.ErrAccountNotFound),
		accounts.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), "g-1", gomock.Any()).
			Return(nil, errors.Join(errors.New("create account"), port.ErrDuplicateEmail)),
		accounts.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(winner, nil),
	)

	got, err := NewIdentityResolver(accounts, nil).Resolve(context.Background(), adaProfile())
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ID)
}

func TestResolve_Failures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *mocks.MockAccountStore)
		want  error
	}{
		{
			name: "lookup fails",
			setup: func(m *mocks.MockAccountStore) {
				m.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, errors.New("db down"))
			},
			want: port.ErrAccountPersistenceFailed,
		},
		{
			name: "email owned by another account",
			setup: func(m *mocks.MockAccountStore) {
				m.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, port.ErrAccountNotFound)
				m.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, port.ErrDuplicateEmail)
				m.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, port.ErrAccountNotFound)
			},
			want: port.ErrEmailConflict,
		},
		{
			name: "lookup after duplicate email fails",
			setup: func(m *mocks.MockAccountStore) {
				m.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, port.ErrAccountNotFound)
				m.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, port.ErrDuplicateEmail)
				m.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, errors.New("db down"))
			},
			want: port.ErrAccountPersistenceFailed,
		},
		{
			name: "create fails",
			setup: func(m *mocks.MockAccountStore) {
				m.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, port.ErrAccountNotFound)
				m.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errors.New("connection reset"))
			},
			want: port.ErrAccountPersistenceFailed,
		},
		{
			name: "retry lookup fails",
			setup: func(m *mocks.MockAccountStore) {
				m.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, port.ErrAccountNotFound)
				m.EXPECT().CreateAccount(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, port.ErrDuplicateExternalID)
				m.EXPECT().FindAccountByExternalID(gomock.Any(), "g-1").Return(nil, port.ErrAccountNotFound)
			},
			want: port.ErrAccountPersistenceFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			accounts := mocks.NewMockAccountStore(ctrl)
			tt.setup(accounts)

			_, err := NewIdentityResolver(accounts, nil).Resolve(context.Background(), adaProfile())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestResolve_EmailCollisionWithPasswordAccount(t *testing.T) {
	accounts := store.NewMemoryStore()
	accounts.PutLocalAccount("ada@example.com", "ada", "$2a$10$hash")

	_, err := NewIdentityResolver(accounts, nil).Resolve(context.Background(), adaProfile())
	assert.ErrorIs(t, err, port.ErrEmailConflict)
	assert.Equal(t, 1, accounts.Count())
}

func TestResolve_ConcurrentFirstLoginYieldsOneAccount(t *testing.T) {
	accounts := store.NewMemoryStore()
	resolver := NewIdentityResolver(accounts, nil)

	var g errgroup.Group
	ids := make([]int64, 50)
	for i := range ids {
		g.Go(func() error {
			user, err := resolver.Resolve(context.Background(), adaProfile())
			if err != nil {
				return err
			}
			ids[i] = user.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, accounts.Count())
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}
