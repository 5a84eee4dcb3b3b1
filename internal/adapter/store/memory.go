package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arturoeanton/parley/internal/domain"
	"github.com/arturoeanton/parley/internal/port"
	"github.com/google/uuid"
)

// MemoryStore is an in-process account and audit store. It enforces the same
// unique keys as the users table, checking email before provider id in the
// order Postgres reports them.
type MemoryStore struct {
	mu         sync.Mutex
	nextID     int64
	byID       map[int64]*domain.User
	byProvider map[string]int64
	byEmail    map[string]int64
	audit      []domain.AuditLog
	now        func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[int64]*domain.User),
		byProvider: make(map[string]int64),
		byEmail:    make(map[string]int64),
		now:        time.Now,
	}
}

// FindAccountByExternalID implements port.AccountStore.
func (s *MemoryStore) FindAccountByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byProvider[externalID]
	if !ok {
		return nil, port.ErrAccountNotFound
	}
	return cloneUser(s.byID[id]), nil
}

// CreateAccount implements port.AccountStore.
func (s *MemoryStore) CreateAccount(_ context.Context, email, displayName, externalID, avatarURL string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return nil, fmt.Errorf("create account: %w", port.ErrDuplicateEmail)
	}
	if _, ok := s.byProvider[externalID]; ok {
		return nil, fmt.Errorf("create account: %w", port.ErrDuplicateExternalID)
	}

	s.nextID++
	now := s.now().UTC()
	providerID := externalID
	user := &domain.User{
		ID:         s.nextID,
		Username:   displayName,
		Email:      email,
		ProviderID: &providerID,
		Provider:   domain.ProviderGoogle,
		Status:     domain.StatusOnline,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if avatarURL != "" {
		avatar := avatarURL
		user.AvatarURL = &avatar
	}

	s.byID[user.ID] = user
	s.byProvider[externalID] = user.ID
	s.byEmail[email] = user.ID
	return cloneUser(user), nil
}

// UpdateAvatar implements port.AccountStore.
func (s *MemoryStore) UpdateAvatar(_ context.Context, id int64, avatarURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return port.ErrAccountNotFound
	}
	if avatarURL == "" {
		user.AvatarURL = nil
	} else {
		avatar := avatarURL
		user.AvatarURL = &avatar
	}
	user.UpdatedAt = s.now().UTC()
	return nil
}

// PutLocalAccount seeds a password account, as created outside the login flow.
func (s *MemoryStore) PutLocalAccount(email, username, passwordHash string) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := s.now().UTC()
	hash := passwordHash
	user := &domain.User{
		ID:           s.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
		Provider:     domain.ProviderLocal,
		Status:       domain.StatusOffline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.byID[user.ID] = user
	s.byEmail[email] = user.ID
	return cloneUser(user)
}

// Count returns the number of stored accounts.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

// WriteAudit stores one audit record.
func (s *MemoryStore) WriteAudit(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if entry.Details == "" {
		entry.Details = "{}"
	}
	s.audit = append(s.audit, entry)
	return nil
}

// ListAuditLogs returns a user's most recent audit records, newest first.
func (s *MemoryStore) ListAuditLogs(_ context.Context, userID string, limit int) ([]domain.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var logs []domain.AuditLog
	for _, l := range s.audit {
		if l.UserID == userID {
			logs = append(logs, l)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	if u.PasswordHash != nil {
		v := *u.PasswordHash
		c.PasswordHash = &v
	}
	if u.ProviderID != nil {
		v := *u.ProviderID
		c.ProviderID = &v
	}
	if u.AvatarURL != nil {
		v := *u.AvatarURL
		c.AvatarURL = &v
	}
	return &c
}
