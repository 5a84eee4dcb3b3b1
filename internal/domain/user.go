package domain

import "time"

// Provider names stored in users.provider.
const (
	ProviderLocal  = "local"
	ProviderGoogle = "google"
)

// Presence statuses.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// User is a local account owned by the storage layer.
// An account is reachable by a password hash, an external provider id, or both.
type User struct {
	ID           int64     `json:"id"          db:"id"`
	Username     string    `json:"username"    db:"username"`
	Email        string    `json:"email"       db:"email"`
	PasswordHash *string   `json:"-"           db:"password_hash"`
	ProviderID   *string   `json:"provider_id" db:"provider_id"`
	Provider     string    `json:"provider"    db:"provider"`
	AvatarURL    *string   `json:"avatar_url"  db:"avatar_url"`
	Status       string    `json:"status"      db:"status"`
	CreatedAt    time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"  db:"updated_at"`
}

// Reachable reports whether the account can be signed into at all.
func (u *User) Reachable() bool {
	return u.PasswordHash != nil || u.ProviderID != nil
}

// ExternalProfile is the identity provider's view of a user, fetched once per login.
type ExternalProfile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"picture"`
}

// Identity is the decoded session credential handed to request handlers.
type Identity struct {
	UserID    int64     `json:"user_id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	TokenID   string    `json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
