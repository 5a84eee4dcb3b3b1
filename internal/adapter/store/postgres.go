package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/arturoeanton/parley/internal/domain"
	"github.com/arturoeanton/parley/internal/port"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Constraint names from migrations/00001_create_users.sql.
const (
	uniqueViolation      = "23505"
	constraintProviderID = "users_provider_id_key"
	constraintEmail      = "users_email_key"
	userColumns          = `id, username, email, password_hash, provider_id, provider, avatar_url, status, created_at, updated_at`
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing pool.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded goose migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "migrations"); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// --- Users ---

// FindAccountByExternalID looks up an account by its provider id.
func (s *PostgresStore) FindAccountByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider_id = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, port.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return user, nil
}

// CreateAccount inserts an account for a first external login.
func (s *PostgresStore) CreateAccount(ctx context.Context, email, displayName, externalID, avatarURL string) (*domain.User, error) {
	query := `
		INSERT INTO users (username, email, provider_id, provider, avatar_url, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query,
		displayName, email, externalID, domain.ProviderGoogle, nullString(avatarURL), domain.StatusOnline,
	))
	if err != nil {
		if dup := classifyUniqueViolation(err); dup != nil {
			return nil, fmt.Errorf("create account: %w", dup)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return user, nil
}

// UpdateAvatar refreshes the avatar URL of an account.
func (s *PostgresStore) UpdateAvatar(ctx context.Context, id int64, avatarURL string) error {
	query := `UPDATE users SET avatar_url = $1, updated_at = NOW() WHERE id = $2`

	res, err := s.db.ExecContext(ctx, query, nullString(avatarURL), id)
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	if n == 0 {
		return port.ErrAccountNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.ProviderID, &user.Provider, &user.AvatarURL, &user.Status,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func classifyUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case constraintProviderID:
		return port.ErrDuplicateExternalID
	case constraintEmail:
		return port.ErrDuplicateEmail
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// --- Audit Logs ---

// WriteAudit persists one audit record.
func (s *PostgresStore) WriteAudit(ctx context.Context, entry domain.AuditLog) error {
	query := `INSERT INTO audit_logs (user_id, action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)`

	details := entry.Details
	if details == "" {
		details = "{}"
	}
	_, err := s.db.ExecContext(ctx, query,
		entry.UserID, entry.Action, entry.Resource, entry.ResourceID, details, entry.IP, entry.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}

// ListAuditLogs returns a user's most recent audit records, newest first.
func (s *PostgresStore) ListAuditLogs(ctx context.Context, userID string, limit int) ([]domain.AuditLog, error) {
	query := `SELECT id, user_id, action, resource, resource_id, details::text, ip, user_agent, created_at
	          FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.AuditLog
	for rows.Next() {
		var l domain.AuditLog
		if err := rows.Scan(
			&l.ID, &l.UserID, &l.Action, &l.Resource, &l.ResourceID,
			&l.Details, &l.IP, &l.UserAgent, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
