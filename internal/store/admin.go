package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// AdminAccountRecord mirrors the teacher's AdminAccount model, used by the
// JWT-issuing admin login path and the §6.6 emergency-mode/matches endpoints.
type AdminAccountRecord struct {
	Phone       string         `db:"phone" json:"phone"`
	DisplayName sql.NullString `db:"display_name" json:"display_name,omitempty"`
	TokenHash   string         `db:"token_hash" json:"-"`
	Roles       pq.StringArray `db:"roles" json:"roles,omitempty"`
	AllowedIPs  pq.StringArray `db:"allowed_ips" json:"allowed_ips,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

func (s *Store) GetAdminAccount(ctx context.Context, phone string) (*AdminAccountRecord, error) {
	var a AdminAccountRecord
	err := s.db.GetContext(ctx, &a, `SELECT * FROM admin_accounts WHERE phone = $1`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get admin account: %w", err)
	}
	return &a, nil
}

func (s *Store) UpsertAdminAccount(ctx context.Context, a *AdminAccountRecord) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO admin_accounts (phone, display_name, token_hash, roles, allowed_ips, created_at, updated_at)
		VALUES (:phone, :display_name, :token_hash, :roles, :allowed_ips, :created_at, :updated_at)
		ON CONFLICT (phone) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			token_hash = EXCLUDED.token_hash,
			roles = EXCLUDED.roles,
			allowed_ips = EXCLUDED.allowed_ips,
			updated_at = EXCLUDED.updated_at
	`, a)
	if err != nil {
		return fmt.Errorf("store: upsert admin account: %w", err)
	}
	return nil
}
