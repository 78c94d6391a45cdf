package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("account not found")
var ErrDuplicateEmail = errors.New("email already registered")

const uniqueViolation = "23505"

// Account is a board user: an admin tenant or an operational sub-user that
// works the admin's leads.
type Account struct {
	ID              uuid.UUID
	Email           string
	PasswordHash    string
	DisplayName     string
	Role            string
	CreatedByUserID *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type CreateAccountParams struct {
	Email           string
	PasswordHash    string
	DisplayName     string
	Role            string
	CreatedByUserID *uuid.UUID
}

func (r *Repository) Create(ctx context.Context, params CreateAccountParams) (Account, error) {
	var account Account
	err := r.pool.QueryRow(ctx, `
		INSERT INTO accounts (email, password_hash, display_name, role, created_by_user_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, email, password_hash, display_name, role, created_by_user_id, created_at, updated_at
	`, params.Email, params.PasswordHash, params.DisplayName, params.Role, params.CreatedByUserID).Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.DisplayName,
		&account.Role, &account.CreatedByUserID, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Account{}, ErrDuplicateEmail
		}
		return Account{}, err
	}
	return account, nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (Account, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, role, created_by_user_id, created_at, updated_at
		FROM accounts WHERE lower(email) = lower($1)
	`, email))
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, role, created_by_user_id, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id))
}

// ListOperational returns the operational accounts created by an admin.
func (r *Repository) ListOperational(ctx context.Context, adminID uuid.UUID) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, password_hash, display_name, role, created_by_user_id, created_at, updated_at
		FROM accounts WHERE created_by_user_id = $1 AND role = 'operational'
		ORDER BY created_at ASC
	`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]Account, 0)
	for rows.Next() {
		var account Account
		if err := rows.Scan(
			&account.ID, &account.Email, &account.PasswordHash, &account.DisplayName,
			&account.Role, &account.CreatedByUserID, &account.CreatedAt, &account.UpdatedAt,
		); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// LookupAccount implements tenancy.UserLookup.
func (r *Repository) LookupAccount(ctx context.Context, userID uuid.UUID) (string, *uuid.UUID, error) {
	var role string
	var createdBy *uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT role, created_by_user_id FROM accounts WHERE id = $1
	`, userID).Scan(&role, &createdBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}
	return role, createdBy, nil
}

// SaveRefreshToken stores a hashed refresh token for rotation.
func (r *Repository) SaveRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (account_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	return err
}

// GetRefreshToken returns the account and expiry for a hashed refresh token.
func (r *Repository) GetRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, time.Time, error) {
	var userID uuid.UUID
	var expiresAt time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT account_id, expires_at FROM refresh_tokens WHERE token_hash = $1
	`, tokenHash).Scan(&userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, time.Time{}, ErrNotFound
	}
	return userID, expiresAt, err
}

// RevokeRefreshToken deletes a hashed refresh token.
func (r *Repository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return err
}

func (r *Repository) scanOne(row pgx.Row) (Account, error) {
	var account Account
	err := row.Scan(
		&account.ID, &account.Email, &account.PasswordHash, &account.DisplayName,
		&account.Role, &account.CreatedByUserID, &account.CreatedAt, &account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, err
	}
	return account, nil
}
