// Package users is the Postgres-backed account store.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/internal/dbx"
	"github.com/MrEthical07/goContacts/session"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// ErrDuplicateEmail is returned by Create when the email is taken.
var ErrDuplicateEmail = fmt.Errorf("%w: duplicate email", goContacts.ErrAccountExists)

const selectColumns = `id, username, email, password, COALESCE(refresh_token, ''), COALESCE(avatar, ''), confirmed, created_at`

// PostgresRepository implements goContacts.UserStore.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*session.Principal, error) {
	var (
		p         session.Principal
		createdAt time.Time
	)
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.RefreshToken, &p.Avatar, &p.Confirmed, &createdAt); err != nil {
		return nil, err
	}
	p.CreatedAt = createdAt.Unix()
	return &p, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*session.Principal, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM users
		 WHERE email = $1
		 `

	p, err := scanPrincipal(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, p *session.Principal) (*session.Principal, error) {
	query :=
		`INSERT INTO users (username, email, password, avatar, confirmed)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		 RETURNING ` + selectColumns

	created, err := scanPrincipal(r.db.QueryRowContext(ctx, query,
		p.Username, p.Email, p.PasswordHash, p.Avatar, p.Confirmed))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

// UpdateRefreshToken stores token, or NULL when token is empty.
func (r *PostgresRepository) UpdateRefreshToken(ctx context.Context, userID int64, token string) error {
	query :=
		`UPDATE users SET refresh_token = NULLIF($2, '')
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, userID, token)
}

// RotateRefreshToken swaps current for next under a row lock. It reports
// false, leaving the row untouched, when current is no longer the stored
// token.
func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, userID int64, current, next string) (bool, error) {
	if current == "" {
		return false, nil
	}

	rotated := false
	err := dbx.InTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var stored string
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(refresh_token, '') FROM users
			 WHERE id = $1
			 FOR UPDATE`, userID).Scan(&stored)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return session.ErrPrincipalNotFound
			}
			return fmt.Errorf("db error: %w", err)
		}
		if stored != current {
			return nil
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET refresh_token = NULLIF($2, '')
			 WHERE id = $1`, userID, next); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		rotated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return rotated, nil
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	query :=
		`UPDATE users SET password = $2
		 WHERE id = $1
		 `
	return r.execOne(ctx, query, userID, hash)
}

func (r *PostgresRepository) ConfirmEmail(ctx context.Context, email string) error {
	query :=
		`UPDATE users SET confirmed = TRUE
		 WHERE email = $1
		 `
	return r.execOne(ctx, query, email)
}

func (r *PostgresRepository) UpdateAvatar(ctx context.Context, email, url string) (*session.Principal, error) {
	query :=
		`UPDATE users SET avatar = $2
		 WHERE email = $1
		 RETURNING ` + selectColumns

	p, err := scanPrincipal(r.db.QueryRowContext(ctx, query, email, url))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, session.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return p, nil
}

// Ping runs SELECT 1.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return session.ErrPrincipalNotFound
	}
	return nil
}
