// Package contacts is the Postgres-backed contact store. Every query is
// scoped by the owning user.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goContacts "github.com/MrEthical07/goContacts"
	"github.com/MrEthical07/goContacts/internal/dbx"
)

const selectColumns = `id, user_id, name, surname, email, phone, birthday, description, created_at, updated_at`

// PostgresRepository implements goContacts.ContactStore.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*goContacts.Contact, error) {
	var (
		c        goContacts.Contact
		birthday time.Time
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Surname, &c.Email, &c.Phone,
		&birthday, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Birthday = goContacts.DateOf(birthday)
	return &c, nil
}

func (r *PostgresRepository) queryList(ctx context.Context, query string, args ...any) ([]goContacts.Contact, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []goContacts.Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*goContacts.Contact, error) {
	c, err := scanContact(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goContacts.ErrContactNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID int64, limit, offset int) ([]goContacts.Contact, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM contact
		 WHERE user_id = $1
		 ORDER BY id
		 LIMIT $2 OFFSET $3
		 `
	return r.queryList(ctx, query, userID, limit, offset)
}

func (r *PostgresRepository) ListAll(ctx context.Context, userID int64) ([]goContacts.Contact, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM contact
		 WHERE user_id = $1
		 ORDER BY id
		 `
	return r.queryList(ctx, query, userID)
}

func (r *PostgresRepository) Get(ctx context.Context, userID, contactID int64) (*goContacts.Contact, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM contact
		 WHERE id = $1 AND user_id = $2
		 `
	return r.queryOne(ctx, query, contactID, userID)
}

func (r *PostgresRepository) FindByName(ctx context.Context, userID int64, name string) ([]goContacts.Contact, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM contact
		 WHERE user_id = $1 AND name = $2
		 ORDER BY id
		 `
	return r.queryList(ctx, query, userID, name)
}

func (r *PostgresRepository) FindBySurname(ctx context.Context, userID int64, surname string) ([]goContacts.Contact, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM contact
		 WHERE user_id = $1 AND surname = $2
		 ORDER BY id
		 `
	return r.queryList(ctx, query, userID, surname)
}

// FindByEmail returns the oldest contact with that email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, userID int64, email string) (*goContacts.Contact, error) {
	query :=
		`SELECT ` + selectColumns + ` FROM contact
		 WHERE user_id = $1 AND email = $2
		 ORDER BY id
		 LIMIT 1
		 `
	return r.queryOne(ctx, query, userID, email)
}

func (r *PostgresRepository) Create(ctx context.Context, userID int64, in goContacts.ContactInput) (*goContacts.Contact, error) {
	query :=
		`INSERT INTO contact (user_id, name, surname, email, phone, birthday, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING ` + selectColumns

	return r.queryOne(ctx, query, userID, in.Name, in.Surname, in.Email, in.Phone,
		in.Birthday.Time, in.Description)
}

func (r *PostgresRepository) Update(ctx context.Context, userID, contactID int64, in goContacts.ContactInput) (*goContacts.Contact, error) {
	query :=
		`UPDATE contact
		 SET name = $3, surname = $4, email = $5, phone = $6, birthday = $7,
		     description = $8, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING ` + selectColumns

	return r.queryOne(ctx, query, contactID, userID, in.Name, in.Surname, in.Email, in.Phone,
		in.Birthday.Time, in.Description)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, contactID int64) (*goContacts.Contact, error) {
	query :=
		`DELETE FROM contact
		 WHERE id = $1 AND user_id = $2
		 RETURNING ` + selectColumns

	return r.queryOne(ctx, query, contactID, userID)
}
