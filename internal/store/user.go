package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/userhub/apiserver/types"
)

const uniqueViolation = "23505"

// UserRepository handles persistence for users.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (types.User, error) {
	const query = `
		SELECT id, email, name, age, role, profile_id, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT id, email, name, age, role, profile_id, password_hash, created_at, updated_at
		FROM users
		WHERE lower(email) = lower($1)`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *UserRepository) ListUsers(ctx context.Context, filter string) ([]types.User, error) {
	const query = `
		SELECT id, email, name, age, role, profile_id, password_hash, created_at, updated_at
		FROM users
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []types.User{}
	for rows.Next() {
		user, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM users`
	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreateUser inserts the user. The unique index on email makes the
// duplicate check transactional; a violation maps to ErrConflict.
func (r *UserRepository) CreateUser(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (id, email, name, age, role, profile_id, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		user.ID,
		user.Email,
		user.Name,
		user.Age,
		user.Role,
		user.ProfileID,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return types.User{}, mapConstraintError(err)
	}
	return user, nil
}

func (r *UserRepository) UpdateUser(ctx context.Context, user types.User) (types.User, error) {
	user.UpdatedAt = time.Now()

	const query = `
		UPDATE users
		SET email = $1,
			name = $2,
			age = $3,
			role = $4,
			profile_id = NULLIF($5, ''),
			password_hash = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		user.Email,
		user.Name,
		user.Age,
		user.Role,
		user.ProfileID,
		user.PasswordHash,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return types.User{}, mapConstraintError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.User{}, err
	}
	if affected == 0 {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) DeleteUser(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var profileID sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Age,
		&user.Role,
		&profileID,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.ProfileID = profileID.String
	return user, nil
}

func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
