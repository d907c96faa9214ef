package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/userhub/apiserver/types"
)

// ProfileRepository handles persistence for profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetProfileByID(ctx context.Context, id string) (types.Profile, error) {
	const query = `
		SELECT id, profile_name, code, user_id, avatar_key, created_at, updated_at
		FROM profiles
		WHERE id = $1`
	return r.scanProfile(r.db.QueryRowContext(ctx, query, id))
}

func (r *ProfileRepository) ListProfiles(ctx context.Context, filter string) ([]types.Profile, error) {
	const query = `
		SELECT id, profile_name, code, user_id, avatar_key, created_at, updated_at
		FROM profiles
		WHERE $1 = '' OR profile_name ILIKE '%' || $1 || '%' OR code ILIKE '%' || $1 || '%'
		ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	profiles := []types.Profile{}
	for rows.Next() {
		profile, err := r.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

func (r *ProfileRepository) CreateProfile(ctx context.Context, profile types.Profile) (types.Profile, error) {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	const query = `
		INSERT INTO profiles (id, profile_name, code, user_id, avatar_key, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		profile.ID,
		profile.ProfileName,
		profile.Code,
		profile.UserID,
		profile.AvatarKey,
		profile.CreatedAt,
		profile.UpdatedAt,
	)
	if err != nil {
		return types.Profile{}, err
	}
	return profile, nil
}

func (r *ProfileRepository) UpdateProfile(ctx context.Context, profile types.Profile) (types.Profile, error) {
	profile.UpdatedAt = time.Now()

	const query = `
		UPDATE profiles
		SET profile_name = $1,
			code = $2,
			user_id = NULLIF($3, ''),
			avatar_key = NULLIF($4, ''),
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		profile.ProfileName,
		profile.Code,
		profile.UserID,
		profile.AvatarKey,
		profile.UpdatedAt,
		profile.ID,
	)
	if err != nil {
		return types.Profile{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Profile{}, err
	}
	if affected == 0 {
		return types.Profile{}, ErrNotFound
	}
	return profile, nil
}

func (r *ProfileRepository) DeleteProfile(ctx context.Context, id string) error {
	const query = `DELETE FROM profiles WHERE id = $1`
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

func (r *ProfileRepository) scanProfile(row rowScanner) (types.Profile, error) {
	var profile types.Profile
	var userID, avatarKey sql.NullString
	err := row.Scan(
		&profile.ID,
		&profile.ProfileName,
		&profile.Code,
		&userID,
		&avatarKey,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, err
	}
	profile.UserID = userID.String
	profile.AvatarKey = avatarKey.String
	return profile, nil
}
