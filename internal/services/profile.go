package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/userhub/apiserver/internal/storage"
	"github.com/userhub/apiserver/internal/store"
	"github.com/userhub/apiserver/types"
)

// ErrStorageDisabled is returned by avatar operations when no object
// storage backend is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	GetProfileByID(ctx context.Context, id string) (types.Profile, error)
	ListProfiles(ctx context.Context, filter string) ([]types.Profile, error)
	CreateProfile(ctx context.Context, profile types.Profile) (types.Profile, error)
	UpdateProfile(ctx context.Context, profile types.Profile) (types.Profile, error)
	DeleteProfile(ctx context.Context, id string) error
}

// CreateProfileParams are the attributes of a new profile.
type CreateProfileParams struct {
	ProfileName string
	Code        string
	UserID      string
}

// UpdateProfileParams are the mutable attributes of a profile. Nil fields
// are left unchanged.
type UpdateProfileParams struct {
	ProfileName *string
	Code        *string
}

// ProfileService encapsulates profile use-cases.
type ProfileService struct {
	repo    ProfileRepository
	storage *storage.Storage
}

// NewProfileService constructs a ProfileService. storage may be nil, in
// which case avatar operations report ErrStorageDisabled.
func NewProfileService(repo ProfileRepository, avatarStorage *storage.Storage) *ProfileService {
	return &ProfileService{repo: repo, storage: avatarStorage}
}

func (s *ProfileService) Create(ctx context.Context, params CreateProfileParams) (types.Profile, error) {
	profile := types.Profile{
		ID:          uuid.NewString(),
		ProfileName: params.ProfileName,
		Code:        params.Code,
		UserID:      params.UserID,
	}
	return s.repo.CreateProfile(ctx, profile)
}

func (s *ProfileService) Get(ctx context.Context, id string) (types.Profile, error) {
	return s.repo.GetProfileByID(ctx, id)
}

func (s *ProfileService) List(ctx context.Context, filter string) ([]types.Profile, error) {
	return s.repo.ListProfiles(ctx, filter)
}

func (s *ProfileService) Update(ctx context.Context, id string, params UpdateProfileParams) (types.Profile, error) {
	profile, err := s.repo.GetProfileByID(ctx, id)
	if err != nil {
		return types.Profile{}, err
	}
	if params.ProfileName != nil {
		profile.ProfileName = *params.ProfileName
	}
	if params.Code != nil {
		profile.Code = *params.Code
	}
	return s.repo.UpdateProfile(ctx, profile)
}

func (s *ProfileService) Delete(ctx context.Context, id string) error {
	return s.repo.DeleteProfile(ctx, id)
}

// ResolveOwner returns the set of user ids that own the resource named by
// resourceID. The raw id is always included, so a user addressing their
// own user record matches directly; when the id names a known profile the
// linked user id is added, letting one guard serve both the user and
// profile routes.
func (s *ProfileService) ResolveOwner(ctx context.Context, resourceID string) ([]string, error) {
	owners := []string{resourceID}
	profile, err := s.repo.GetProfileByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return owners, nil
		}
		return nil, err
	}
	if profile.UserID != "" {
		owners = append(owners, profile.UserID)
	}
	return owners, nil
}

// PutAvatar stores the avatar object for the profile and records its key.
func (s *ProfileService) PutAvatar(ctx context.Context, id string, r io.Reader, size int64, contentType string) error {
	if s.storage == nil {
		return ErrStorageDisabled
	}

	profile, err := s.repo.GetProfileByID(ctx, id)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("avatars/%s", profile.ID)
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return err
	}

	profile.AvatarKey = key
	_, err = s.repo.UpdateProfile(ctx, profile)
	return err
}

// GetAvatar opens a reader for the profile's avatar object.
func (s *ProfileService) GetAvatar(ctx context.Context, id string) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}

	profile, err := s.repo.GetProfileByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if profile.AvatarKey == "" {
		return nil, store.ErrNotFound
	}
	return s.storage.Get(ctx, profile.AvatarKey)
}
