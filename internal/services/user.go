package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/userhub/apiserver/internal/auth"
	"github.com/userhub/apiserver/internal/events"
	"github.com/userhub/apiserver/internal/store"
	"github.com/userhub/apiserver/types"
)

// ErrInvalidRole is returned when a create request names an unknown role.
var ErrInvalidRole = errors.New("invalid role")

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (types.User, error)
	GetUserByEmail(ctx context.Context, email string) (types.User, error)
	ListUsers(ctx context.Context, filter string) ([]types.User, error)
	CountUsers(ctx context.Context) (int, error)
	CreateUser(ctx context.Context, user types.User) (types.User, error)
	UpdateUser(ctx context.Context, user types.User) (types.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// RegisterParams are the attributes of a self-registered account. The
// role is always user.
type RegisterParams struct {
	Email    string
	Password string
	Name     string
	Age      int
	Profile  CreateProfileParams
}

// CreateUserParams are the attributes of an admin-created account. Unlike
// registration, the role may be set explicitly.
type CreateUserParams struct {
	Email    string
	Password string
	Name     string
	Age      int
	Role     types.Role
	Profile  *CreateProfileParams
}

// UpdateUserParams are the mutable attributes of a user. Nil fields are
// left unchanged. The role is never changed by update.
type UpdateUserParams struct {
	Email   *string
	Name    *string
	Age     *int
	Profile *CreateProfileParams
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo     UserRepository
	profiles *ProfileService
	bus      *events.Bus
}

// NewUserService constructs a UserService. bus may be nil, in which case
// no lifecycle events are published.
func NewUserService(repo UserRepository, profiles *ProfileService, bus *events.Bus) *UserService {
	return &UserService{repo: repo, profiles: profiles, bus: bus}
}

// Register creates a user account with the default user role and a linked
// profile. The returned user never carries the plaintext password.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (types.User, error) {
	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return types.User{}, err
	}

	userID := uuid.NewString()
	params.Profile.UserID = userID
	profile, err := s.profiles.Create(ctx, params.Profile)
	if err != nil {
		return types.User{}, err
	}

	user, err := s.repo.CreateUser(ctx, types.User{
		ID:           userID,
		Email:        params.Email,
		Name:         params.Name,
		Age:          params.Age,
		Role:         types.RoleUser,
		ProfileID:    profile.ID,
		PasswordHash: hash,
	})
	if err != nil {
		// The profile was created optimistically; roll it back so a
		// rejected registration leaves nothing behind.
		_ = s.profiles.Delete(ctx, profile.ID)
		return types.User{}, err
	}

	user.Profile = &profile
	s.publish(ctx, events.AccountRegistered, user)
	return user, nil
}

// Create adds a user on behalf of an admin. The role may be set
// explicitly; an empty role defaults to user.
func (s *UserService) Create(ctx context.Context, params CreateUserParams) (types.User, error) {
	role := params.Role
	if role == "" {
		role = types.RoleUser
	}
	if !role.Valid() {
		return types.User{}, ErrInvalidRole
	}

	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return types.User{}, err
	}

	user := types.User{
		ID:           uuid.NewString(),
		Email:        params.Email,
		Name:         params.Name,
		Age:          params.Age,
		Role:         role,
		PasswordHash: hash,
	}

	var profile *types.Profile
	if params.Profile != nil {
		params.Profile.UserID = user.ID
		created, err := s.profiles.Create(ctx, *params.Profile)
		if err != nil {
			return types.User{}, err
		}
		profile = &created
		user.ProfileID = created.ID
	}

	user, err = s.repo.CreateUser(ctx, user)
	if err != nil {
		if profile != nil {
			_ = s.profiles.Delete(ctx, profile.ID)
		}
		return types.User{}, err
	}

	user.Profile = profile
	s.publish(ctx, events.AccountCreated, user)
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id string) (types.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	s.attachProfile(ctx, &user)
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return s.repo.GetUserByEmail(ctx, email)
}

// List returns users whose name or email contains the filter,
// case-insensitively. An empty filter returns every user.
func (s *UserService) List(ctx context.Context, filter string) ([]types.User, error) {
	users, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range users {
		s.attachProfile(ctx, &users[i])
	}
	return users, nil
}

// Update applies a partial update. Email uniqueness is re-checked by the
// store; the role and password are never changed here. A profile payload
// replaces the linked profile.
func (s *UserService) Update(ctx context.Context, id string, params UpdateUserParams) (types.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if params.Email != nil {
		user.Email = *params.Email
	}
	if params.Name != nil {
		user.Name = *params.Name
	}
	if params.Age != nil {
		user.Age = *params.Age
	}
	if params.Profile != nil {
		params.Profile.UserID = user.ID
		profile, err := s.profiles.Create(ctx, *params.Profile)
		if err != nil {
			return types.User{}, err
		}
		user.ProfileID = profile.ID
	}

	user, err = s.repo.UpdateUser(ctx, user)
	if err != nil {
		return types.User{}, err
	}

	s.attachProfile(ctx, &user)
	s.publish(ctx, events.AccountUpdated, user)
	return user, nil
}

// Delete removes the user and its linked profile. Deleting an absent id
// reports NotFound every time.
func (s *UserService) Delete(ctx context.Context, id string) error {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	if user.ProfileID != "" {
		if err := s.profiles.Delete(ctx, user.ProfileID); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Warn("delete linked profile", "profile_id", user.ProfileID, "error", err)
		}
	}

	s.publish(ctx, events.AccountDeleted, user)
	return nil
}

// EnsureAdmin seeds a single admin account when the store is empty. The
// check is idempotent: a non-empty store is left untouched.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	count, err := s.repo.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	if _, err := s.repo.CreateUser(ctx, types.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Administrator",
		Role:         types.RoleAdmin,
		PasswordHash: hash,
	}); err != nil {
		// A concurrent seed may have won the race; that is fine.
		if errors.Is(err, store.ErrConflict) {
			return nil
		}
		return err
	}

	slog.Warn("seeded bootstrap admin account; change the credentials before production use", "email", email)
	return nil
}

func (s *UserService) attachProfile(ctx context.Context, user *types.User) {
	if user.ProfileID == "" {
		return
	}
	profile, err := s.profiles.Get(ctx, user.ProfileID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("load linked profile", "profile_id", user.ProfileID, "error", err)
		}
		return
	}
	user.Profile = &profile
}

// publish emits an account lifecycle event. Publishing is best-effort:
// failures are logged and never fail the request.
func (s *UserService) publish(ctx context.Context, eventType string, user types.User) {
	if s.bus == nil {
		return
	}
	if _, err := s.bus.PublishAccountEvent(ctx, events.AccountEvent{
		Type:   eventType,
		UserID: user.ID,
		Email:  user.Email,
	}); err != nil {
		slog.Warn("publish account event", "type", eventType, "user_id", user.ID, "error", err)
	}
}
