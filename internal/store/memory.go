package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/userhub/apiserver/types"
)

// Memory is an in-memory implementation of the user and profile
// repositories. A single mutex guards every operation, so the email
// check-then-insert sequence is atomic with respect to concurrent
// creates. Used by tests and as a no-database dev mode.
type Memory struct {
	mu       sync.Mutex
	users    map[string]types.User
	emails   map[string]string // lowercased email -> user id
	profiles map[string]types.Profile
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]types.User),
		emails:   make(map[string]string),
		profiles: make(map[string]types.Profile),
	}
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return m.users[id], nil
}

func (m *Memory) ListUsers(ctx context.Context, filter string) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filter = strings.ToLower(filter)
	users := make([]types.User, 0, len(m.users))
	for _, user := range m.users {
		if filter != "" &&
			!strings.Contains(strings.ToLower(user.Name), filter) &&
			!strings.Contains(strings.ToLower(user.Email), filter) {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (m *Memory) CountUsers(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *Memory) CreateUser(ctx context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, exists := m.emails[email]; exists {
		return types.User{}, ErrConflict
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	m.users[user.ID] = user
	m.emails[email] = user.ID
	return user, nil
}

func (m *Memory) UpdateUser(ctx context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.users[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}

	email := strings.ToLower(user.Email)
	if id, exists := m.emails[email]; exists && id != user.ID {
		return types.User{}, ErrConflict
	}

	delete(m.emails, strings.ToLower(current.Email))
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = time.Now()
	m.users[user.ID] = user
	m.emails[email] = user.ID
	return user, nil
}

func (m *Memory) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	delete(m.emails, strings.ToLower(user.Email))
	return nil
}

func (m *Memory) GetProfileByID(ctx context.Context, id string) (types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[id]
	if !ok {
		return types.Profile{}, ErrNotFound
	}
	return profile, nil
}

func (m *Memory) ListProfiles(ctx context.Context, filter string) ([]types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filter = strings.ToLower(filter)
	profiles := make([]types.Profile, 0, len(m.profiles))
	for _, profile := range m.profiles {
		if filter != "" &&
			!strings.Contains(strings.ToLower(profile.ProfileName), filter) &&
			!strings.Contains(strings.ToLower(profile.Code), filter) {
			continue
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (m *Memory) CreateProfile(ctx context.Context, profile types.Profile) (types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now
	m.profiles[profile.ID] = profile
	return profile, nil
}

func (m *Memory) UpdateProfile(ctx context.Context, profile types.Profile) (types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.profiles[profile.ID]
	if !ok {
		return types.Profile{}, ErrNotFound
	}
	profile.CreatedAt = current.CreatedAt
	profile.UpdatedAt = time.Now()
	m.profiles[profile.ID] = profile
	return profile, nil
}

func (m *Memory) DeleteProfile(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(m.profiles, id)
	return nil
}
