package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/userhub/apiserver/internal/auth"
	"github.com/userhub/apiserver/internal/events"
	"github.com/userhub/apiserver/internal/store"
	"github.com/userhub/apiserver/types"
)

// recordingBackend captures published messages in memory.
type recordingBackend struct {
	mu       sync.Mutex
	messages []events.Message
}

func (b *recordingBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, events.Message{Data: data, Attributes: attrs})
	return "msg-1", nil
}

func (b *recordingBackend) Subscribe(ctx context.Context, channel string, handler events.Handler) error {
	return nil
}

func (b *recordingBackend) Close() error { return nil }

func (b *recordingBackend) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	kinds := make([]string, 0, len(b.messages))
	for _, msg := range b.messages {
		kinds = append(kinds, msg.Attributes["type"])
	}
	return kinds
}

func newTestUserService(t *testing.T) (*UserService, *ProfileService, *store.Memory, *recordingBackend) {
	t.Helper()
	memory := store.NewMemory()
	backend := &recordingBackend{}
	profiles := NewProfileService(memory, nil)
	users := NewUserService(memory, profiles, events.New(backend))
	return users, profiles, memory, backend
}

func registerParams(email string) RegisterParams {
	return RegisterParams{
		Email:    email,
		Password: "secret1",
		Name:     "A",
		Age:      20,
		Profile:  CreateProfileParams{ProfileName: "P1", Code: "C1"},
	}
}

func TestRegister(t *testing.T) {
	users, _, _, backend := newTestUserService(t)
	ctx := context.Background()

	user, err := users.Register(ctx, registerParams("a@x.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if user.ID == "" {
		t.Fatal("expected a generated id")
	}
	if user.Role != types.RoleUser {
		t.Fatalf("expected default role user, got %q", user.Role)
	}
	if user.PasswordHash == "secret1" {
		t.Fatal("password stored in plaintext")
	}
	if !auth.CheckPassword("secret1", user.PasswordHash) {
		t.Fatal("stored hash does not verify against the password")
	}
	if user.Profile == nil || user.Profile.ProfileName != "P1" {
		t.Fatalf("expected linked profile, got %+v", user.Profile)
	}
	if user.Profile.UserID != user.ID {
		t.Fatalf("expected profile owner %q, got %q", user.ID, user.Profile.UserID)
	}

	kinds := backend.eventTypes()
	if len(kinds) != 1 || kinds[0] != events.AccountRegistered {
		t.Fatalf("expected a single %s event, got %v", events.AccountRegistered, kinds)
	}
}

func TestRegisterDuplicateEmailRollsBackProfile(t *testing.T) {
	users, profiles, _, _ := newTestUserService(t)
	ctx := context.Background()

	if _, err := users.Register(ctx, registerParams("a@x.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := users.Register(ctx, registerParams("a@x.com")); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	stored, err := profiles.List(ctx, "")
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected the rejected registration's profile to be rolled back, got %d profiles", len(stored))
	}
}

func TestCreateWithExplicitRole(t *testing.T) {
	users, _, _, _ := newTestUserService(t)
	ctx := context.Background()

	user, err := users.Create(ctx, CreateUserParams{
		Email:    "root@x.com",
		Password: "secret1",
		Name:     "Root",
		Age:      30,
		Role:     types.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Role != types.RoleAdmin {
		t.Fatalf("expected admin role, got %q", user.Role)
	}

	if _, err := users.Create(ctx, CreateUserParams{
		Email:    "odd@x.com",
		Password: "secret1",
		Name:     "Odd",
		Role:     types.Role("superuser"),
	}); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestUpdateNeverChangesRole(t *testing.T) {
	users, _, _, _ := newTestUserService(t)
	ctx := context.Background()

	created, err := users.Register(ctx, registerParams("a@x.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	name := "Renamed"
	email := "renamed@x.com"
	updated, err := users.Update(ctx, created.ID, UpdateUserParams{Name: &name, Email: &email})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" || updated.Email != "renamed@x.com" {
		t.Fatalf("update not applied: %+v", updated)
	}
	if updated.Role != types.RoleUser {
		t.Fatalf("role changed by update: %q", updated.Role)
	}
}

func TestUpdateEmailConflict(t *testing.T) {
	users, _, _, _ := newTestUserService(t)
	ctx := context.Background()

	if _, err := users.Register(ctx, registerParams("a@x.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	second, err := users.Register(ctx, registerParams("b@x.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	email := "a@x.com"
	if _, err := users.Update(ctx, second.ID, UpdateUserParams{Email: &email}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestDeleteCascadesProfile(t *testing.T) {
	users, profiles, _, backend := newTestUserService(t)
	ctx := context.Background()

	user, err := users.Register(ctx, registerParams("a@x.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := users.Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := profiles.Get(ctx, user.ProfileID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected linked profile to be deleted, got %v", err)
	}

	if err := users.Delete(ctx, user.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on repeated delete, got %v", err)
	}

	kinds := backend.eventTypes()
	if len(kinds) != 2 || kinds[1] != events.AccountDeleted {
		t.Fatalf("expected registered+deleted events, got %v", kinds)
	}
}

func TestEnsureAdminIdempotent(t *testing.T) {
	users, _, memory, _ := newTestUserService(t)
	ctx := context.Background()

	if err := users.EnsureAdmin(ctx, "admin@x.com", "adminpass"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	if err := users.EnsureAdmin(ctx, "admin@x.com", "adminpass"); err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}

	count, err := memory.CountUsers(ctx)
	if err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single seeded admin, got %d users", count)
	}

	admin, err := users.GetByEmail(ctx, "admin@x.com")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if admin.Role != types.RoleAdmin {
		t.Fatalf("expected admin role, got %q", admin.Role)
	}
}

func TestEnsureAdminSkipsNonEmptyStore(t *testing.T) {
	users, _, memory, _ := newTestUserService(t)
	ctx := context.Background()

	if _, err := users.Register(ctx, registerParams("a@x.com")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := users.EnsureAdmin(ctx, "admin@x.com", "adminpass"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	count, err := memory.CountUsers(ctx)
	if err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the non-empty store to be left untouched, got %d users", count)
	}
}

func TestResolveOwner(t *testing.T) {
	users, profiles, _, _ := newTestUserService(t)
	ctx := context.Background()

	user, err := users.Register(ctx, registerParams("a@x.com"))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	// A profile id resolves to itself plus the linked user.
	owners, err := profiles.ResolveOwner(ctx, user.ProfileID)
	if err != nil {
		t.Fatalf("resolve owner: %v", err)
	}
	if len(owners) != 2 || owners[0] != user.ProfileID || owners[1] != user.ID {
		t.Fatalf("unexpected owners for profile id: %v", owners)
	}

	// A user id (no profile by that id) resolves to itself only.
	owners, err = profiles.ResolveOwner(ctx, user.ID)
	if err != nil {
		t.Fatalf("resolve owner: %v", err)
	}
	if len(owners) != 1 || owners[0] != user.ID {
		t.Fatalf("unexpected owners for user id: %v", owners)
	}
}
