package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/userhub/apiserver/types"
)

func TestMemoryCreateUserDuplicateEmail(t *testing.T) {
	memory := NewMemory()
	ctx := context.Background()

	if _, err := memory.CreateUser(ctx, types.User{ID: "u1", Email: "a@x.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := memory.CreateUser(ctx, types.User{ID: "u2", Email: "A@X.COM"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}

	count, err := memory.CountUsers(ctx)
	if err != nil {
		t.Fatalf("count users: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one stored user, got %d", count)
	}
}

// Concurrent creates on the same email must leave exactly one record; the
// check-then-insert sequence is atomic under the store mutex.
func TestMemoryCreateUserConcurrent(t *testing.T) {
	memory := NewMemory()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = memory.CreateUser(ctx, types.User{
				ID:    fmt.Sprintf("u%d", i),
				Email: "race@x.com",
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one create to win, got %d", succeeded)
	}
}

func TestMemoryUpdateUserEmailUniqueness(t *testing.T) {
	memory := NewMemory()
	ctx := context.Background()

	if _, err := memory.CreateUser(ctx, types.User{ID: "u1", Email: "a@x.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := memory.CreateUser(ctx, types.User{ID: "u2", Email: "b@x.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := memory.UpdateUser(ctx, types.User{ID: "u2", Email: "a@x.com"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on email collision, got %v", err)
	}

	// Re-using an email freed by the same user is fine.
	if _, err := memory.UpdateUser(ctx, types.User{ID: "u2", Email: "B@x.com"}); err != nil {
		t.Fatalf("update user: %v", err)
	}
}

func TestMemoryDeleteUserIdempotence(t *testing.T) {
	memory := NewMemory()
	ctx := context.Background()

	if _, err := memory.CreateUser(ctx, types.User{ID: "u1", Email: "a@x.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := memory.DeleteUser(ctx, "u1"); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := memory.DeleteUser(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := memory.DeleteUser(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on third delete, got %v", err)
	}

	// The freed email may be registered again.
	if _, err := memory.CreateUser(ctx, types.User{ID: "u2", Email: "a@x.com"}); err != nil {
		t.Fatalf("create user after delete: %v", err)
	}
}

func TestMemoryListUsersFilter(t *testing.T) {
	memory := NewMemory()
	ctx := context.Background()

	seed := []types.User{
		{ID: "u1", Email: "alice@x.com", Name: "Alice"},
		{ID: "u2", Email: "bob@x.com", Name: "Bob"},
		{ID: "u3", Email: "carol@ALPHA.com", Name: "Carol"},
	}
	for _, user := range seed {
		if _, err := memory.CreateUser(ctx, user); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	users, err := memory.ListUsers(ctx, "al")
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	// "al" matches Alice by name and carol@ALPHA.com by email.
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, user := range users {
		if user.ID == "u2" {
			t.Fatal("filter matched a user it should not have")
		}
	}

	all, err := memory.ListUsers(ctx, "")
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 users without filter, got %d", len(all))
	}
}

func TestMemoryProfileLifecycle(t *testing.T) {
	memory := NewMemory()
	ctx := context.Background()

	profile, err := memory.CreateProfile(ctx, types.Profile{ID: "p1", ProfileName: "Work", Code: "PROF001", UserID: "u1"})
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}

	fetched, err := memory.GetProfileByID(ctx, profile.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if fetched.UserID != "u1" {
		t.Fatalf("expected owner u1, got %q", fetched.UserID)
	}

	profiles, err := memory.ListProfiles(ctx, "prof001")
	if err != nil {
		t.Fatalf("list profiles: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected code filter to match 1 profile, got %d", len(profiles))
	}

	if err := memory.DeleteProfile(ctx, "p1"); err != nil {
		t.Fatalf("delete profile: %v", err)
	}
	if _, err := memory.GetProfileByID(ctx, "p1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
