package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/userhub/apiserver/internal/auth"
	"github.com/userhub/apiserver/internal/handlers"
	"github.com/userhub/apiserver/internal/metrics"
	"github.com/userhub/apiserver/internal/services"
	"github.com/userhub/apiserver/internal/storage"
	"github.com/userhub/apiserver/internal/store"
	"github.com/userhub/apiserver/types"
)

// testEnv wires the full router against the in-memory store, mirroring
// the server composition without the network listener.
type testEnv struct {
	router   *chi.Mux
	users    *services.UserService
	profiles *services.ProfileService
	issuer   *auth.TokenIssuer
}

func newTestEnv(t *testing.T, avatarStorage *storage.Storage) *testEnv {
	t.Helper()

	memory := store.NewMemory()
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	collector := metrics.NewCollector()
	profileService := services.NewProfileService(memory, avatarStorage)
	userService := services.NewUserService(memory, profileService, nil)
	authService := services.NewAuthService(memory, issuer)

	requireAuth := handlers.RequireAuth(issuer)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, authService, collector)
	})
	router.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		handlers.UserRouter(r, userService, profileService.ResolveOwner, collector)
	})
	router.Route("/profile", func(r chi.Router) {
		r.Use(requireAuth)
		handlers.ProfileRouter(r, profileService, collector)
	})

	return &testEnv{
		router:   router,
		users:    userService,
		profiles: profileService,
		issuer:   issuer,
	}
}

// do performs a request against the router. A non-nil body is JSON
// encoded; a non-empty token becomes a bearer Authorization header.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// seedUser registers an account through the service layer and returns it
// together with a valid token.
func (e *testEnv) seedUser(t *testing.T, email string) (types.User, string) {
	t.Helper()

	user, err := e.users.Register(context.Background(), services.RegisterParams{
		Email:    email,
		Password: "secret1",
		Name:     "Test User",
		Age:      25,
		Profile:  services.CreateProfileParams{ProfileName: "profile-" + email, Code: "C1"},
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user, e.tokenFor(t, user)
}

// seedAdmin creates an admin account and returns it with a valid token.
func (e *testEnv) seedAdmin(t *testing.T) (types.User, string) {
	t.Helper()

	admin, err := e.users.Create(context.Background(), services.CreateUserParams{
		Email:    "admin@x.com",
		Password: "adminpass",
		Name:     "Admin",
		Age:      40,
		Role:     types.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	return admin, e.tokenFor(t, admin)
}

func (e *testEnv) tokenFor(t *testing.T, user types.User) string {
	t.Helper()

	token, err := e.issuer.Issue(auth.Identity{ID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var value T
	if err := json.NewDecoder(rec.Body).Decode(&value); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return value
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeJSON[handlers.ErrorResponse](t, rec).Error
}

// memObjectStorage is an in-memory object store for avatar tests.
type memObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: make(map[string][]byte)}
}

func (s *memObjectStorage) EnsureBucket(ctx context.Context) error { return nil }

func (s *memObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memObjectStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memObjectStorage) Bucket() string { return "test-bucket" }

// avatarRequest builds a multipart upload with a single avatar file.
func avatarRequest(t *testing.T, path, token string, content []byte) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("avatar", "avatar.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
